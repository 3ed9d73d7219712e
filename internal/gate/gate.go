// Package gate runs the end-to-end decision pipeline for one SSH session:
// extract the repository from the requested command, decide access, and
// produce the argument vector to execute.
package gate

import (
	"fmt"
	"os"

	"github.com/thomas/repogate/internal/access"
	"github.com/thomas/repogate/internal/vcscmd"
)

// Gate evaluates sessions. Every failure path is terminal for the session;
// there is no retry.
type Gate struct {
	Decider *access.Decider
	// Audit receives aborts that happen before a decision is reached
	// (unrecognized commands). Optional.
	Audit access.Recorder
	// HomeDir is where repositories are remapped to when the requested
	// path does not exist.
	HomeDir string

	statFunc func(string) (os.FileInfo, error) // for testing
}

// New returns a gate deciding with decider and remapping missing paths into
// homeDir.
func New(decider *access.Decider, auditLog access.Recorder, homeDir string) *Gate {
	return &Gate{
		Decider:  decider,
		Audit:    auditLog,
		HomeDir:  homeDir,
		statFunc: os.Stat,
	}
}

// Run evaluates one session and returns the argv of the permitted command.
// identityArgs is the per-key argument vector ("user alice", "repo a,b");
// rawCommand is the client's requested command text. A non-nil error means
// the session must end with a message and a non-zero exit status.
func (g *Gate) Run(identityArgs []string, rawCommand string) ([]string, error) {
	id := access.ParseIdentity(identityArgs)

	cmd := vcscmd.Parse(rawCommand)
	if cmd.Kind == vcscmd.Unrecognized {
		// Never pass through text we could not parse: abort before any
		// access decision.
		if g.Audit != nil {
			g.Audit.Record(id.Label(), "", false, "unrecognized command")
		}
		return nil, fmt.Errorf("%w: %q", vcscmd.ErrUnrecognized, rawCommand)
	}

	dec := g.Decider.Decide(id, vcscmd.BareName(cmd.RepoPath))
	if !dec.Allowed {
		return nil, fmt.Errorf("access denied: %s", dec.Rule)
	}

	// The existence check is against the path exactly as the client phrased
	// it; only permission comparison uses the bare name.
	if _, err := g.statFunc(cmd.RepoPath); err != nil {
		rewritten, err := vcscmd.Rewrite(cmd, g.HomeDir)
		if err != nil {
			return nil, err
		}
		cmd = rewritten
	}

	return cmd.Argv(), nil
}
