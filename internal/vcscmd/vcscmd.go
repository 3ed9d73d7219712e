// Package vcscmd recognizes and rewrites version-control server commands.
package vcscmd

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnrecognized is returned when a command does not match any known
// version-control invocation shape.
var ErrUnrecognized = errors.New("unrecognized command")

// Kind identifies the shape of a recognized command.
type Kind int

const (
	Unrecognized Kind = iota
	GitUploadPack
	GitReceivePack
	HgServe
)

// String returns the service name for a kind, for log lines.
func (k Kind) String() string {
	switch k {
	case GitUploadPack:
		return "git-upload-pack"
	case GitReceivePack:
		return "git-receive-pack"
	case HgServe:
		return "hg-serve"
	}
	return "unrecognized"
}

// Command is a parsed version-control server command. It is immutable once
// parsed; Rewrite produces a new value.
type Command struct {
	Raw      string
	Kind     Kind
	RepoPath string
}

// The patterns are anchored to the whole command string on purpose: a
// crafted command that merely contains a valid invocation must not match.
var (
	gitPattern = regexp.MustCompile(`^(git-upload-pack|git-receive-pack) (?:'([^']+)'|"([^"]+)")$`)
	hgPattern  = regexp.MustCompile(`^hg -R (\S+) serve --stdio$`)
)

// Parse inspects a raw command string. Commands that match neither the git
// pack shapes nor the hg serve shape come back with Kind Unrecognized and an
// empty RepoPath; callers must treat those as a terminal abort, never as
// something to pass through.
func Parse(raw string) Command {
	if m := gitPattern.FindStringSubmatch(raw); m != nil {
		kind := GitUploadPack
		if m[1] == "git-receive-pack" {
			kind = GitReceivePack
		}
		path := m[2]
		if path == "" {
			path = m[3]
		}
		return Command{Raw: raw, Kind: kind, RepoPath: path}
	}
	if m := hgPattern.FindStringSubmatch(raw); m != nil {
		return Command{Raw: raw, Kind: HgServe, RepoPath: m[1]}
	}
	return Command{Raw: raw, Kind: Unrecognized}
}

// BareName reduces a repository path to its final path component, the unit
// permissions are declared against. It strips one trailing separator first,
// so "/home/x/foo/" and "foo" both reduce to "foo". Idempotent.
func BareName(path string) string {
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}

// Rewrite returns a copy of cmd pointing at the repository inside homeDir,
// re-rendered in the same command shape. It is called only after an allow
// decision, when the literal path does not exist on disk.
func Rewrite(cmd Command, homeDir string) (Command, error) {
	if cmd.Kind == Unrecognized {
		return Command{}, fmt.Errorf("rewriting %q: %w", cmd.Raw, ErrUnrecognized)
	}
	path := homeDir + "/" + cmd.RepoPath
	out := Command{Kind: cmd.Kind, RepoPath: path}
	switch cmd.Kind {
	case GitUploadPack:
		out.Raw = "git-upload-pack '" + path + "'"
	case GitReceivePack:
		out.Raw = "git-receive-pack '" + path + "'"
	case HgServe:
		out.Raw = "hg -R " + path + " serve --stdio"
	}
	return out, nil
}

// Argv returns the argument vector to execute for this command. It is built
// from the parsed fields, never by re-splitting the raw text. Nil for
// unrecognized commands.
func (c Command) Argv() []string {
	switch c.Kind {
	case GitUploadPack:
		return []string{"git-upload-pack", c.RepoPath}
	case GitReceivePack:
		return []string{"git-receive-pack", c.RepoPath}
	case HgServe:
		return []string{"hg", "-R", c.RepoPath, "serve", "--stdio"}
	}
	return nil
}
