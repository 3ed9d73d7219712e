// Package access evaluates whether a declared key identity may operate on a
// repository.
package access

import (
	"fmt"
	"strings"

	"github.com/thomas/repogate/internal/permissions"
)

// Mode is the identity-declaration variant carried by a key.
type Mode int

const (
	// ModeInvalid marks a declaration that failed to parse. It always
	// denies.
	ModeInvalid Mode = iota
	// ModeUser names a person; their permitted repositories come from the
	// store.
	ModeUser
	// ModeRepo scopes the key to an explicit repository list; the store is
	// not consulted.
	ModeRepo
)

// Identity is the authorization declared alongside an SSH key, parsed from
// the forced-command argument vector.
type Identity struct {
	Mode      Mode
	Principal string   // ModeUser only
	Repos     []string // ModeRepo only, comma-flattened
	Reason    string   // ModeInvalid only: why parsing failed
}

// ParseIdentity interprets the tokens following the forced-command
// directive. Exactly "user <name>" or "repo <list...>" is accepted; any
// other shape yields ModeInvalid, which the decider turns into a denial.
func ParseIdentity(args []string) Identity {
	if len(args) == 0 {
		return Identity{Reason: "no identity declared"}
	}
	switch args[0] {
	case "user":
		if len(args) != 2 {
			return Identity{Reason: fmt.Sprintf("user declaration wants exactly one name, got %d tokens", len(args)-1)}
		}
		return Identity{Mode: ModeUser, Principal: args[1]}
	case "repo":
		if len(args) < 2 {
			return Identity{Reason: "repo declaration wants at least one repository"}
		}
		// Remaining tokens may themselves be comma-joined lists; flatten
		// them all.
		var repos []string
		for _, name := range strings.Split(strings.Join(args[1:], ","), ",") {
			if name = strings.TrimSpace(name); name != "" {
				repos = append(repos, name)
			}
		}
		if len(repos) == 0 {
			return Identity{Reason: "repo declaration names no repositories"}
		}
		return Identity{Mode: ModeRepo, Repos: repos}
	}
	return Identity{Reason: fmt.Sprintf("unknown identity mode %q", args[0])}
}

// Label describes the identity in audit lines.
func (id Identity) Label() string {
	switch id.Mode {
	case ModeUser:
		return "user " + id.Principal
	case ModeRepo:
		return "repo " + strings.Join(id.Repos, ",")
	}
	return "invalid"
}

// Decision is the verdict for one session, with the winning rule (or the
// denial reason) kept for auditing.
type Decision struct {
	Allowed bool
	Rule    string
}

// Recorder receives one notification per decision. Implemented by the audit
// log; nil disables recording.
type Recorder interface {
	Record(identity, repo string, allowed bool, rule string)
}

// Decider combines a key's declared identity with the permissions store to
// produce allow/deny verdicts.
type Decider struct {
	Store *permissions.Store
	Audit Recorder
}

// Decide reports whether the identity may operate on repo, where repo is
// the bare repository name. Every decision, allow or deny, is recorded.
func (d *Decider) Decide(id Identity, repo string) Decision {
	dec := d.decide(id, repo)
	if d.Audit != nil {
		d.Audit.Record(id.Label(), repo, dec.Allowed, dec.Rule)
	}
	return dec
}

func (d *Decider) decide(id Identity, repo string) Decision {
	if repo == "" {
		return Decision{Rule: "no repository identified"}
	}
	switch id.Mode {
	case ModeUser:
		for _, grant := range d.Store.PermissionsFor(id.Principal) {
			if grant == repo || grant == permissions.Wildcard {
				return Decision{Allowed: true, Rule: id.Principal + " = " + grant}
			}
		}
		return Decision{Rule: fmt.Sprintf("no grant for %s on %s", id.Principal, repo)}
	case ModeRepo:
		for _, grant := range id.Repos {
			if grant == repo || grant == permissions.Wildcard {
				return Decision{Allowed: true, Rule: "repo " + grant}
			}
		}
		return Decision{Rule: fmt.Sprintf("key is not scoped to %s", repo)}
	}
	return Decision{Rule: "invalid identity declaration: " + id.Reason}
}
