// Package main implements the SSH forced-command gatekeeper. sshd runs it
// with the key's identity declaration as arguments; the client's requested
// command arrives in SSH_ORIGINAL_COMMAND. The process either replaces
// itself with the permitted command or exits 1 with a short message.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	gossh "golang.org/x/crypto/ssh"

	"github.com/thomas/repogate/internal/access"
	"github.com/thomas/repogate/internal/audit"
	"github.com/thomas/repogate/internal/config"
	"github.com/thomas/repogate/internal/gate"
	"github.com/thomas/repogate/internal/keys"
	"github.com/thomas/repogate/internal/permissions"
)

const usage = `usage:
  repogate user <name>          forced-command mode, permissions from the store
  repogate repo <name>[,...]    forced-command mode, key scoped to these repos
  repogate keys add <identity...> < key.pub
                                print the authorized_keys line for a key
  repogate keys list            list configured keys and their identities
`

func main() {
	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "--help" || args[0] == "-h") {
		fmt.Print(usage)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "repogate: %v\n", err)
		os.Exit(1)
	}

	if len(args) > 0 && args[0] == "keys" {
		if err := runKeys(args[1:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "repogate: %v\n", err)
			os.Exit(1)
		}
		return
	}

	raw := os.Getenv("SSH_ORIGINAL_COMMAND")
	if raw == "" {
		fmt.Fprintln(os.Stderr, "repogate: interactive sessions are not allowed; run a repository command")
		os.Exit(1)
	}

	auditLog := audit.New(cfg.AuditLogPath, peerAddr(os.Getenv("SSH_CONNECTION")))
	decider := &access.Decider{
		Store: permissions.NewStore(cfg.PermissionsPath),
		Audit: auditLog,
	}

	argv, err := gate.New(decider, auditLog, cfg.HomeDir).Run(args, raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "repogate: %v\n", err)
		os.Exit(1)
	}

	execReplace(argv)
}

// execReplace swaps this process for the permitted command. It returns only
// on failure.
func execReplace(argv []string) {
	bin, err := exec.LookPath(argv[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "repogate: %v\n", err)
		os.Exit(1)
	}
	if err := syscall.Exec(bin, argv, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "repogate: executing %s: %v\n", bin, err)
		os.Exit(1)
	}
}

// peerAddr extracts the client address from SSH_CONNECTION
// ("client-ip client-port server-ip server-port").
func peerAddr(sshConnection string) string {
	fields := strings.Fields(sshConnection)
	if len(fields) >= 2 {
		return fields[0] + ":" + fields[1]
	}
	return ""
}

// runKeys handles the operator-facing keys subcommands.
func runKeys(args []string, cfg *config.Config) error {
	if len(args) == 0 {
		return errors.New("keys wants a subcommand: add or list")
	}

	switch args[0] {
	case "add":
		identity := args[1:]
		if parsed := access.ParseIdentity(identity); parsed.Mode == access.ModeInvalid {
			return fmt.Errorf("invalid identity declaration: %s", parsed.Reason)
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading public key from stdin: %w", err)
		}
		pubKey, comment, _, _, err := gossh.ParseAuthorizedKey(data)
		if err != nil {
			return fmt.Errorf("parsing public key: %w", err)
		}
		fmt.Println(keys.Format(identity, pubKey, comment))
		return nil

	case "list":
		entries, err := keys.Load(cfg.KeysPath)
		if err != nil {
			if errors.Is(err, keys.ErrKeysNotFound) {
				fmt.Printf("no keys file at %s\n", cfg.KeysPath)
				return nil
			}
			return fmt.Errorf("loading keys: %w", err)
		}
		for _, entry := range entries {
			identity := strings.Join(entry.Identity, " ")
			if identity == "" {
				identity = "(no identity)"
			}
			fmt.Printf("%-24s %s %s\n", identity, entry.Key.Type(), entry.Comment)
		}
		return nil
	}

	return fmt.Errorf("unknown keys subcommand %q", args[0])
}
