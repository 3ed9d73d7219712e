// Package main implements the embedded SSH server mode: the same gate
// engine as the forced-command binary, for hosts where the operator cannot
// hand sshd a forced command. Each session's permitted command runs as a
// child process wired to the session's stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"

	"github.com/thomas/repogate/internal/access"
	"github.com/thomas/repogate/internal/audit"
	"github.com/thomas/repogate/internal/config"
	"github.com/thomas/repogate/internal/gate"
	"github.com/thomas/repogate/internal/keys"
	"github.com/thomas/repogate/internal/permissions"
)

type identityCtxKey struct{}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	entries, err := keys.Load(cfg.KeysPath)
	if err != nil {
		if errors.Is(err, keys.ErrKeysNotFound) {
			log.Info("Creating empty keys file", "path", cfg.KeysPath)
			if err := keys.CreateEmpty(cfg.KeysPath); err != nil {
				log.Fatal("Failed to create keys file", "error", err)
			}
			log.Info("Add entries with \"repogate keys add\" and restart")
			os.Exit(1)
		}
		log.Fatal("Failed to load keys", "error", err)
	}
	if len(entries) == 0 {
		log.Warn("Keys file is empty; no connections will be accepted", "path", cfg.KeysPath)
	}

	store := permissions.NewStore(cfg.PermissionsPath)

	server, err := wish.NewServer(
		wish.WithAddress(cfg.SSHAddr),
		wish.WithHostKeyPath(cfg.HostKeyPath),
		wish.WithPublicKeyAuth(func(ctx ssh.Context, key ssh.PublicKey) bool {
			entry, ok := keys.FindByKey(entries, key)
			if !ok {
				return false
			}
			// The matched entry's declaration drives the access decision
			// for every command on this connection.
			ctx.SetValue(identityCtxKey{}, entry.Identity)
			return true
		}),
		wish.WithPasswordAuth(func(ctx ssh.Context, password string) bool {
			return false
		}),
		wish.WithMiddleware(
			gateMiddleware(cfg, store),
			logging.Middleware(),
		),
	)
	if err != nil {
		log.Fatal("Failed to create SSH server", "error", err)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	log.Info("Starting SSH server", "addr", cfg.SSHAddr, "permissions", cfg.PermissionsPath)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			log.Fatal("Server error", "error", err)
		}
	}()

	<-done
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		log.Fatal("Shutdown error", "error", err)
	}
}

// gateMiddleware runs every session through the decision pipeline and, on
// allow, attaches the permitted command to the session's stdio. A server
// cannot exec-replace itself per session, so this is the one place the
// command runs as a child instead.
func gateMiddleware(cfg *config.Config, store *permissions.Store) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			raw := s.RawCommand()
			if raw == "" {
				fmt.Fprintln(s.Stderr(), "repogate: interactive sessions are not allowed; run a repository command")
				_ = s.Exit(1)
				return
			}

			identity, _ := s.Context().Value(identityCtxKey{}).([]string)
			auditLog := audit.New(cfg.AuditLogPath, s.RemoteAddr().String())
			decider := &access.Decider{Store: store, Audit: auditLog}

			argv, err := gate.New(decider, auditLog, cfg.HomeDir).Run(identity, raw)
			if err != nil {
				fmt.Fprintf(s.Stderr(), "repogate: %v\n", err)
				_ = s.Exit(1)
				return
			}

			cmd := exec.Command(argv[0], argv[1:]...)
			cmd.Stdin = s
			cmd.Stdout = s
			cmd.Stderr = s.Stderr()
			if err := cmd.Run(); err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					_ = s.Exit(exitErr.ExitCode())
					return
				}
				fmt.Fprintf(s.Stderr(), "repogate: %v\n", err)
				_ = s.Exit(1)
				return
			}
			_ = s.Exit(0)
		}
	}
}
