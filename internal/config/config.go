// Package config handles environment variable parsing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds all gatekeeper configuration.
type Config struct {
	// Gatekeeper settings
	PermissionsPath string
	AuditLogPath    string
	HomeDir         string

	// Embedded SSH server settings
	SSHAddr     string
	HostKeyPath string
	KeysPath    string
}

// Load reads configuration from environment variables with defaults. Every
// value has a usable default, so the forced-command binary starts with no
// environment at all.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}

	cfg := &Config{
		PermissionsPath: expandHome(getEnv("REPOGATE_PERMISSIONS", filepath.Join(home, ".repogate", "permissions")), home),
		AuditLogPath:    expandHome(getEnv("REPOGATE_AUDIT_LOG", filepath.Join(home, ".repogate", "audit.log")), home),
		HomeDir:         expandHome(getEnv("REPOGATE_HOME", home), home),
		SSHAddr:         getEnv("REPOGATE_SSH_ADDR", ":2222"),
		HostKeyPath:     expandHome(getEnv("REPOGATE_HOSTKEY_PATH", "./.repogate_host_ed25519_key"), home),
		KeysPath:        expandHome(getEnv("REPOGATE_KEYS_PATH", filepath.Join(home, ".repogate", "authorized_keys")), home),
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// expandHome substitutes a leading "~/" with the user's home directory.
func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
