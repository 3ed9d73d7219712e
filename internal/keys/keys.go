// Package keys manages forced-command authorized_keys entries: lines that
// bind an SSH public key to an identity declaration via command="repogate ...".
package keys

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// ErrKeysNotFound is returned when the authorized keys file doesn't exist.
var ErrKeysNotFound = errors.New("authorized keys file not found")

// Every generated entry carries the full restriction set: the forced
// command is the only thing these keys are for.
const restrictions = "no-port-forwarding,no-x11-forwarding,no-agent-forwarding,no-pty"

// Entry is one authorized_keys line: a public key plus the identity
// declaration its forced command carries.
type Entry struct {
	Key ssh.PublicKey
	// Identity is the gatekeeper argument vector from the command option,
	// e.g. ["user", "alice"]. Nil when the entry has no forced command.
	Identity []string
	Comment  string
}

// Load reads an OpenSSH authorized_keys format file and returns the parsed
// entries. It skips empty lines, comments, and lines that don't parse.
func Load(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeysNotFound
		}
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pubKey, comment, options, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			// Skip invalid lines but continue processing
			continue
		}

		entries = append(entries, Entry{
			Key:      pubKey,
			Identity: identityFromOptions(options),
			Comment:  comment,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// identityFromOptions recovers the gatekeeper argument vector from a parsed
// command="repogate ..." option, dropping the program name itself.
func identityFromOptions(options []string) []string {
	for _, opt := range options {
		value, ok := strings.CutPrefix(opt, `command="`)
		if !ok {
			continue
		}
		fields := strings.Fields(strings.TrimSuffix(value, `"`))
		if len(fields) > 1 {
			return fields[1:]
		}
	}
	return nil
}

// Format renders the authorized_keys line binding pubKey to the given
// identity declaration.
func Format(identity []string, pubKey ssh.PublicKey, comment string) string {
	keyText := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pubKey)))
	line := fmt.Sprintf("command=\"repogate %s\",%s %s", strings.Join(identity, " "), restrictions, keyText)
	if comment != "" {
		line += " " + comment
	}
	return line
}

// FindByKey locates the entry for a presented public key. It compares the
// marshaled key bytes for equality.
func FindByKey(entries []Entry, key ssh.PublicKey) (Entry, bool) {
	if key == nil {
		return Entry{}, false
	}

	keyBytes := key.Marshal()
	for _, entry := range entries {
		if bytes.Equal(keyBytes, entry.Key.Marshal()) {
			return entry, true
		}
	}
	return Entry{}, false
}

// CreateEmpty creates an empty authorized keys file with a helpful comment.
func CreateEmpty(path string) error {
	content := `# repogate authorized keys
# One entry per line, produced by "repogate keys add". Example:
# command="repogate user alice",` + restrictions + ` ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIExample... alice@host
`
	return os.WriteFile(path, []byte(content), 0644)
}
