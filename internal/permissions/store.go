// Package permissions loads the principal-to-repositories store backing
// user-mode access decisions.
package permissions

import (
	"bufio"
	"os"
	"strings"
	"sync"
)

// Wildcard is the permission value matching any repository.
const Wildcard = "all"

// Store maps lower-cased principal names to the repositories they may
// touch. The backing file is read once, on first lookup, and the result is
// held for the process lifetime.
type Store struct {
	path    string
	once    sync.Once
	entries map[string][]string
}

// NewStore returns a store backed by the permissions file at path. The file
// is not touched until the first lookup.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// PermissionsFor returns the repositories granted to principal, in file
// order, or nil if the principal has no entry. Principals are matched
// case-insensitively. It never fails: a missing or unreadable store simply
// grants nothing.
func (s *Store) PermissionsFor(principal string) []string {
	s.once.Do(s.load)
	return s.entries[strings.ToLower(principal)]
}

// load parses the backing file. Each line of the form
// "key = value[, value...]" appends the values, trimmed, to the key's list
// in order and without deduplication. Everything else — blank lines,
// comments, lines with no "=" — is skipped. This store sits on an
// interactive SSH path, so malformed input must degrade to missing grants,
// never to a crash.
func (s *Store) load() {
	s.entries = make(map[string][]string)

	file, err := os.Open(s.path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, values, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}

		for _, value := range strings.Split(values, ",") {
			if value = strings.TrimSpace(value); value != "" {
				s.entries[key] = append(s.entries[key], value)
			}
		}
	}
}
