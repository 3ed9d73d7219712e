package vcscmd

import (
	"errors"
	"testing"
)

func TestParseRecognizedShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind Kind
		repo string
	}{
		{"upload pack single quotes", "git-upload-pack 'project-a'", GitUploadPack, "project-a"},
		{"receive pack single quotes", "git-receive-pack 'project-a'", GitReceivePack, "project-a"},
		{"upload pack double quotes", `git-upload-pack "project-a"`, GitUploadPack, "project-a"},
		{"receive pack double quotes", `git-receive-pack "project-a"`, GitReceivePack, "project-a"},
		{"absolute path", "git-upload-pack '/srv/git/project-a'", GitUploadPack, "/srv/git/project-a"},
		{"path with space", "git-upload-pack 'my project'", GitUploadPack, "my project"},
		{"hg serve", "hg -R project-b serve --stdio", HgServe, "project-b"},
		{"hg serve absolute", "hg -R /srv/hg/project-b serve --stdio", HgServe, "/srv/hg/project-b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Parse(tt.raw)
			if cmd.Kind != tt.kind {
				t.Fatalf("expected kind %v, got %v", tt.kind, cmd.Kind)
			}
			if cmd.RepoPath != tt.repo {
				t.Errorf("expected repo path %q, got %q", tt.repo, cmd.RepoPath)
			}
			if cmd.Raw != tt.raw {
				t.Errorf("expected raw %q preserved, got %q", tt.raw, cmd.Raw)
			}
		})
	}
}

func TestParseRejectsUnrecognized(t *testing.T) {
	raws := []string{
		"",
		"ls -la",
		"git-upload-pack project-a",       // unquoted
		`git-upload-pack 'project-a"`,     // mismatched quotes
		`git-upload-pack "project-a'`,     // mismatched quotes
		"git-upload-pack ''",              // empty path
		" git-upload-pack 'project-a'",    // leading space
		"git-upload-pack 'project-a' ",    // trailing space
		"git-upload-pack 'a'; rm -rf /",   // trailing injection
		"echo git-upload-pack 'a'",        // embedded invocation
		"git-upload-archive 'project-a'",  // unsupported service
		"hg -R project-b serve",           // missing --stdio
		"hg -R project-b serve --stdio x", // trailing token
		"hg -R serve --stdio",             // missing path
	}

	for _, raw := range raws {
		cmd := Parse(raw)
		if cmd.Kind != Unrecognized {
			t.Errorf("Parse(%q): expected Unrecognized, got %v", raw, cmd.Kind)
		}
		if cmd.RepoPath != "" {
			t.Errorf("Parse(%q): expected empty repo path, got %q", raw, cmd.RepoPath)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	// Constructing a git command from a quote-free path and re-parsing it
	// must give the path back.
	paths := []string{"project-a", "a/b", "/srv/git/project-a", "my project"}
	for _, path := range paths {
		cmd := Parse("git-upload-pack '" + path + "'")
		if cmd.RepoPath != path {
			t.Errorf("round trip of %q gave %q", path, cmd.RepoPath)
		}
	}
}

func TestBareName(t *testing.T) {
	tests := []struct{ path, want string }{
		{"foo", "foo"},
		{"foo/", "foo"},
		{"/home/x/foo", "foo"},
		{"/home/x/foo/", "foo"},
		{"a/b/c", "c"},
	}
	for _, tt := range tests {
		if got := BareName(tt.path); got != tt.want {
			t.Errorf("BareName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestBareNameIdempotent(t *testing.T) {
	for _, path := range []string{"foo", "/home/x/foo/", "a/b"} {
		once := BareName(path)
		if twice := BareName(once); twice != once {
			t.Errorf("BareName not idempotent for %q: %q then %q", path, once, twice)
		}
	}
}

func TestRewrite(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantRaw string
	}{
		{"upload pack", "git-upload-pack 'project-a'", "git-upload-pack '/home/alice/project-a'"},
		{"receive pack", `git-receive-pack "project-a"`, "git-receive-pack '/home/alice/project-a'"},
		{"hg serve", "hg -R project-b serve --stdio", "hg -R /home/alice/project-b serve --stdio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Parse(tt.raw)
			rewritten, err := Rewrite(cmd, "/home/alice")
			if err != nil {
				t.Fatalf("Rewrite failed: %v", err)
			}
			if rewritten.Raw != tt.wantRaw {
				t.Errorf("expected raw %q, got %q", tt.wantRaw, rewritten.Raw)
			}
			if rewritten.Kind != cmd.Kind {
				t.Errorf("expected kind preserved, got %v", rewritten.Kind)
			}
			// The original must stay inspectable for audit logging.
			if cmd.Raw != tt.raw {
				t.Errorf("original command mutated: %q", cmd.Raw)
			}
			// The rewritten command must parse back to its own path.
			if reparsed := Parse(rewritten.Raw); reparsed.RepoPath != rewritten.RepoPath {
				t.Errorf("rewritten command does not re-parse: %q gave %q", rewritten.Raw, reparsed.RepoPath)
			}
		})
	}
}

func TestRewriteUnrecognized(t *testing.T) {
	_, err := Rewrite(Parse("ls -la"), "/home/alice")
	if !errors.Is(err, ErrUnrecognized) {
		t.Fatalf("expected ErrUnrecognized, got %v", err)
	}
}

func TestArgv(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"git-upload-pack 'project-a'", []string{"git-upload-pack", "project-a"}},
		{"git-receive-pack 'project-a'", []string{"git-receive-pack", "project-a"}},
		{"hg -R project-b serve --stdio", []string{"hg", "-R", "project-b", "serve", "--stdio"}},
		{"ls -la", nil},
	}

	for _, tt := range tests {
		got := Parse(tt.raw).Argv()
		if len(got) != len(tt.want) {
			t.Errorf("Argv of %q = %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Argv of %q = %v, want %v", tt.raw, got, tt.want)
				break
			}
		}
	}
}
