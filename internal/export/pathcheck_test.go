package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/jb/internal/config"
	"github.com/hpungsan/jb/internal/errors"
)

func TestValidatePath(t *testing.T) {
	exportsDir := t.TempDir()
	allowedDir := t.TempDir()
	otherDir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(allowedDir, "sub"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	target := filepath.Join(otherDir, "secret.md")
	if err := os.WriteFile(target, []byte("x"), 0600); err != nil {
		t.Fatalf("write target: %v", err)
	}
	link := filepath.Join(allowedDir, "link.md")
	symlinks := os.Symlink(target, link) == nil

	restricted := config.DefaultConfig()
	restricted.AllowedPaths = []string{allowedDir}
	unsafe := config.DefaultConfig()
	unsafe.AllowUnsafePaths = true

	tests := []struct {
		name    string
		path    string
		cfg     *config.Config
		wantErr bool
		symlink bool
	}{
		{"exports dir", filepath.Join(exportsDir, "entry.md"), restricted, false, false},
		{"extension ignores case", filepath.Join(exportsDir, "ENTRY.MD"), restricted, false, false},
		{"allowed path", filepath.Join(allowedDir, "entry.md"), restricted, false, false},
		{"outside allowed dirs", filepath.Join(otherDir, "entry.md"), restricted, true, false},
		{"nested in allowed dir", filepath.Join(allowedDir, "sub", "entry.md"), restricted, true, false},
		{"empty", "", restricted, true, false},
		{"parent traversal", "../entry.md", unsafe, true, false},
		{"mid-path traversal", "/tmp/../etc/entry.md", unsafe, true, false},
		{"no extension", filepath.Join(exportsDir, "entry"), restricted, true, false},
		{"document extension", filepath.Join(exportsDir, "entry.jb"), unsafe, true, false},
		{"unsafe anywhere", filepath.Join(otherDir, "entry.md"), unsafe, false, false},
		{"symlink file", link, restricted, true, true},
		{"symlink file even when unsafe", link, unsafe, true, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.symlink && !symlinks {
				t.Skip("cannot create symlink")
			}
			err := ValidatePath(tc.path, exportsDir, tc.cfg)
			if !tc.wantErr {
				if err != nil {
					t.Errorf("ValidatePath(%q) error = %v", tc.path, err)
				}
				return
			}
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("ValidatePath(%q) = %v, want INVALID_REQUEST", tc.path, err)
			}
		})
	}
}

func TestValidatePath_NoExportsDir(t *testing.T) {
	err := ValidatePath("/tmp/entry.md", "", config.DefaultConfig())
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST with no allowed dirs, got %v", err)
	}
}

func TestContainsTraversal(t *testing.T) {
	tests := []struct {
		path     string
		contains bool
	}{
		{"/home/user/entry.md", false},
		{"../entry.md", true},
		{"/home/../etc/passwd", true},
		{"./entry.md", false},
		{"/home/user/.hidden/entry.md", false},
		{"entry..name.md", false},
	}

	for _, tc := range tests {
		if got := containsTraversal(tc.path); got != tc.contains {
			t.Errorf("containsTraversal(%q) = %v, want %v", tc.path, got, tc.contains)
		}
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Monday", "Monday"},
		{"Monday standup", "Monday standup"},
		{"Work/Monday", "Work-Monday"},
		{"Work\\Monday", "Work-Monday"},
		{"foo..bar", "foo-bar"},
		{"../../../etc/passwd", "etc-passwd"},
		{"tab\x00null", "tabnull"},
		{"../../..", "unnamed"},
		{"", "unnamed"},
		{"日記", "日記"},
		{"a---b", "a-b"},
	}

	for _, tc := range tests {
		if got := SanitizeForFilename(tc.input); got != tc.expected {
			t.Errorf("SanitizeForFilename(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestDefaultName(t *testing.T) {
	if got := DefaultName("Work/Monday"); got != "Work-Monday.md" {
		t.Errorf("DefaultName() = %q", got)
	}
}
