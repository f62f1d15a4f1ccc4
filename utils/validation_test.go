package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain_name_unchanged", "a.txt", "a.txt"},
		{"parent_refs_removed", "../../etc/passwd", "etcpasswd"},
		{"unsafe_chars_removed", "a;rm -rf.txt", "arm -rf.txt"},
		{"surrounding_dots_trimmed", " .hidden. ", "hidden"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestVerifyFileExists(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "present.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	if !VerifyFileExists(dir, "present.txt") {
		t.Error("VerifyFileExists() = false for existing file")
	}
	if VerifyFileExists(dir, "absent.txt") {
		t.Error("VerifyFileExists() = true for missing file")
	}
	if VerifyFileExists(filepath.Dir(dir), filepath.Base(dir)) {
		t.Error("VerifyFileExists() = true for a directory")
	}
}
