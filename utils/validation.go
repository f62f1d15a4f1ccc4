package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._\s-]`)

// SanitizeFilename cleans a file name for safe use under the read
// directory: trims spaces and dots, removes parent directory references,
// filters out non-alphanumeric characters except safe punctuation, and
// caps the length. A name the worker accepts must round-trip unchanged.
func SanitizeFilename(filename string) string {
	sanitized := strings.Trim(filename, " .")
	sanitized = strings.ReplaceAll(sanitized, "..", "")
	sanitized = unsafeFilenameChars.ReplaceAllString(sanitized, "")
	if len(sanitized) > 255 {
		sanitized = sanitized[:255]
	}
	return sanitized
}

// VerifyFileExists checks if the file exists at the given path and is not
// a directory.
func VerifyFileExists(dir, filename string) bool {
	safePath := filepath.Join(dir, filename)
	info, err := os.Stat(safePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
