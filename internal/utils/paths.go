package utils

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/tanq16/multiget/internal/engine"
)

var fileNameRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ]+`)

// SanitizeFileName strips characters that do not belong in a file name.
func SanitizeFileName(name string) string {
	return strings.TrimSpace(fileNameRegex.ReplaceAllString(name, "_"))
}

// ResolveOutputPath picks the artifact path inside dir. An explicit name
// wins, then the server-suggested name, then the last URL path element, then
// "download". The result never escapes dir, and an existing file is never
// reused.
func ResolveOutputPath(dir, explicit, suggested, source string) (string, error) {
	if dir == "" {
		dir = "."
	}
	name := explicit
	if name == "" {
		name = SanitizeFileName(suggested)
	}
	if name == "" {
		if parsed, err := url.Parse(source); err == nil {
			if base := path.Base(parsed.Path); base != "/" && base != "." {
				name = SanitizeFileName(base)
			}
		}
	}
	if name == "" || name == "." || name == ".." {
		name = "download"
	}
	full, err := securejoin.SecureJoin(dir, name)
	if err != nil {
		return "", fmt.Errorf("error resolving output path: %w", err)
	}
	if _, err := os.Stat(full); err == nil {
		full = engine.RenewOutputPath(full)
	}
	return full, nil
}
