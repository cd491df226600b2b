package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrPathTraversal = fmt.Errorf("path escapes output directory")
	ErrReservedName  = fmt.Errorf("reserved filename not allowed")
)

// Device names Windows refuses as file stems, whatever the extension.
var reservedStems = func() map[string]bool {
	m := map[string]bool{"con": true, "prn": true, "aux": true, "nul": true}
	for i := 1; i <= 9; i++ {
		m[fmt.Sprintf("com%d", i)] = true
		m[fmt.Sprintf("lpt%d", i)] = true
	}
	return m
}()

func isReserved(name string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return reservedStems[strings.ToLower(stem)]
}

// JoinWithin joins name onto dir and rejects results that leave dir or use a
// reserved device name.
func JoinWithin(dir, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, name)
	}
	if isReserved(name) {
		return "", fmt.Errorf("%w: %q", ErrReservedName, name)
	}

	joined := filepath.Join(dir, name)
	rel, err := filepath.Rel(filepath.Clean(dir), joined)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, name)
	}
	return joined, nil
}

// SanitizeFilename makes name safe to use as a single path element.
// Separators become hyphens and shell or Windows metacharacters are dropped.
func SanitizeFilename(name string) string {
	s := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '-'
		case '*', '?', '"', '<', '>', '|', 0:
			return -1
		}
		return r
	}, name)
	s = strings.TrimRight(strings.TrimLeft(s, ".-"), ". ")

	switch {
	case s == "":
		return "image"
	case isReserved(s):
		return s + "_"
	}
	return s
}
