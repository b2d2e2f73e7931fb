package strutils

import (
	"fmt"
	"strings"
	"unicode"
)

const maxNameLength = 100

// NormalizeRepoName lowercases a repository owner or name and validates its
// character set. Upstream treats repository paths case-insensitively, so
// normalizing here keeps one cache entry per repository.
func NormalizeRepoName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("name is empty")
	}
	if len(name) > maxNameLength {
		return "", fmt.Errorf("name is too long: %d characters", len(name))
	}

	var normalized strings.Builder
	normalized.Grow(len(name))

	for _, char := range name {
		switch {
		case char >= 'a' && char <= 'z', char >= '0' && char <= '9', char == '-', char == '_', char == '.':
			normalized.WriteRune(char)
		case char >= 'A' && char <= 'Z':
			normalized.WriteRune(unicode.ToLower(char))
		default:
			return "", fmt.Errorf("invalid character %q in name. input: '%s'", char, name)
		}
	}

	if normalized.String() == "." || normalized.String() == ".." {
		return "", fmt.Errorf("invalid name. input: '%s'", name)
	}

	return normalized.String(), nil
}
