package catalog

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxLabelLen is the maximum allowed session label length in bytes.
	MaxLabelLen = 64
)

// ValidateLabel validates a client-supplied session label. An empty label
// is allowed (Create treats it as "unlabeled" and skips uniqueness
// tracking); a non-empty one must be safe to embed in log lines and the
// catalog file without ambiguity.
func ValidateLabel(label string) error {
	if label == "" {
		return nil
	}

	if !utf8.ValidString(label) {
		return fmt.Errorf("session label must be valid UTF-8")
	}

	if len(label) > MaxLabelLen {
		return fmt.Errorf("session label exceeds maximum length of %d bytes", MaxLabelLen)
	}

	if strings.ContainsRune(label, 0) {
		return fmt.Errorf("session label cannot contain null bytes")
	}
	if strings.ContainsAny(label, "\r\n") {
		return fmt.Errorf("session label cannot contain newlines")
	}

	return nil
}
