// Package keys derives object-storage keys for document versions.
//
// Every key for (case, document, version) lives under Prefix(case, document,
// version); finalize refuses keys outside that prefix.
package keys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const maxFilenameBytes = 128

// ErrInvalidComponent is returned for ids that are empty or contain a slash.
var ErrInvalidComponent = errors.New("invalid key component")

// Builder builds keys under a fixed namespace.
type Builder struct {
	namespace string
	nonce     func() string
}

// NewBuilder returns a builder rooted at namespace. Nonces are random UUIDs.
func NewBuilder(namespace string) *Builder {
	return &Builder{
		namespace: strings.Trim(namespace, "/"),
		nonce:     uuid.NewString,
	}
}

// WithNonce returns a copy that draws nonces from fn.
func (b *Builder) WithNonce(fn func() string) *Builder {
	c := *b
	c.nonce = fn
	return &c
}

// Prefix returns the key prefix owned by (caseID, documentID, version).
func (b *Builder) Prefix(caseID, documentID string, version int) (string, error) {
	if err := checkComponent(caseID); err != nil {
		return "", fmt.Errorf("case id: %w", err)
	}
	if err := checkComponent(documentID); err != nil {
		return "", fmt.Errorf("document id: %w", err)
	}
	if version < 1 {
		return "", fmt.Errorf("version %d: %w", version, ErrInvalidComponent)
	}

	p := fmt.Sprintf("cases/%s/documents/%s/v%d/", caseID, documentID, version)
	if b.namespace != "" {
		p = b.namespace + "/" + p
	}
	return p, nil
}

// Build returns a fresh key for one upload attempt of filename.
func (b *Builder) Build(caseID, documentID string, version int, filename string) (string, error) {
	prefix, err := b.Prefix(caseID, documentID, version)
	if err != nil {
		return "", err
	}
	return prefix + b.nonce() + "/" + SanitizeFilename(filename), nil
}

// Contains reports whether key was issued for (caseID, documentID, version).
func (b *Builder) Contains(key, caseID, documentID string, version int) bool {
	prefix, err := b.Prefix(caseID, documentID, version)
	if err != nil {
		return false
	}
	rest, ok := strings.CutPrefix(key, prefix)
	// the remainder must stay inside the prefix directory
	return ok && rest != "" && !strings.Contains(rest, "..")
}

// SanitizeFilename keeps [A-Za-z0-9._-], replaces runs of anything else with
// '_', collapses repeated dots and caps the result at 128 bytes.
func SanitizeFilename(name string) string {
	var sb strings.Builder
	underscore, dot := false, false
	for _, r := range name {
		switch {
		case r == '.':
			if !dot {
				sb.WriteRune(r)
			}
			underscore, dot = false, true
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
			underscore, dot = r == '_', false
		default:
			if !underscore {
				sb.WriteByte('_')
				underscore = true
			}
			dot = false
		}
	}

	s := strings.Trim(sb.String(), "._")
	if len(s) > maxFilenameBytes {
		s = s[len(s)-maxFilenameBytes:]
	}
	if s == "" {
		return "file"
	}
	return s
}

func checkComponent(id string) error {
	if id == "" || strings.ContainsAny(id, "/\\") || id == "." || id == ".." {
		return ErrInvalidComponent
	}
	return nil
}
