package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
)

const (
	idEntropyBytes = 64
	// IDLength is the length of every id produced by NewID.
	IDLength = 88

	padChar    = '='
	padReplace = '.'
)

var idEncoding = base64.URLEncoding.Strict()

// NewID returns a new session id: 64 random bytes, URL-safe base64, with
// the padding remapped to '.' so the id survives cookies and storage keys
// unescaped.
func NewID() (string, error) {
	b := make([]byte, idEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrIDGeneration, err)
	}
	return strings.ReplaceAll(idEncoding.EncodeToString(b), string(padChar), string(padReplace)), nil
}

// IsValidID reports whether id could have been produced by NewID.
func IsValidID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if !isIDChar(id[i]) {
			return false
		}
	}
	raw, err := idEncoding.DecodeString(strings.ReplaceAll(id, string(padReplace), string(padChar)))
	return err == nil && len(raw) == idEntropyBytes
}

func isIDChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '_', c == padReplace:
		return true
	}
	return false
}
