package table

import (
	"fmt"
	"strings"
)

// Characters the store rejects in partition and row keys, besides
// control characters.
const disallowedKeyRunes = `\#%+/`

// KeyFormatError reports a partition or row key containing a character
// the store cannot address. Raised at assignment time, never deferred
// to the write call.
type KeyFormatError struct {
	Key  string
	Rune rune
}

func (e *KeyFormatError) Error() string {
	return fmt.Sprintf("key %q contains disallowed character %q", e.Key, e.Rune)
}

// ValidateKey checks a proposed partition or row key against the store's
// character rules: no control characters and none of \ # % + /.
func ValidateKey(key string) error {
	for _, r := range key {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(disallowedKeyRunes, r) {
			return &KeyFormatError{Key: key, Rune: r}
		}
	}
	return nil
}
