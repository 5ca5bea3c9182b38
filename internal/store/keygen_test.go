// internal/store/keygen_test.go
package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKey_Format(t *testing.T) {
	for i := 0; i < 100; i++ {
		key := GenerateKey()
		assert.Regexp(t, `^BLDR(-[A-Z0-9]{4}){3}$`, key)
	}
}

func TestGenerateKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		key := GenerateKey()
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}
