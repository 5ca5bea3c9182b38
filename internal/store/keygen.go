// internal/store/keygen.go
package store

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateKey produces an opaque license key of the form BLDR-XXXX-XXXX-XXXX.
func GenerateKey() string {
	var b strings.Builder
	b.WriteString("BLDR")
	for seg := 0; seg < 3; seg++ {
		b.WriteByte('-')
		for i := 0; i < 4; i++ {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(keyAlphabet))))
			if err != nil {
				// crypto/rand only fails when the platform source is broken
				panic(err)
			}
			b.WriteByte(keyAlphabet[n.Int64()])
		}
	}
	return b.String()
}
