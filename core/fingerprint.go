package core

import (
	"encoding/hex"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// FingerprintPrefix tags fingerprints with the hash that produced them.
const FingerprintPrefix = "blake2b-256:"

// ContentFingerprint hashes the canonical header and the body. Leading and
// trailing whitespace of the body is ignored so rewriting a file does not
// change the fingerprint.
func ContentFingerprint(fm *FrontMatter, body string) string {
	h, _ := blake2b.New(32, nil)
	h.Write(fm.Canonical())
	h.Write([]byte{'\n'})
	h.Write([]byte(strings.TrimSpace(body)))
	return FingerprintPrefix + hex.EncodeToString(h.Sum(nil))
}
