package core

import (
	"encoding/hex"
	"io"

	"github.com/go-crypt/x/blake2b"
)

// FingerprintSize is the digest length in bytes used for content hashes.
const FingerprintSize = 32

// Fingerprint computes the content hash of data as a hex-encoded BLAKE2b-256 digest.
// Identical bytes always produce identical fingerprints.
func Fingerprint(data []byte) string {
	h, _ := blake2b.New(FingerprintSize, nil) // only fails for invalid sizes or keys
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FingerprintReader computes the content hash of everything read from r.
func FingerprintReader(r io.Reader) (string, error) {
	h, _ := blake2b.New(FingerprintSize, nil)
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
