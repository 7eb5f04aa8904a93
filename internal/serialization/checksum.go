package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Checksum is the SHA-256 digest of a data section, stored in the fixed
// header at ChecksumOffset.
type Checksum [ChecksumSize]byte

// Sum returns the checksum of a data section.
func Sum(data []byte) Checksum {
	return sha256.Sum256(data)
}

// String returns the first 8 bytes in hex, enough to tell digests apart
// in error messages.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:8])
}

// Verify reports ErrChecksumMismatch when data does not hash to c.
func (c Checksum) Verify(data []byte) error {
	if got := Sum(data); got != c {
		return fmt.Errorf("%w: stored %s, data hashes to %s", ErrChecksumMismatch, c, got)
	}
	return nil
}
