// Package identity derives document IDs from raw log lines.
//
// An ID is the first IDLength hex characters of the SHA-256 digest of the
// line's exact bytes. Byte-identical lines always map to the same ID, which
// makes reloading a file idempotent. The truncation keeps 44 bits of the
// digest, so distinct lines can collide once an index holds millions of
// documents; widening it would change every ID already stored.
//
// The hash covers bytes, not the decoded document. A line holding invalid
// UTF-8 is stored with U+FFFD in place of the bad bytes, so its document
// does not reproduce the hashed line.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// IDLength is the number of hex characters kept from the digest.
const IDLength = 11

// DocumentID returns the document ID for raw.
func DocumentID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:(IDLength+1)/2])[:IDLength]
}
