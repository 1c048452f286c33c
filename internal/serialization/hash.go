package serialization

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/dchest/siphash"
)

// HashFileName returns the alias used on disk for stream names that are too
// long for the filesystem: the lowercase hex SipHash-2-4-128 of the name.
func HashFileName(name string) string {
	lo, hi := siphash.Hash128(0, 0, []byte(name))
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], lo)
	binary.LittleEndian.PutUint64(b[8:], hi)
	return hex.EncodeToString(b[:])
}

// StreamNameForWrite picks the name a writer uses for a new stream: the
// natural name, or its hash when replaceLong is set and the name exceeds
// maxLen bytes.
func StreamNameForWrite(fullName string, replaceLong bool, maxLen int) string {
	if replaceLong && maxLen > 0 && len(fullName) > maxLen {
		return HashFileName(fullName)
	}
	return fullName
}
