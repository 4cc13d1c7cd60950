package docstore

import (
	"fmt"

	"github.com/minio/highwayhash"
)

// checksumKey is the fixed HighwayHash key for payload checksums.
// Arbitrary but permanent: checksums are verified across process
// restarts against values stored in the database.
var checksumKey = []byte("topotrack/docstore/checksum/v1!!")

// Checksum returns a 64-bit HighwayHash of data as a fixed-width hex
// string. It guards against torn or bit-rotted payloads, not against
// an adversary; the keyed hash just keeps values stable and cheap.
func Checksum(data []byte) (string, error) {
	h, err := highwayhash.New64(checksumKey)
	if err != nil {
		return "", fmt.Errorf("init checksum: %w", err)
	}
	if _, err := h.Write(data); err != nil {
		return "", fmt.Errorf("checksum payload: %w", err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
