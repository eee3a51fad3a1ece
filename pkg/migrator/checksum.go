package migrator

import "hash/crc32"

// Checksum returns the CRC-32 (IEEE) checksum of the given content.
//
// The checksum is used purely for change detection. It is computed over the
// exact bytes, so identical content yields identical checksums on every
// platform.
func Checksum(content []byte) uint32 {
	return crc32.ChecksumIEEE(content)
}
