package bucket

// DefaultPartSize is the fixed part size used when no override is given.
// 5 MiB matches the common object-storage multipart minimum.
const DefaultPartSize = 5 * 1024 * 1024

// DefaultConcurrency bounds how many part PUTs run in flight at once.
const DefaultConcurrency = 3

// partRange describes one part of the upload plan: a one-based part number
// and the byte range it covers.
type partRange struct {
	Number int
	Offset int64
	Length int64
}

// planParts splits size bytes into ceil(size/partSize) contiguous ranges.
// Every part is exactly partSize bytes except the final one, which carries
// the remainder. The ranges sum to size exactly. A zero-byte file still
// yields a single empty part so the multipart session has something to
// finalize.
func planParts(size, partSize int64) []partRange {
	if size == 0 {
		return []partRange{{Number: 1, Offset: 0, Length: 0}}
	}

	count := int((size + partSize - 1) / partSize)
	parts := make([]partRange, 0, count)

	var offset int64
	for n := 1; n <= count; n++ {
		length := partSize
		if offset+length > size {
			length = size - offset
		}
		parts = append(parts, partRange{Number: n, Offset: offset, Length: length})
		offset += length
	}

	return parts
}
