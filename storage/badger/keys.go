package badger

import (
	"encoding/binary"

	"github.com/poiesic/groundwork/core"
)

// Key prefixes for different data types
const (
	chunkPrefix    = "chunk"
	resourcePrefix = "resrc"
)

// makeResourceChunkPrefix generates the prefix shared by all chunks of a resource.
// Format: prefix:resourceID\x00
func makeResourceChunkPrefix(id core.ResourceID) []byte {
	prefix := chunkPrefix + ":"
	buf := make([]byte, len(prefix)+len(id)+1)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], id)
	buf[offset] = 0
	return buf
}

// makeChunkKey generates the key for a chunk.
// Format: prefix:resourceID\x00seq
func makeChunkKey(id core.ResourceID, seq int) []byte {
	prefix := makeResourceChunkPrefix(id)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort follows seq
	binary.BigEndian.PutUint64(buf[offset:], uint64(seq))
	return buf
}

// makeResourceKey generates the marker key holding a resource's chunk count.
func makeResourceKey(id core.ResourceID) []byte {
	return []byte(resourcePrefix + ":" + string(id))
}

// resourceIDFromKey extracts the resource ID from a marker key.
func resourceIDFromKey(key []byte) core.ResourceID {
	return core.ResourceID(key[len(resourcePrefix)+1:])
}
