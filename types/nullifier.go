package types

// ChunkSize is the number of nullifier slots tracked by one chunk.
const ChunkSize = 256

// NullifierChunk is a 256-bit spent-flag vector covering the nullifier
// positions [Index*ChunkSize, (Index+1)*ChunkSize).
type NullifierChunk struct {
	Index  uint64   `json:"index" cbor:"0,keyasint"`
	Bitmap [32]byte `json:"bitmap" cbor:"1,keyasint"`
}

// IsSet reports whether bit is flagged as spent. Bits out of range report
// true.
func (c *NullifierChunk) IsSet(bit uint64) bool {
	if bit >= ChunkSize {
		return true
	}
	return c.Bitmap[bit/8]&(1<<(bit%8)) != 0
}

// Set flags bit as spent. Bits are never cleared.
func (c *NullifierChunk) Set(bit uint64) {
	if bit >= ChunkSize {
		return
	}
	c.Bitmap[bit/8] |= 1 << (bit % 8)
}

// Count returns the number of spent bits in the chunk.
func (c *NullifierChunk) Count() int {
	n := 0
	for _, b := range c.Bitmap {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}
