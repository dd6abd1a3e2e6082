package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes a float32 vector as a little-endian sequence of IEEE 754
// float32 values, 4 bytes per element, without a length prefix. This is the
// storage and wire format for embeddings; Decode reproduces the original
// vector bit-for-bit.
func Encode(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// Decode deserializes a blob produced by Encode back into a float32 vector.
func Decode(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
