package library

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeVector turns the portable embedding encoding (base64 of a
// little-endian float32 array) into a vector.
func DecodeVector(encoded string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64 vector: %w", err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("vector byte length %d is not a multiple of 4", len(raw))
	}
	vector := make([]float32, len(raw)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vector, nil
}

// EncodeVector is the inverse of DecodeVector. The round trip is bit exact.
func EncodeVector(vector []float32) string {
	raw := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func cloneVector(values []float32) []float32 {
	if values == nil {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
