package soap

import (
	"encoding/binary"
	"fmt"
)

// DecodeUint32Array decodes a packed big-endian uint32 array as used by
// OpenHome id arrays (the base64 payload of Playlist IdArray, after
// decoding). The input length must be a multiple of 4.
func DecodeUint32Array(data []byte) ([]uint32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("uint32 array length %d is not a multiple of 4", len(data))
	}
	values := make([]uint32, 0, len(data)/4)
	for i := 0; i < len(data); i += 4 {
		values = append(values, binary.BigEndian.Uint32(data[i:i+4]))
	}
	return values, nil
}

// EncodeUint32Array encodes values as a packed big-endian uint32 array.
func EncodeUint32Array(values []uint32) []byte {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint32(data[4*i:], v)
	}
	return data
}
