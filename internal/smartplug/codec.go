package smartplug

import (
	"encoding/binary"
	"fmt"
)

const (
	// initialKey seeds the autokey stream in both directions.
	initialKey byte = 171

	// lengthPrefixSize is the size of the big-endian length header.
	lengthPrefixSize = 4
)

// Encode frames plaintext for the wire: a 4-byte big-endian length of
// plaintext followed by the ciphered bytes. Each ciphered byte becomes the
// key for the next one.
func Encode(plaintext []byte) []byte {
	out := make([]byte, lengthPrefixSize+len(plaintext))
	binary.BigEndian.PutUint32(out, uint32(len(plaintext))) //nolint:gosec // frames are far below 4GiB

	key := initialKey
	for i, b := range plaintext {
		key ^= b
		out[lengthPrefixSize+i] = key
	}
	return out
}

// Decode reverses Encode. The length prefix is stripped but not checked
// against the remaining bytes; devices are known to pad or truncate it.
func Decode(framed []byte) ([]byte, error) {
	if len(framed) < lengthPrefixSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrDecode, len(framed))
	}

	payload := framed[lengthPrefixSize:]
	out := make([]byte, len(payload))

	key := initialKey
	for i, c := range payload {
		out[i] = key ^ c
		key = c
	}
	return out, nil
}
