package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// Alphabet leaves out characters that are easy to misread on a stream overlay (0/O, 1/I/L)
	Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	// DefaultIDLength is the length of locally generated ids
	DefaultIDLength = 4

	// MinIDLength is the shortest id accepted from storage or a pairing token
	MinIDLength = 4
)

// ID is an opaque session identifier shared by a display and the controllers paired to it
type ID string

// Valid reports whether the id is long enough to be used as a routing key
func (id ID) Valid() bool {
	return len(id) >= MinIDLength
}

func (id ID) String() string {
	return string(id)
}

// NewID generates a random id of the given length from Alphabet
func NewID(length int) ID {
	if length < MinIDLength {
		length = MinIDLength
	}

	max := big.NewInt(int64(len(Alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(fmt.Sprintf("crypto/rand failed: %v", err))
		}
		b[i] = Alphabet[n.Int64()]
	}
	return ID(b)
}
