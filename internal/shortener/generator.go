package shortener

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/jaevor/go-nanoid"
)

// Alphabet is the set of symbols generated codes are drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultCodeLength is the length of generated codes.
const DefaultCodeLength = 6

// CodeGenerator draws a fresh random code.
type CodeGenerator func() string

// NewNanoidGenerator returns a generator backed by crypto/rand through nanoid.
func NewNanoidGenerator(length int) (CodeGenerator, error) {
	if length < 1 {
		return nil, fmt.Errorf("invalid code length %d", length)
	}

	gen, err := nanoid.CustomASCII(Alphabet, length)
	if err != nil {
		return nil, err
	}

	return CodeGenerator(gen), nil
}

// NewRandomGenerator returns a generator drawing each character uniformly from rng.
// Seeding rng makes the sequence of codes reproducible.
func NewRandomGenerator(rng *rand.Rand, length int) CodeGenerator {
	var mu sync.Mutex

	return func() string {
		mu.Lock()
		defer mu.Unlock()

		code := make([]byte, length)
		for i := range code {
			code[i] = Alphabet[rng.IntN(len(Alphabet))]
		}

		return string(code)
	}
}
