package shortid

import (
	"crypto/rand"
	"math/big"
)

// Alphabet is the 62-character set short codes are drawn from.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Generate returns a random code of the given length. crypto/rand keeps
// codes unguessable; collision checking is the caller's job.
func Generate(length int) string {
	out := make([]byte, length)
	max := big.NewInt(int64(len(Alphabet)))
	for i := range out {
		n, _ := rand.Int(rand.Reader, max)
		out[i] = Alphabet[n.Int64()]
	}
	return string(out)
}
