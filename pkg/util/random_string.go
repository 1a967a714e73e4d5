package utils

import (
	"math/rand"
	"sync"
)

// https://stackoverflow.com/questions/22892120/how-to-generate-a-random-string-of-a-fixed-length-in-go

// RandomStringGenerator produces short human-readable tags for log lines.
// Not suitable for anything secret.
type RandomStringGenerator struct {
	mut_gen sync.Mutex
	gen     *rand.Rand
}

func CreateRandomStringGenerator(seed int64) *RandomStringGenerator {
	return &RandomStringGenerator{
		mut_gen: sync.Mutex{},
		gen:     rand.New(rand.NewSource(seed)),
	}
}

// No 0/O or l/I, tags are read off terminals
var letters = []rune("123456789abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ")

func (g *RandomStringGenerator) GetRandomString(n int) string {
	g.mut_gen.Lock()
	defer g.mut_gen.Unlock()

	b := make([]rune, n)
	for i := range b {
		b[i] = letters[g.gen.Intn(len(letters))]
	}
	return string(b)
}
