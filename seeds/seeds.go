// Package seeds derives reproducible child seeds from a run seed.
package seeds

import (
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/cespare/xxhash/v2"
)

// Derive hashes the base seed together with the given parts. The same inputs
// always give the same seed, and different part lists give unrelated seeds.
func Derive(seed int64, parts ...any) int64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))
	_, _ = d.Write(buf[:])
	for _, part := range parts {
		_, _ = d.Write([]byte{0x1f})
		switch v := part.(type) {
		case string:
			_, _ = d.WriteString(v)
		case int:
			binary.LittleEndian.PutUint64(buf[:], uint64(v))
			_, _ = d.Write(buf[:])
		case int64:
			binary.LittleEndian.PutUint64(buf[:], uint64(v))
			_, _ = d.Write(buf[:])
		default:
			_, _ = d.WriteString(fmt.Sprint(v))
		}
	}
	return int64(d.Sum64() & 0x7fffffffffffffff)
}

// New returns a rand.Rand seeded with Derive(seed, parts...).
func New(seed int64, parts ...any) *rand.Rand {
	return rand.New(rand.NewSource(Derive(seed, parts...)))
}
