// Package rng derives independent deterministic random streams from a
// single master seed.
package rng

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
)

// Context hands out named random streams for one master seed. The same seed
// and tag list always produce the same stream, and distinct tag lists
// produce streams with unrelated state. Components draw from their own
// streams, so changing one generation input (catalog size, date range,
// probabilities) never perturbs draws made elsewhere.
type Context struct {
	seed int64
}

// New returns a Context for the given master seed.
func New(seed int64) *Context {
	return &Context{seed: seed}
}

// Seed returns the master seed.
func (c *Context) Seed() int64 {
	return c.seed
}

// Stream returns a fresh generator for the tag list.
// Derivation: SHA256(seed || 0x00-joined tags), first 16 bytes used as PCG
// state. The PCG algorithm is fixed, so the draw sequence is identical
// across platforms.
func (c *Context) Stream(tags ...string) *rand.Rand {
	h := sha256.New()
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], uint64(c.seed))
	h.Write(seed[:])
	for _, tag := range tags {
		h.Write([]byte{0})
		h.Write([]byte(tag))
	}
	sum := h.Sum(nil)
	hi := binary.BigEndian.Uint64(sum[0:8])
	lo := binary.BigEndian.Uint64(sum[8:16])
	return rand.New(rand.NewPCG(hi, lo))
}
