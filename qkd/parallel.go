package qkd

import (
	"encoding/binary"
	"runtime"

	"golang.org/x/crypto/sha3"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

// chunkSize is the number of slots one task simulates. It must not depend on
// the machine, since chunk boundaries decide which random stream each slot
// draws from.
const chunkSize = 1 << 12

// Counters tallies what happened to the events of a run.
type Counters struct {
	Generated    int `json:"generated"`
	Transmitted  int `json:"transmitted"`
	Detected     int `json:"detected"`
	DarkCounts   int `json:"dark_counts"`
	Coincidences int `json:"coincidences"`
	BellPairs    int `json:"bell_pairs"`
}

// Add accumulates o into c.
func (c *Counters) Add(o Counters) {
	c.Generated += o.Generated
	c.Transmitted += o.Transmitted
	c.Detected += o.Detected
	c.DarkCounts += o.DarkCounts
	c.Coincidences += o.Coincidences
	c.BellPairs += o.BellPairs
}

// forEachChunk calls fn for every chunk of the slot range [0, n), in
// parallel, and returns the sum of the counters the calls report. Each chunk
// gets its own random stream derived from seed, label and the chunk index,
// so the outcome does not depend on scheduling. fn must only write to the
// slots in [lo, hi).
func forEachChunk(n int, seed int64, label string, fn func(lo, hi int, r *rand.Rand) Counters) Counters {
	chunks := (n + chunkSize - 1) / chunkSize
	partial := make([]Counters, chunks)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for c := 0; c < chunks; c++ {
		c := c
		g.Go(func() error {
			lo := c * chunkSize
			hi := min(lo+chunkSize, n)
			partial[c] = fn(lo, hi, stream(seed, label, c))
			return nil
		})
	}
	// Tasks never fail.
	_ = g.Wait()

	var total Counters
	for _, p := range partial {
		total.Add(p)
	}
	return total
}

// stream returns an independent PCG generator for the given run seed, stage
// label and index.
func stream(seed int64, label string, index int) *rand.Rand {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(seed))
	binary.LittleEndian.PutUint64(buf[8:], uint64(index))
	h := sha3.NewShake128()
	h.Write(buf[:])
	h.Write([]byte(label))
	var out [8]byte
	h.Read(out[:])
	return rand.New(rand.NewSource(binary.LittleEndian.Uint64(out[:])))
}
