package bitmap

import "golang.org/x/exp/rand"

// A Dense is a bitmap where every bit is explicitly represented. Bits past
// the length are always zero, so byte-wise operations never see garbage.
// Copies of a Dense share storage; Clone before mutating one that is still
// referenced elsewhere.
type Dense struct {
	bits []byte
	len  int
}

// NewDense returns a new dense bitmap holding a copy of data, whose length is
// bitLen. If bitLen is longer than data, then trailing zeros are added. If
// bitLen is negative, then it is inferred from data.
func NewDense(data []byte, bitLen int) Dense {
	if bitLen < 0 {
		bitLen = len(data) * byteSize
	}
	r := Dense{
		bits: make([]byte, BytesFor(bitLen)),
		len:  bitLen,
	}
	copy(r.bits, data)
	r.clearTail()
	return r
}

// Get returns the i-th bit in this bitmap. Out of range positions read as
// zero.
func (d Dense) Get(i int) bool {
	if i < 0 || i >= d.len {
		return false
	}
	j, pos := i/byteSize, i%byteSize
	return 0 < d.bits[j]&(1<<pos)
}

// Size returns the number of bits in this bitmap.
func (d Dense) Size() int {
	return d.len
}

// SizeBytes returns the number of bytes backing this bitmap.
func (d Dense) SizeBytes() int {
	return BytesFor(d.len)
}

// Clone returns a deep copy of d.
func (d Dense) Clone() Dense {
	return NewDense(d.bits, d.len)
}

// Shuffle randomly permutes the contents of d, using r as a source of
// randomness.
func (d *Dense) Shuffle(r *rand.Rand) {
	r.Shuffle(d.len, d.swap)
}

func (d *Dense) swap(i, j int) {
	a, b := d.Get(i), d.Get(j)
	if a == b {
		return
	}
	d.Flip(i)
	d.Flip(j)
}

// Flip inverts the i-th bit.
func (d *Dense) Flip(i int) {
	j, pos := i/byteSize, i%byteSize
	d.bits[j] ^= 1 << pos
}

// AppendBit adds a single bit to the end of d.
func (d *Dense) AppendBit(bit bool) {
	i, pos := d.len/byteSize, d.len%byteSize
	d.len++
	if pos == 0 {
		d.bits = append(d.bits, 0)
	}
	if bit {
		d.bits[i] |= 1 << pos
	}
}

func (d *Dense) clearTail() {
	off := d.len % byteSize
	if off == 0 {
		return
	}
	d.bits[len(d.bits)-1] &= 0xFF >> (byteSize - off)
}
