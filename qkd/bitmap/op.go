package bitmap

import "fmt"

// XOr returns the bitwise XOR of two bitmaps. The shorter operand is padded
// with implicit zeros.
func XOr(a, b Dense) Dense {
	short, long := a, b
	if b.len < a.len {
		short, long = b, a
	}
	r := Dense{
		bits: make([]byte, 0, BytesFor(long.len)),
		len:  long.len,
	}
	for i := range short.bits {
		r.bits = append(r.bits, a.bits[i]^b.bits[i])
	}
	r.bits = append(r.bits, long.bits[len(short.bits):]...)
	return r
}

// And returns the bitwise AND of two bitmaps, truncated to the shorter one.
func And(a, b Dense) Dense {
	short := a
	if b.len < a.len {
		short = b
	}
	r := Dense{
		bits: make([]byte, 0, BytesFor(short.len)),
		len:  short.len,
	}
	for i := range short.bits {
		r.bits = append(r.bits, a.bits[i]&b.bits[i])
	}
	return r
}

// Slice copies the bits [start, end) of d into a new bitmap.
func Slice(d Dense, start, end int) (Dense, error) {
	if start < 0 {
		return Dense{}, fmt.Errorf("slicing bitmap with negative start: %d", start)
	}
	if end < start {
		return Dense{}, fmt.Errorf("slicing bitmap to negative length: %d", end-start)
	}
	if end > d.len {
		return Dense{}, fmt.Errorf("slicing bitmap of len %d up to %d", d.len, end)
	}
	if start%byteSize == 0 {
		j := start / byteSize
		return NewDense(d.bits[j:j+BytesFor(end-start)], end-start), nil
	}
	r := Dense{bits: make([]byte, 0, BytesFor(end-start))}
	for i := start; i < end; i++ {
		r.AppendBit(d.Get(i))
	}
	return r, nil
}

// Prefix returns a copy of the first n bits of d. n is clamped to [0, d.Size()].
func Prefix(d Dense, n int) Dense {
	if n < 0 {
		n = 0
	}
	if n > d.len {
		n = d.len
	}
	r, _ := Slice(d, 0, n)
	return r
}
