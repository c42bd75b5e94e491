// Package bitmap provides utilities for operating on densely-packed arrays of
// booleans. Key material at every stage of the QKD pipeline is held in a
// Dense.
package bitmap

import (
	"fmt"
	"math/bits"
	"strings"
)

const byteSize = 8

// Empty returns an empty, dense bitmap.
func Empty() Dense {
	return Dense{}
}

// FromString converts a string of '1's and '0's to a Dense. Spaces are
// ignored, so "1010 0110" is a valid 8-bit representation.
func FromString(s string) (Dense, error) {
	d := Dense{}
	for _, c := range s {
		switch c {
		case '1':
			d.AppendBit(true)
		case '0':
			d.AppendBit(false)
		case ' ':
			continue
		default:
			return Dense{}, fmt.Errorf("invalid bitmap string rep: %s", s)
		}
	}
	return d, nil
}

// FromBools packs a slice of booleans into a Dense.
func FromBools(b []bool) Dense {
	d := Dense{bits: make([]byte, 0, BytesFor(len(b)))}
	for _, v := range b {
		d.AppendBit(v)
	}
	return d
}

// Select selects a subset of bits from data, according to which bits are set
// in mask. Positions past the end of mask are dropped.
func Select(data, mask Dense) Dense {
	var d Dense
	for i := 0; i < data.Size(); i++ {
		if !mask.Get(i) {
			continue
		}
		d.AppendBit(data.Get(i))
	}
	return d
}

// CountOnes returns the total number of bits set in d.
func CountOnes(d Dense) int {
	var sum int
	for _, b := range d.bits {
		sum += bits.OnesCount8(b)
	}
	return sum
}

// BytesFor returns the number of bytes necessary to hold the provided number of
// bits.
func BytesFor(bits int) int {
	return (bits + byteSize - 1) / byteSize
}

// String renders d as '0'/'1' runs of eight, the inverse of FromString.
func (d Dense) String() string {
	var sb strings.Builder
	for i := 0; i < d.len; i++ {
		if i > 0 && i%byteSize == 0 {
			sb.WriteByte(' ')
		}
		if d.Get(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
