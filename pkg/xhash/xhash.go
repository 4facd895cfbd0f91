// Package xhash provides the 63-bit hash primitives shared by the
// concurrent map, string pool, and feature table: a strong 64-bit hash
// over byte buffers with the top bit cleared, and the bit-reversal used
// to derive split-ordered keys.
package xhash

import "github.com/cespare/xxhash/v2"

// signBit is the top bit reserved by every hash this package produces.
const signBit = uint64(1) << 63

// Sum returns a 63-bit hash of data: the top bit of the underlying
// 64-bit hash is always cleared.
func Sum(data []byte) uint64 {
	return xxhash.Sum64(data) &^ signBit
}

// SumString is Sum without a byte-slice copy for the common case of
// hashing a string.
func SumString(s string) uint64 {
	return xxhash.Sum64String(s) &^ signBit
}

// Combine folds a sequence of 63-bit hashes (e.g. per-item feature
// hashes) into a single 63-bit hash, used to build composite feature
// keys out of a name hash and one or more item hashes.
func Combine(parts ...uint64) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, p := range parts {
		putUint64(buf[:], p)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64() &^ signBit
}

func putUint64(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}

// BitReverse64 reverses the bits of x: the same transform pkg/cmap
// applies, through its own unexported copy, to compute the
// split-ordered list position of a hash key.
func BitReverse64(x uint64) uint64 {
	x = (x&0x5555555555555555)<<1 | (x&0xAAAAAAAAAAAAAAAA)>>1
	x = (x&0x3333333333333333)<<2 | (x&0xCCCCCCCCCCCCCCCC)>>2
	x = (x&0x0F0F0F0F0F0F0F0F)<<4 | (x&0xF0F0F0F0F0F0F0F0)>>4
	x = (x&0x00FF00FF00FF00FF)<<8 | (x&0xFF00FF00FF00FF00)>>8
	x = (x&0x0000FFFF0000FFFF)<<16 | (x&0xFFFF0000FFFF0000)>>16
	x = (x << 32) | (x >> 32)
	return x
}
