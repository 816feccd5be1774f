// Package digest implements the 256-bit hash and keyed MAC used for license
// signing and key derivation.
//
// The hash is a Merkle-Damgard compression-function design with SHA-256
// semantics: 64-byte blocks, 64 mixing rounds over eight 32-bit accumulators,
// fixed round constants, and majority/choice/sigma mixing functions. The MAC
// is the standard nested construction over it (0x36/0x5c pads).
//
// It is deliberately written from scratch with no crypto imports so the
// signing path stays auditable and keeps working in runtimes where parts of
// the platform libraries are sandboxed away. For messages shorter than 2^32
// bits the output is bit-identical to SHA-256 / HMAC-SHA256, which is what
// the known-answer tests pin it to.
package digest

const (
	// BlockSize is the compression function input size in bytes.
	BlockSize = 64
	// Size is the digest length in bytes.
	Size = 32
)

// Fractional parts of the cube roots of the first 64 primes.
var roundConstants = [64]uint32{
	0x428a2f98, 0x71374491, 0xb5c0fbcf, 0xe9b5dba5, 0x3956c25b, 0x59f111f1, 0x923f82a4, 0xab1c5ed5,
	0xd807aa98, 0x12835b01, 0x243185be, 0x550c7dc3, 0x72be5d74, 0x80deb1fe, 0x9bdc06a7, 0xc19bf174,
	0xe49b69c1, 0xefbe4786, 0x0fc19dc6, 0x240ca1cc, 0x2de92c6f, 0x4a7484aa, 0x5cb0a9dc, 0x76f988da,
	0x983e5152, 0xa831c66d, 0xb00327c8, 0xbf597fc7, 0xc6e00bf3, 0xd5a79147, 0x06ca6351, 0x14292967,
	0x27b70a85, 0x2e1b2138, 0x4d2c6dfc, 0x53380d13, 0x650a7354, 0x766a0abb, 0x81c2c92e, 0x92722c85,
	0xa2bfe8a1, 0xa81a664b, 0xc24b8b70, 0xc76c51a3, 0xd192e819, 0xd6990624, 0xf40e3585, 0x106aa070,
	0x19a4c116, 0x1e376c08, 0x2748774c, 0x34b0bcb5, 0x391c0cb3, 0x4ed8aa4a, 0x5b9cca4f, 0x682e6ff3,
	0x748f82ee, 0x78a5636f, 0x84c87814, 0x8cc70208, 0x90befffa, 0xa4506ceb, 0xbef9a3f7, 0xc67178f2,
}

// Fractional parts of the square roots of the first 8 primes.
var initialState = [8]uint32{
	0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a, 0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19,
}

func rotr(x uint32, n uint) uint32 {
	return x>>n | x<<(32-n)
}

// compress folds one 64-byte block into the accumulator state.
func compress(state *[8]uint32, block []byte) {
	var w [64]uint32
	for i := 0; i < 16; i++ {
		j := i * 4
		w[i] = uint32(block[j])<<24 | uint32(block[j+1])<<16 | uint32(block[j+2])<<8 | uint32(block[j+3])
	}
	for i := 16; i < 64; i++ {
		s0 := rotr(w[i-15], 7) ^ rotr(w[i-15], 18) ^ w[i-15]>>3
		s1 := rotr(w[i-2], 17) ^ rotr(w[i-2], 19) ^ w[i-2]>>10
		w[i] = w[i-16] + s0 + w[i-7] + s1
	}

	a, b, c, d, e, f, g, h := state[0], state[1], state[2], state[3], state[4], state[5], state[6], state[7]

	for i := 0; i < 64; i++ {
		sigma1 := rotr(e, 6) ^ rotr(e, 11) ^ rotr(e, 25)
		choice := (e & f) ^ (^e & g)
		t1 := h + sigma1 + choice + roundConstants[i] + w[i]
		sigma0 := rotr(a, 2) ^ rotr(a, 13) ^ rotr(a, 22)
		majority := (a & b) ^ (a & c) ^ (b & c)
		t2 := sigma0 + majority

		h = g
		g = f
		f = e
		e = d + t1
		d = c
		c = b
		b = a
		a = t1 + t2
	}

	state[0] += a
	state[1] += b
	state[2] += c
	state[3] += d
	state[4] += e
	state[5] += f
	state[6] += g
	state[7] += h
}

// pad appends the 1 bit, zero fill, and the big-endian bit length. Only the
// low 32 bits of the length field are populated, which caps messages at
// 2^29 bytes; license payloads are a few hundred bytes.
func pad(message []byte) []byte {
	bitLen := uint64(len(message)) * 8
	padded := make([]byte, 0, len(message)+BlockSize+9)
	padded = append(padded, message...)
	padded = append(padded, 0x80)
	for len(padded)%BlockSize != 56 {
		padded = append(padded, 0x00)
	}
	padded = append(padded, 0, 0, 0, 0,
		byte(bitLen>>24), byte(bitLen>>16), byte(bitLen>>8), byte(bitLen))
	return padded
}

// Sum returns the 256-bit digest of message.
func Sum(message []byte) [Size]byte {
	state := initialState
	padded := pad(message)
	for i := 0; i < len(padded); i += BlockSize {
		compress(&state, padded[i:i+BlockSize])
	}

	var out [Size]byte
	for i, v := range state {
		out[i*4] = byte(v >> 24)
		out[i*4+1] = byte(v >> 16)
		out[i*4+2] = byte(v >> 8)
		out[i*4+3] = byte(v)
	}
	return out
}

const hexDigits = "0123456789abcdef"

func toHex(sum [Size]byte) string {
	out := make([]byte, Size*2)
	for i, b := range sum {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}

// Hex returns the digest of message as a lowercase hex string.
func Hex(message []byte) string {
	return toHex(Sum(message))
}

// HexString is a convenience wrapper over Hex for string input. Callers are
// responsible for rejecting malformed UTF-8 at their own boundary; the hash
// itself operates on raw bytes and never fails.
func HexString(message string) string {
	return Hex([]byte(message))
}

// MAC computes the keyed digest of message using the nested construction:
// the key is hashed down if longer than one block, zero-padded to the block
// size, and combined with the 0x36 inner and 0x5c outer pads.
func MAC(key, message string) string {
	keyBytes := []byte(key)
	if len(keyBytes) > BlockSize {
		sum := Sum(keyBytes)
		keyBytes = sum[:]
	}

	padded := make([]byte, BlockSize)
	copy(padded, keyBytes)

	inner := make([]byte, BlockSize, BlockSize+len(message))
	outer := make([]byte, BlockSize, BlockSize+Size)
	for i, b := range padded {
		inner[i] = b ^ 0x36
		outer[i] = b ^ 0x5c
	}

	innerSum := Sum(append(inner, message...))
	return toHex(Sum(append(outer, innerSum[:]...)))
}

// Equal reports whether two hex digests match, comparing every byte so the
// comparison time does not leak the position of the first mismatch.
func Equal(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := 0; i < len(a); i++ {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
