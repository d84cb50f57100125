package toptokens

import (
	"fmt"
	"hash/fnv"
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

// HashAlgorithm names a stable token hash. Both algorithms are seedless, so a
// token maps to the same bucket in every process and every pipeline stage.
type HashAlgorithm string

const (
	// HashXXH64 is xxHash64 with seed 0. Default.
	HashXXH64 HashAlgorithm = "xxhash64"
	// HashFNV1a64 is 64-bit FNV-1a.
	HashFNV1a64 HashAlgorithm = "fnv1a64"
)

// DefaultHash is used when no algorithm is configured.
const DefaultHash = HashXXH64

// HashAlgorithms lists the supported algorithms.
func HashAlgorithms() []HashAlgorithm {
	return []HashAlgorithm{HashXXH64, HashFNV1a64}
}

// Hasher assigns tokens to buckets.
type Hasher struct {
	algo HashAlgorithm
	sum  func(string) uint64
}

// NewHasher returns the Hasher for algo. An empty algo selects DefaultHash.
func NewHasher(algo HashAlgorithm) (Hasher, error) {
	switch algo {
	case "", HashXXH64:
		return Hasher{algo: HashXXH64, sum: xxhash.Sum64String}, nil
	case HashFNV1a64:
		return Hasher{algo: HashFNV1a64, sum: fnv1a64}, nil
	default:
		return Hasher{}, fmt.Errorf("%w: %q", ErrUnknownHash, algo)
	}
}

// Algorithm returns the algorithm name.
func (h Hasher) Algorithm() HashAlgorithm {
	return h.algo
}

// Sum64 hashes the token's bytes.
func (h Hasher) Sum64(token string) uint64 {
	return h.sum(token)
}

// Bucket returns hash(token) mod m.
func (h Hasher) Bucket(token string, m int) int {
	return int(h.sum(token) % uint64(m))
}

// SubBucket splits an already-bucketed hash further. Level 1 uses the bits
// above the bucket index, (sum / m) mod fanout; each further level divides by
// fanout again. Tokens of one bucket therefore spread across sub-buckets even
// though they all share sum mod m. Once the divisor passes 2^64 no hash bits
// are left and every token lands in sub-bucket 0.
func SubBucket(sum uint64, m, fanout, level int) int {
	div, ok := SplitDivisor(m, fanout, level)
	if !ok {
		return 0
	}
	return int((sum / div) % uint64(fanout))
}

// SplitDivisor returns m * fanout^(level-1), the divisor SubBucket uses at
// level. ok is false when the product does not fit in 64 bits.
func SplitDivisor(m, fanout, level int) (div uint64, ok bool) {
	div = uint64(m)
	for i := 1; i < level; i++ {
		hi, lo := bits.Mul64(div, uint64(fanout))
		if hi != 0 {
			return 0, false
		}
		div = lo
	}
	return div, true
}

func fnv1a64(token string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(token))
	return h.Sum64()
}
