package hsync

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Algorithm names a supported checksum algorithm.
type Algorithm string

const (
	AlgoMD5     Algorithm = "md5"
	AlgoSHA1    Algorithm = "sha1"
	AlgoSHA256  Algorithm = "sha256"
	AlgoBLAKE2b Algorithm = "blake2b"
)

// ParseAlgorithm validates a checksum algorithm name, case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(s)) {
	case AlgoMD5:
		return AlgoMD5, nil
	case AlgoSHA1:
		return AlgoSHA1, nil
	case AlgoSHA256:
		return AlgoSHA256, nil
	case AlgoBLAKE2b:
		return AlgoBLAKE2b, nil
	default:
		return "", fmt.Errorf("unknown checksum algorithm %q (want md5, sha1, sha256 or blake2b)", s)
	}
}

func (a Algorithm) String() string { return string(a) }

// NewHasher returns a fresh hash state for the algorithm. Digests are
// rendered as lowercase hex by the caller via hex.EncodeToString.
func NewHasher(a Algorithm) (hash.Hash, error) {
	switch a {
	case AlgoMD5:
		return md5.New(), nil
	case AlgoSHA1:
		return sha1.New(), nil
	case AlgoSHA256:
		return sha256.New(), nil
	case AlgoBLAKE2b:
		h, err := blake2b.New512(nil)
		if err != nil {
			return nil, fmt.Errorf("creating blake2b hasher: %w", err)
		}
		return h, nil
	default:
		return nil, fmt.Errorf("unknown checksum algorithm %q", a)
	}
}
