package dedupe

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
)

// Algorithm names a full-content hash.
type Algorithm string

const (
	SHA256  Algorithm = "sha256"
	SHA512  Algorithm = "sha512"
	BLAKE2b Algorithm = "blake2b"
	BLAKE2s Algorithm = "blake2s"

	DefaultAlgorithm = SHA256
)

var (
	ErrWeakHash         = errors.New("hash algorithm is not collision resistant")
	ErrUnknownAlgorithm = errors.New("unknown hash algorithm")
)

// ParseAlgorithm accepts one of the supported algorithm names.
// md5 and sha1 are refused with ErrWeakHash.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return DefaultAlgorithm, nil
	case SHA256, SHA512, BLAKE2b, BLAKE2s:
		return a, nil
	case "md5", "sha1":
		return "", fmt.Errorf("%w: %s", ErrWeakHash, a)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

func (a Algorithm) new() (hash.Hash, error) {
	switch a {
	case SHA256, "":
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case BLAKE2b:
		return blake2b.New256(nil)
	case BLAKE2s:
		return blake2s.New256(nil)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
}

const copyBufferSize = 256 * 1024

// HashFile streams the file at path through the algorithm and returns the hex
// digest.
func HashFile(path string, alg Algorithm) (string, error) {
	h, err := alg.new()
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
