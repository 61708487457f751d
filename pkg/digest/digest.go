// Package digest computes the SHA-256 content fingerprint recorded with every
// transfer. Output is always 64 lowercase hex characters.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"strings"
)

// HexLength is the length of a rendered digest.
const HexLength = sha256.Size * 2

func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Reader consumes r and returns its digest and the number of bytes read.
func Reader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Tee hashes everything read through it. Call Sum once the consumer is done.
type Tee struct {
	r io.Reader
	h hash.Hash
	n int64
}

func NewTee(r io.Reader) *Tee {
	return &Tee{r: r, h: sha256.New()}
}

func (t *Tee) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		t.h.Write(p[:n])
		t.n += int64(n)
	}
	return n, err
}

func (t *Tee) Sum() string {
	return hex.EncodeToString(t.h.Sum(nil))
}

func (t *Tee) BytesRead() int64 {
	return t.n
}

// Valid reports whether s looks like a rendered digest.
func Valid(s string) bool {
	if len(s) != HexLength {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

// Equal compares two digests ignoring hex case.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}
