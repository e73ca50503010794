package otp

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// RandomSource yields uniformly distributed integers in [0, n).
type RandomSource interface {
	Intn(n int) (int, error)
}

// CryptoSource draws from crypto/rand.
type CryptoSource struct{}

func (CryptoSource) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("otp: invalid range")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// SequenceSource replays fixed values; it is meant for tests and local
// tooling that need predictable codes.
type SequenceSource struct {
	Values []int
	next   int
}

func (s *SequenceSource) Intn(n int) (int, error) {
	if len(s.Values) == 0 {
		return 0, errors.New("otp: empty sequence")
	}
	v := s.Values[s.next%len(s.Values)]
	s.next++
	return v % n, nil
}
