package businessflow

import (
	"crypto/rand"
	"math/big"
	"slices"
)

// RandomSource yields a uniformly distributed integer in [0, n)
type RandomSource interface {
	IntN(n int) int
}

// SelectionPolicy picks one applicant when the sponsor did not select in time
type SelectionPolicy interface {
	Choose(applicants []string) (string, error)
}

// UniformSelectionPolicy gives every applicant the same chance
type UniformSelectionPolicy struct {
	Source RandomSource
}

// NewUniformSelectionPolicy creates a uniform policy over the given source
func NewUniformSelectionPolicy(source RandomSource) *UniformSelectionPolicy {
	return &UniformSelectionPolicy{Source: source}
}

// Choose returns one of the applicants. The input is sorted first so the
// outcome depends only on the random source.
func (p *UniformSelectionPolicy) Choose(applicants []string) (string, error) {
	if len(applicants) == 0 {
		return "", NewBusinessError(KindState, "NO_APPLICANTS", "No applicants to choose from", ErrNoApplicants)
	}
	if p.Source == nil {
		return "", NewBusinessError(KindInternal, "RANDOM_SOURCE_MISSING", "Selection policy has no random source", nil)
	}

	sorted := slices.Clone(applicants)
	slices.Sort(sorted)

	idx := p.Source.IntN(len(sorted))
	if idx < 0 || idx >= len(sorted) {
		return "", NewBusinessErrorf(KindInternal, "RANDOM_SOURCE_OUT_OF_RANGE", "Random source returned %d for %d applicants", nil, idx, len(sorted))
	}
	return sorted[idx], nil
}

// CryptoRandomSource draws from crypto/rand
type CryptoRandomSource struct{}

func (CryptoRandomSource) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return int(v.Int64())
}
