package knowledge

import (
	"errors"
	"fmt"
	"math/rand"
)

// Sampler generates negative triples by replacing the head or the tail of
// a positive triple with a uniformly drawn entity.
//
// Without a retry limit Corrupt loops until it finds a triple outside the
// known set. On a graph where nearly every substitution is already a
// positive this can take arbitrarily long, and it can never finish if every
// substitution is one.
type Sampler struct {
	known      KnownSet
	entities   []int64
	rng        *rand.Rand
	maxRetries int
}

// SamplerOption configures a Sampler
type SamplerOption func(*Sampler)

// WithMaxRetries bounds the number of substitutions Corrupt tries.
// n <= 0 keeps the loop unbounded.
func WithMaxRetries(n int) SamplerOption {
	return func(s *Sampler) {
		s.maxRetries = n
	}
}

// NewSampler creates a sampler drawing replacements from entities
func NewSampler(known KnownSet, entities []int64, rng *rand.Rand, opts ...SamplerOption) (*Sampler, error) {
	if len(entities) == 0 {
		return nil, errors.New("sampler needs at least one entity")
	}
	s := &Sampler{
		known:    known,
		entities: entities,
		rng:      rng,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Corrupt returns a copy of t with either the head (draw > 0.5) or the tail
// replaced so that the result is not a known positive. The relation is
// never changed.
func (s *Sampler) Corrupt(t Triple) (Triple, error) {
	neg := t
	corruptHead := s.rng.Float64() > 0.5

	for tries := 0; s.known.Contains(neg); tries++ {
		if s.maxRetries > 0 && tries >= s.maxRetries {
			return Triple{}, fmt.Errorf("%w: %d draws for %+v", ErrSamplerExhausted, tries, t)
		}
		e := s.entities[s.rng.Intn(len(s.entities))]
		if corruptHead {
			neg.Head = e
		} else {
			neg.Tail = e
		}
	}
	return neg, nil
}
