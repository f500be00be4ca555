// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package hpo

import (
	"math"
	"math/rand"
)

// Sampler proposes trial configurations. Any strategy that can suggest a
// value per dimension fits behind this interface.
type Sampler interface {
	Sample(space Space) Params
}

// RandomSampler draws each dimension independently: uniform (or
// log-uniform) for floats, uniform integer for ints, uniform choice for
// categoricals. A fixed seed reproduces the full trial sequence.
type RandomSampler struct {
	rng *rand.Rand
}

func NewRandomSampler(seed int64) *RandomSampler {
	return &RandomSampler{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomSampler) Sample(space Space) Params {
	params := make(Params, len(space))
	for _, p := range space {
		switch p.Kind {
		case KindFloat:
			if p.Log {
				lo, hi := math.Log(p.Args[0]), math.Log(p.Args[1])
				params[p.Name] = math.Exp(lo + s.rng.Float64()*(hi-lo))
			} else {
				params[p.Name] = p.Args[0] + s.rng.Float64()*(p.Args[1]-p.Args[0])
			}
		case KindInt:
			lo, hi := int(p.Args[0]), int(p.Args[1])
			params[p.Name] = float64(lo + s.rng.Intn(hi-lo+1))
		case KindCategorical:
			params[p.Name] = p.Args[s.rng.Intn(len(p.Args))]
		}
	}
	return params
}
