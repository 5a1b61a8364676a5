// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package degree samples the composition of encoded blocks: how many slices
// a block combines and which ones.
package degree

import (
	"slices"

	"github.com/zeebo/mwc"
)

// Rand is the source of randomness used for sampling. *rand.Rand from
// math/rand satisfies it.
type Rand interface {
	// Intn returns a uniform value in [0, n).
	Intn(n int) int
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
}

// floatSteps keeps Intn within 32 bit ints.
const floatSteps = 1 << 30

type mwcRand struct{}

func (mwcRand) Intn(n int) int { return mwc.Intn(n) }

func (mwcRand) Float64() float64 { return float64(mwc.Intn(floatSteps)) / floatSteps }

// Default is a goroutine safe Rand backed by a fast multiply-with-carry
// generator.
var Default Rand = mwcRand{}

// Distribution is an Ideal Soliton distribution over the degrees [1, k].
type Distribution struct {
	cdf []float64
}

// Soliton builds the distribution for k slices: degree 1 has probability 1/k
// and degree d >= 2 has probability 1/(d(d-1)). It panics when k < 1.
func Soliton(k int) *Distribution {
	if k < 1 {
		panic("degree: k must be positive")
	}

	cdf := make([]float64, k)
	cdf[0] = 1 / float64(k)
	for d := 2; d <= k; d++ {
		cdf[d-1] = cdf[d-2] + 1/(float64(d)*float64(d-1))
	}

	// the terms telescope to exactly 1, but rounding can leave the tail a
	// hair short of it.
	total := cdf[k-1]
	for i := range cdf {
		cdf[i] /= total
	}
	cdf[k-1] = 1

	return &Distribution{cdf: cdf}
}

// K returns the largest degree of the distribution.
func (dist *Distribution) K() int { return len(dist.cdf) }

// Probability returns the probability of sampling degree d.
func (dist *Distribution) Probability(d int) float64 {
	if d < 1 || d > len(dist.cdf) {
		return 0
	}
	if d == 1 {
		return dist.cdf[0]
	}
	return dist.cdf[d-1] - dist.cdf[d-2]
}

// Sample draws a degree: the first degree whose cumulative probability
// exceeds a uniform draw in [0, 1).
func (dist *Distribution) Sample(r Rand) int {
	k := len(dist.cdf)
	if k == 1 {
		return 1
	}

	u := r.Float64()
	if i, found := slices.BinarySearch(dist.cdf, u); i < k {
		if found {
			// cdf[i] == u does not exceed u; the next degree does.
			i++
		}
		if i < k {
			return i + 1
		}
	}
	return k
}

// Indices returns d distinct indices in [0, k), sampled uniformly without
// replacement and sorted ascending. d is clamped to [1, k].
func Indices(r Rand, k, d int) []int {
	if k < 1 {
		return nil
	}
	d = max(1, min(d, k))

	var picked []int
	if d*2 <= k {
		seen := make(map[int]struct{}, d)
		picked = make([]int, 0, d)
		for len(picked) < d {
			i := r.Intn(k)
			if _, ok := seen[i]; ok {
				continue
			}
			seen[i] = struct{}{}
			picked = append(picked, i)
		}
	} else {
		// dense draw: partial Fisher-Yates over all indices.
		all := make([]int, k)
		for i := range all {
			all[i] = i
		}
		for i := 0; i < d; i++ {
			j := i + r.Intn(k-i)
			all[i], all[j] = all[j], all[i]
		}
		picked = all[:d]
	}

	slices.Sort(picked)
	return picked
}
