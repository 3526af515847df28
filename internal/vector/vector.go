// Package vector turns text and identifiers into fixed-length fingerprint
// vectors and compares them.
//
// The default CharHash vectorizer is a deterministic bag-of-characters
// fingerprint, not a learned embedding. Changing it invalidates stored vectors.
package vector

import (
	"math"

	"feedcore/internal/model"
	"feedcore/internal/util"
)

// Vectorizer maps text to a model.Dim-length vector.
type Vectorizer interface {
	Vectorize(text string) []float32
}

// CharHash hashes the characters of each kept tag into model.Dim slots.
type CharHash struct{}

// Vectorize builds a normalized vector from the tags of text.
func (CharHash) Vectorize(text string) []float32 {
	acc := make([]float64, model.Dim)
	for i, tag := range util.Words(text, model.MaxContentTags) {
		Accumulate(acc, tag, 1+0.1*float64(i))
	}
	return Normalize(acc)
}

// Accumulate adds (codepoint mod 100) * scale to slot (position mod Dim)
// for every character of token.
func Accumulate(acc []float64, token string, scale float64) {
	if len(acc) == 0 {
		return
	}
	pos := 0
	for _, r := range token {
		acc[pos%len(acc)] += float64(int(r)%100) * scale
		pos++
	}
}

// Normalize returns acc scaled to unit length as float32.
// An all-zero accumulator stays all-zero.
func Normalize(acc []float64) []float32 {
	out := make([]float32, len(acc))
	n := norm64(acc)
	if n == 0 {
		return out
	}
	for i, v := range acc {
		out[i] = float32(v / n)
	}
	return out
}

// Norm is the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func norm64(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Cosine is the cosine similarity of a and b. It is 0 when either vector is
// all-zero, when lengths differ, or when the result is not a finite number.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	sim := dot / denom
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return sim
}
