package main

import (
	"math"
	"math/rand/v2"
	"sync"
)

// ColorToken names the display color of a rating tier
type ColorToken string

const (
	ColorNeutral ColorToken = "neutral"
	ColorAccent  ColorToken = "accent"
	ColorMixed   ColorToken = "mixed"
	ColorWarning ColorToken = "warning"
)

// Hex returns the Steam palette value for the token
func (t ColorToken) Hex() string {
	switch t {
	case ColorAccent:
		return "#66c0f4"
	case ColorMixed:
		return "#c1aa6d"
	case ColorWarning:
		return "#a34c25"
	default:
		return "#8f98a0"
	}
}

const (
	LabelInsufficient      = "insufficient reviews"
	LabelExtremelyPositive = "extremely positive"
	LabelVeryPositive      = "very positive"
	LabelMostlyPositive    = "mostly positive"
	LabelPositive          = "positive"
	LabelMixed             = "mixed"
	LabelMostlyNegative    = "mostly negative"
	LabelVeryNegative      = "very negative"
)

// RandomSource yields floats in [0, 1)
type RandomSource interface {
	Float64() float64
}

// lockedRand makes a *rand.Rand safe for the concurrent enrichments
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64()
}

// NewRandomSource returns a seeded source, or a randomly seeded one for seed 0
func NewRandomSource(seed uint64) RandomSource {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &lockedRand{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// reviewBand is the jitter range used when no critic score exists
type reviewBand struct {
	above int
	min   float64
	span  float64
}

var reviewBands = []reviewBand{
	{above: 100000, min: 85, span: 10},
	{above: 50000, min: 75, span: 15},
	{above: 10000, min: 70, span: 20},
	{above: 0, min: 60, span: 25},
}

// EstimateRating derives a sentiment label from the review count and an optional
// critic score. Steam exposes no percent-positive on this path, so without a
// critic score the percent is a volume-based guess with random jitter and two
// calls with the same input can disagree.
func EstimateRating(reviews int, criticScore *int, rng RandomSource) Rating {
	if reviews <= 0 {
		return Rating{Label: LabelInsufficient, ColorToken: ColorNeutral, Percent: 0}
	}

	var percent float64
	if criticScore != nil {
		percent = float64(*criticScore)
	} else {
		for _, band := range reviewBands {
			if reviews > band.above {
				percent = band.min + rng.Float64()*band.span
				break
			}
		}
	}

	return ratingForPercent(percent)
}

// ratingForPercent maps a percent to its tier
func ratingForPercent(percent float64) Rating {
	rounded := int(math.Round(math.Max(0, math.Min(100, percent))))

	var label string
	var token ColorToken
	switch {
	case percent >= 95:
		label, token = LabelExtremelyPositive, ColorAccent
	case percent >= 85:
		label, token = LabelVeryPositive, ColorAccent
	case percent >= 80:
		label, token = LabelMostlyPositive, ColorAccent
	case percent >= 70:
		label, token = LabelPositive, ColorAccent
	case percent >= 40:
		label, token = LabelMixed, ColorMixed
	case percent >= 20:
		label, token = LabelMostlyNegative, ColorWarning
	default:
		label, token = LabelVeryNegative, ColorWarning
	}

	return Rating{Label: label, ColorToken: token, Percent: rounded}
}
