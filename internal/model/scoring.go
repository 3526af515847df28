package model

import (
	"math"
	"time"
)

const (
	// FreshnessFloor is the lowest freshness a fingerprint can hold.
	FreshnessFloor = 0.1
	// FreshnessHorizon is the age at which freshness reaches the floor.
	FreshnessHorizon = 30 * 24 * time.Hour
	// FingerprintWindow bounds the interactions a user fingerprint is built from.
	FingerprintWindow = 30 * 24 * time.Hour

	// FeedbackHide is the demotion feedback kind.
	FeedbackHide = "hide"
	// DefaultHidePenalty is subtracted from popularity on hide.
	DefaultHidePenalty = 5.0
	// HideFreshnessFactor scales freshness on hide.
	HideFreshnessFactor = 0.5
)

// Content fingerprint fields mutable through atomic counter operations.
const (
	FieldPopularity = "popularity"
	FieldFreshness  = "freshness"
)

// Popularity is a simple engagement proxy: likes count once, comments twice.
func Popularity(likes, comments int) float64 {
	return ClampPopularity(float64(likes) + 2*float64(comments))
}

// Freshness decays linearly from 1.0 at creation to the floor at the horizon.
func Freshness(createdAt, now time.Time) float64 {
	ageDays := now.Sub(createdAt).Hours() / 24
	horizonDays := FreshnessHorizon.Hours() / 24
	return ClampFreshness(1 - ageDays/horizonDays)
}

// ClampPopularity floors popularity at zero.
func ClampPopularity(p float64) float64 {
	if p < 0 || math.IsNaN(p) {
		return 0
	}
	return p
}

// ClampFreshness keeps freshness within [FreshnessFloor, 1].
func ClampFreshness(f float64) float64 {
	if math.IsNaN(f) || f < FreshnessFloor {
		return FreshnessFloor
	}
	if f > 1 {
		return 1
	}
	return f
}

// IsDemotion reports whether a feedback kind demotes its content.
func IsDemotion(feedbackKind string) bool {
	return feedbackKind == FeedbackHide
}

// FeedbackWeight is the ledger weight recorded for explicit feedback.
func FeedbackWeight(feedbackKind string) float64 {
	if IsDemotion(feedbackKind) {
		return -1
	}
	return 0.1
}
