// Package explain renders a short rationale for a classification from the
// named acoustic features.
package explain

import (
	"strings"

	"github.com/RyanBlaney/sonido-vox/detector/classifier"
	"github.com/RyanBlaney/sonido-vox/detector/extractors"
)

const fallbackReason = "natural micro-variations and expressive prosody"

// Rule adds Reason when Match holds for the feature value
type Rule struct {
	Feature string
	Match   func(v float64) bool
	Reason  string
}

// Rules are evaluated in this order and every match is reported
var Rules = []Rule{
	{
		Feature: extractors.FeatureSpecFlatMean,
		Match:   func(v float64) bool { return v > 0.4 },
		Reason:  "high spectral flatness (noise-like timbre)",
	},
	{
		Feature: extractors.FeatureJitter,
		Match:   func(v float64) bool { return v < 0.005 },
		Reason:  "very low pitch jitter (stable synthetic pitch)",
	},
	{
		Feature: extractors.FeatureF0Std,
		Match:   func(v float64) bool { return v < 5 },
		Reason:  "stable pitch contour",
	},
	{
		Feature: extractors.FeatureShimmer,
		Match:   func(v float64) bool { return v < 0.02 },
		Reason:  "low amplitude micro-variations",
	},
}

// Reasons returns the matching rule reasons, or the fallback reason when
// none match. Missing features read as 0.
func Reasons(features extractors.FeatureSet) []string {
	var reasons []string
	for _, r := range Rules {
		if r.Match(features[r.Feature]) {
			reasons = append(reasons, r.Reason)
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, fallbackReason)
	}
	return reasons
}

// Explain returns "likely AI-generated: ..." or "likely human: ..." with the
// reasons joined by "; ". Any label other than AI_GENERATED reads as human.
func Explain(features extractors.FeatureSet, label classifier.Label) string {
	polarity := "likely human"
	if label == classifier.LabelAIGenerated {
		polarity = "likely AI-generated"
	}
	return polarity + ": " + strings.Join(Reasons(features), "; ")
}
