package payment

import (
	"fmt"
	"regexp"
	"strings"
)

// Outcome is the lifecycle meaning of a gateway result code.
type Outcome string

const (
	OutcomeConfirmed         Outcome = "confirmed"
	OutcomePendingReview     Outcome = "pending_review"
	OutcomePendingAsync      Outcome = "pending_async"
	OutcomePendingBackground Outcome = "pending_background"
	OutcomeFailed            Outcome = "failed"
)

// IsPending reports whether the outcome keeps the attempt in Pending.
func (o Outcome) IsPending() bool {
	return o == OutcomePendingReview || o == OutcomePendingAsync || o == OutcomePendingBackground
}

// ClassifierMode selects how overlapping result-code rules are resolved.
type ClassifierMode string

const (
	// ModeFaithful evaluates every rule and lets the last one that fired win.
	// The final rule is an else bound only to the background-pending check, so
	// any code outside that pattern ends up Failed.
	ModeFaithful ClassifierMode = "faithful"
	// ModeCorrected stops at the first matching rule.
	ModeCorrected ClassifierMode = "corrected"
)

// ParseClassifierMode parses a configuration value. Empty means corrected.
func ParseClassifierMode(s string) (ClassifierMode, error) {
	switch ClassifierMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCorrected:
		return ModeCorrected, nil
	case ModeFaithful:
		return ModeFaithful, nil
	default:
		return "", fmt.Errorf("unknown classifier mode %q", s)
	}
}

var (
	// Successfully processed transactions.
	successPattern = regexp.MustCompile(`^(000\.000\.|000\.100\.1|000\.[36])`)
	// Successfully processed, but flagged for manual review.
	reviewPattern = regexp.MustCompile(`^(000\.400\.0[^3]|000\.400\.100)`)
	// Pending, may change within ~30 minutes or time out.
	asyncPendingPattern = regexp.MustCompile(`^(000\.200)`)
	// Pending, may change over several days or time out.
	backgroundPendingPattern = regexp.MustCompile(`^(800\.400\.5|100\.400\.500)`)
)

// Classifier maps OPPWA result codes to outcomes.
type Classifier struct {
	mode ClassifierMode
}

func NewClassifier(mode ClassifierMode) Classifier {
	if mode != ModeFaithful {
		mode = ModeCorrected
	}
	return Classifier{mode: mode}
}

func (c Classifier) Mode() ClassifierMode {
	return c.mode
}

// Trace lists, in order, every outcome the independent rule checks produce.
// The last element is always PendingBackground or Failed.
func (c Classifier) Trace(code string) []Outcome {
	fired := make([]Outcome, 0, 4)
	if successPattern.MatchString(code) {
		fired = append(fired, OutcomeConfirmed)
	}
	if reviewPattern.MatchString(code) {
		fired = append(fired, OutcomePendingReview)
	}
	if asyncPendingPattern.MatchString(code) {
		fired = append(fired, OutcomePendingAsync)
	}
	if backgroundPendingPattern.MatchString(code) {
		fired = append(fired, OutcomePendingBackground)
	} else {
		fired = append(fired, OutcomeFailed)
	}
	return fired
}

// Classify returns the outcome for code under the configured mode.
func (c Classifier) Classify(code string) Outcome {
	if c.mode == ModeFaithful {
		fired := c.Trace(code)
		return fired[len(fired)-1]
	}

	switch {
	case successPattern.MatchString(code):
		return OutcomeConfirmed
	case reviewPattern.MatchString(code):
		return OutcomePendingReview
	case asyncPendingPattern.MatchString(code):
		return OutcomePendingAsync
	case backgroundPendingPattern.MatchString(code):
		return OutcomePendingBackground
	default:
		return OutcomeFailed
	}
}
