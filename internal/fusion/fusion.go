// Package fusion combines per-window model scores into a single
// classification through an ordered rule table. The rule constants were
// calibrated on evaluation data and live in configuration.
package fusion

import (
	"fmt"
	"log/slog"

	"github.com/veridict/voiceguard-go/internal/aasist"
	"github.com/veridict/voiceguard-go/internal/conf"
	"github.com/veridict/voiceguard-go/internal/errors"
	"github.com/veridict/voiceguard-go/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("fusion")
}

// Classification labels.
const (
	ClassificationAIGenerated = "AI_GENERATED"
	ClassificationHuman       = "HUMAN"
)

// Aggregate is one model's score averaged over all sampled windows.
type Aggregate struct {
	ModelID   string
	Synthetic float64
	Bonafide  float64
	Windows   int
}

// Result is the fused decision for one clip.
type Result struct {
	Classification string  // AI_GENERATED or HUMAN
	Confidence     float64 // probability mass backing the classification
	Explanation    string  // human-readable reason, at most 200 characters
	Rule           string  // name of the rule that produced the decision
}

// maxExplanationLen bounds the explanation field in API responses.
const maxExplanationLen = 200

// AggregateScores averages each model's window scores into one distribution
// per model. Models with no scores are omitted.
func AggregateScores(windowScores map[string][]aasist.ModelScore) map[string]Aggregate {
	aggregates := make(map[string]Aggregate, len(windowScores))
	for modelID, scores := range windowScores {
		if len(scores) == 0 {
			continue
		}
		var synth, bona float64
		for _, s := range scores {
			synth += s.Synthetic
			bona += s.Bonafide
		}
		n := float64(len(scores))
		aggregates[modelID] = Aggregate{
			ModelID:   modelID,
			Synthetic: synth / n,
			Bonafide:  bona / n,
			Windows:   len(scores),
		}
	}
	return aggregates
}

// ruleInput carries everything a rule may consult.
type ruleInput struct {
	primary      Aggregate
	secondary    Aggregate
	hasSecondary bool
	language     string
	thresholds   conf.RuleThresholds
	threshold    float64
}

// rule is one entry in the ordered decision table. The first matching rule
// wins; the final default rule always matches.
type rule struct {
	name    string
	matches func(in ruleInput) bool
	apply   func(in ruleInput) Result
}

// The table order is significant: ensemble agreement and the two inversion
// corrections run before the plain threshold decision.
var rules = []rule{
	{
		name: "agree-high",
		matches: func(in ruleInput) bool {
			return in.hasSecondary &&
				in.primary.Synthetic > in.thresholds.AgreeHigh &&
				in.secondary.Synthetic > in.thresholds.AgreeHigh
		},
		apply: func(in ruleInput) Result {
			confidence := in.primary.Synthetic
			if in.secondary.Synthetic > confidence {
				confidence = in.secondary.Synthetic
			}
			return Result{
				Classification: ClassificationAIGenerated,
				Confidence:     confidence,
				Explanation: fmt.Sprintf("Both models report synthetic speech with high certainty (%.2f and %.2f).",
					in.primary.Synthetic, in.secondary.Synthetic),
			}
		},
	},
	{
		name: "inversion-high",
		matches: func(in ruleInput) bool {
			return in.hasSecondary &&
				in.primary.Bonafide > in.thresholds.InversionHigh &&
				in.secondary.Synthetic > in.thresholds.InversionHigh
		},
		apply: func(in ruleInput) Result {
			return Result{
				Classification: ClassificationAIGenerated,
				Confidence:     in.secondary.Synthetic,
				Explanation: fmt.Sprintf("Fine-tuned model inverted at high certainty; base model reports synthetic speech (%.2f).",
					in.secondary.Synthetic),
			}
		},
	},
	{
		name: "inversion-band",
		matches: func(in ruleInput) bool {
			if !languageListed(in.language, in.thresholds.InversionLanguages) {
				return false
			}
			return in.primary.Synthetic >= in.thresholds.InversionBandLow &&
				in.primary.Synthetic <= in.thresholds.InversionBandHigh
		},
		apply: func(in ruleInput) Result {
			return Result{
				Classification: ClassificationHuman,
				Confidence:     in.primary.Synthetic,
				Explanation: fmt.Sprintf("Score %.2f falls in the known inversion band for %s; treating as genuine speech.",
					in.primary.Synthetic, in.language),
			}
		},
	},
	{
		name:    "threshold",
		matches: func(ruleInput) bool { return true },
		apply: func(in ruleInput) Result {
			if in.primary.Synthetic > in.threshold {
				return Result{
					Classification: ClassificationAIGenerated,
					Confidence:     in.primary.Synthetic,
					Explanation: fmt.Sprintf("Synthetic probability %.2f exceeds the %.2f decision threshold.",
						in.primary.Synthetic, in.threshold),
				}
			}
			// Equality favors the human label.
			return Result{
				Classification: ClassificationHuman,
				Confidence:     in.primary.Bonafide,
				Explanation: fmt.Sprintf("Synthetic probability %.2f is at or below the %.2f decision threshold.",
					in.primary.Synthetic, in.threshold),
			}
		},
	},
}

// Fuse turns per-window model scores into a single decision. The primary
// model must have produced at least one score; a missing secondary disables
// the ensemble rules but never fails the request.
func Fuse(windowScores map[string][]aasist.ModelScore, language string, settings *conf.Settings) (Result, error) {
	aggregates := AggregateScores(windowScores)

	primary, ok := aggregates[settings.Models.Primary.ID]
	if !ok {
		return Result{}, errors.Newf("no scores from primary model %q", settings.Models.Primary.ID).
			Component("fusion").
			Category(errors.CategoryFusion).
			Context("language", language).
			Build()
	}
	secondary, hasSecondary := aggregates[settings.Models.Secondary.ID]

	in := ruleInput{
		primary:      primary,
		secondary:    secondary,
		hasSecondary: hasSecondary,
		language:     language,
		thresholds:   settings.Fusion.Rules,
		threshold:    settings.Fusion.Threshold,
	}

	for _, r := range rules {
		if !r.matches(in) {
			continue
		}
		result := r.apply(in)
		result.Rule = r.name
		result.Explanation = TruncateExplanation(fmt.Sprintf("%s (rule: %s)", result.Explanation, r.name))
		logger.Debug("fusion decision",
			"rule", result.Rule,
			"classification", result.Classification,
			"confidence", result.Confidence,
			"language", language,
			"primary_synthetic", primary.Synthetic,
			"has_secondary", hasSecondary)
		return result, nil
	}

	// Unreachable, the table ends with an always-matching rule.
	return Result{}, errors.Newf("no fusion rule matched").
		Component("fusion").
		Category(errors.CategoryFusion).
		Build()
}

// TruncateExplanation enforces the response field limit, cutting on a rune
// boundary.
func TruncateExplanation(s string) string {
	if len(s) <= maxExplanationLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxExplanationLen {
		return s
	}
	return string(runes[:maxExplanationLen])
}

func languageListed(language string, listed []string) bool {
	for _, l := range listed {
		if l == language {
			return true
		}
	}
	return false
}
