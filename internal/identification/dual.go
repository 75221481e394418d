package identification

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/hbollon/go-edlib"

	"mixsplit/internal/logging"
)

// DefaultMinAgreement is the Jaro-Winkler score treated as agreement.
const DefaultMinAgreement = 0.85

// Dual queries two providers concurrently and keeps the more confident match.
// When both agree, the winner's missing fields are filled from the other.
type Dual struct {
	Primary      Provider
	Secondary    Provider
	MinAgreement float64
	Logger       *slog.Logger
}

// Name implements Provider.
func (d *Dual) Name() string { return "dual" }

// Identify implements Provider.
func (d *Dual) Identify(ctx context.Context, sample Sample) (Match, error) {
	var (
		wg                    sync.WaitGroup
		primary, secondary    Match
		primaryErr, secondErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		primary, primaryErr = d.Primary.Identify(ctx, sample)
	}()
	go func() {
		defer wg.Done()
		secondary, secondErr = d.Secondary.Identify(ctx, sample)
	}()
	wg.Wait()

	switch {
	case primary.Found && secondary.Found:
		return d.merge(sample, primary, secondary), nil
	case primary.Found:
		return primary, nil
	case secondary.Found:
		return secondary, nil
	default:
		// Nil only when both providers answered with a clean no-match.
		return Match{}, errors.Join(primaryErr, secondErr)
	}
}

func (d *Dual) merge(sample Sample, primary, secondary Match) Match {
	winner, other := primary, secondary
	if secondary.Confidence > primary.Confidence {
		winner, other = secondary, primary
	}
	score := Similarity(describe(primary.Metadata), describe(secondary.Metadata))
	threshold := d.MinAgreement
	if threshold <= 0 {
		threshold = DefaultMinAgreement
	}
	if score >= threshold {
		winner.Metadata = winner.Metadata.Merge(other.Metadata)
		return winner
	}
	logging.WarnWithContext(d.Logger, "identification providers disagree", "identify_disagreement",
		logging.String(logging.FieldFile, sample.Parent),
		logging.Int(logging.FieldTrack, sample.Ordinal),
		logging.String("winner", winner.Provider),
		logging.String("winner_match", describe(winner.Metadata)),
		logging.String("runner_up", other.Provider),
		logging.String("runner_up_match", describe(other.Metadata)),
		logging.Float64("similarity", score),
		logging.String(logging.FieldErrorHint, "verify the track tags manually"),
		logging.String(logging.FieldImpact, "higher-confidence match used"),
	)
	return winner
}

// Similarity scores two strings in [0, 1] with Jaro-Winkler after
// normalizing case, punctuation and "&"/"+".
func Similarity(a, b string) float64 {
	na, nb := normalizeForComparison(a), normalizeForComparison(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	score, err := edlib.StringsSimilarity(na, nb, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(score)
}

func describe(m Metadata) string {
	return m.Artist + " - " + m.Title
}

func normalizeForComparison(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	normalized := strings.ToLower(input)
	normalized = strings.ReplaceAll(normalized, "&", "and")
	normalized = strings.ReplaceAll(normalized, "+", "and")

	var builder strings.Builder
	for _, r := range normalized {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
