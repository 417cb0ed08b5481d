package risk

import (
	"math"

	"github.com/riskwatch/riskwatch-go/internal/models"
)

// Category caps. The seven category contributions sum to at most 100.
const (
	capCodeVolume       = 25.0
	capCodeComplexity   = 20.0
	capCommitMessage    = 10.0
	capDeveloperHistory = 15.0
	capTemporalRisk     = 10.0
	capFileSpread       = 10.0
	capDerivedChurn     = 10.0
)

// Breakdown category keys, in scoring priority order.
const (
	CategoryCodeVolume       = "code_volume"
	CategoryCodeComplexity   = "code_complexity"
	CategoryCommitMessage    = "commit_message"
	CategoryDeveloperHistory = "developer_history"
	CategoryTemporalRisk     = "temporal_risk"
	CategoryFileSpread       = "file_spread"
	CategoryDerivedChurn     = "derived_churn"
)

// Categories lists every breakdown key in scoring order.
var Categories = []string{
	CategoryCodeVolume,
	CategoryCodeComplexity,
	CategoryCommitMessage,
	CategoryDeveloperHistory,
	CategoryTemporalRisk,
	CategoryFileSpread,
	CategoryDerivedChurn,
}

// Cap returns the maximum contribution of a breakdown category.
func Cap(category string) float64 {
	switch category {
	case CategoryCodeVolume:
		return capCodeVolume
	case CategoryCodeComplexity:
		return capCodeComplexity
	case CategoryCommitMessage:
		return capCommitMessage
	case CategoryDeveloperHistory:
		return capDeveloperHistory
	case CategoryTemporalRisk:
		return capTemporalRisk
	case CategoryFileSpread:
		return capFileSpread
	case CategoryDerivedChurn:
		return capDerivedChurn
	}
	return 0
}

// Score computes a 0-100 risk score from extracted features using the
// weighted rule formula. The score decomposes into per-category
// contributions so results stay interpretable in UI display.
//
// Score is pure and stateless: it serves both as the production fallback
// when no trained model is loaded and as the always-computed
// explainability breakdown attached to ML predictions.
func Score(f models.CommitFeatures) models.RiskResult {
	breakdown := map[string]float64{
		CategoryCodeVolume:       round2(codeVolume(f)),
		CategoryCodeComplexity:   round2(codeComplexity(f)),
		CategoryCommitMessage:    round2(commitMessage(f)),
		CategoryDeveloperHistory: round2(developerHistory(f)),
		CategoryTemporalRisk:     round2(temporalRisk(f)),
		CategoryFileSpread:       round2(fileSpread(f)),
		CategoryDerivedChurn:     round2(derivedChurn(f)),
	}

	raw := 0.0
	for _, v := range breakdown {
		raw += v
	}
	score := round2(math.Min(raw, 100.0))

	// Confidence communicates how much real signal fed the score, not
	// statistical certainty: 0.60 baseline + up to 0.35 for completeness.
	confidence := round2(0.60 + 0.35*dataCompleteness(f))

	return models.RiskResult{
		RiskScore:      score,
		RiskLevel:      models.LevelForScore(score),
		Confidence:     confidence,
		Features:       f,
		ScoreBreakdown: breakdown,
	}
}

// codeVolume scores total lines changed on a staircase, max 25.
func codeVolume(f models.CommitFeatures) float64 {
	total := f.TotalLinesChanged
	switch {
	case total > 1000:
		return capCodeVolume
	case total > 500:
		return 20.0
	case total > 200:
		return 14.0
	case total > 100:
		return 9.0
	case total > 50:
		return 5.0
	default:
		return math.Max(0, float64(total)*0.05)
	}
}

// codeComplexity combines a CC staircase (0-12) with an MI staircase
// (0-8, lower MI = higher risk), max 20.
func codeComplexity(f models.CommitFeatures) float64 {
	cc := f.AvgCyclomaticComplexity
	mi := f.AvgMaintainabilityIndex
	score := 0.0

	switch {
	case cc > 25:
		score += 12.0
	case cc > 15:
		score += 9.0
	case cc > 10:
		score += 6.0
	case cc > 5:
		score += 3.0
	default:
		score += math.Max(0, cc*0.4)
	}

	switch {
	case mi < 20:
		score += 8.0
	case mi < 40:
		score += 6.0
	case mi < 60:
		score += 4.0
	case mi < 80:
		score += 2.0
	}

	return math.Min(score, capCodeComplexity)
}

// commitMessage scores risky keywords and vague one-liners, max 10.
func commitMessage(f models.CommitFeatures) float64 {
	score := 0.0
	if f.HasRiskyKeywords {
		score += math.Min(float64(f.RiskyKeywordCount)*3.0, 8.0)
	}
	if f.MessageLength < 10 {
		score += 2.0 // very short / vague message
	}
	return math.Min(score, capCommitMessage)
}

// developerHistory scores prior bug rate, low experience and commit
// frequency anomalies, max 15.
func developerHistory(f models.CommitFeatures) float64 {
	score := 0.0

	switch {
	case f.PreviousBugRate > 0.3:
		score += 8.0
	case f.PreviousBugRate > 0.15:
		score += 5.0
	case f.PreviousBugRate > 0.05:
		score += 2.0
	}

	switch {
	case f.TotalPriorCommits < 5:
		score += 5.0
	case f.TotalPriorCommits < 20:
		score += 2.0
	}

	// Very high frequency looks like a code dump
	if f.CommitFrequency > 20 {
		score += 2.0
	}

	return math.Min(score, capDeveloperHistory)
}

// temporalRisk scores weekend, late-night and Friday-afternoon commits,
// max 10.
func temporalRisk(f models.CommitFeatures) float64 {
	score := 0.0
	if f.WeekendFlag {
		score += 4.0
	}
	if f.HourOfDay >= 22 || f.HourOfDay < 5 {
		score += 4.0
	}
	if f.DayOfWeek == 4 && f.HourOfDay >= 14 {
		score += 3.0
	}
	return math.Min(score, capTemporalRisk)
}

// fileSpread scores files-changed with a cross-cutting bonus and a
// test-coverage discount, floored at 0, max 10.
func fileSpread(f models.CommitFeatures) float64 {
	fc := f.FilesChanged
	var score float64
	switch {
	case fc > 30:
		score = 10.0
	case fc > 20:
		score = 7.0
	case fc > 10:
		score = 5.0
	case fc > 5:
		score = 3.0
	default:
		score = math.Max(0, float64(fc)*0.4)
	}

	if f.FileTypesCount > 5 {
		score += 2.0
	}
	if f.PercentageTestFiles > 0.3 {
		score = math.Max(0, score-3.0)
	}

	return math.Min(score, capFileSpread)
}

// derivedChurn scores churn ratio, risk density and developer risk,
// max 10.
func derivedChurn(f models.CommitFeatures) float64 {
	score := 0.0

	switch {
	case f.CodeChurnRatio > 10:
		score += 5.0
	case f.CodeChurnRatio > 5:
		score += 3.0
	}

	if f.RiskDensity > 0.5 {
		score += 3.0
	}

	switch {
	case f.DeveloperRiskScore > 100:
		score += 3.0
	case f.DeveloperRiskScore > 30:
		score += 1.5
	}

	return math.Min(score, capDerivedChurn)
}

// dataCompleteness returns the fraction of the six signal-presence
// checks that hold for this feature vector.
func dataCompleteness(f models.CommitFeatures) float64 {
	checks := []bool{
		f.TotalLinesChanged > 0,
		f.AvgCyclomaticComplexity > 0,
		f.TotalPriorCommits > 0,
		f.ContributorCount > 0,
		f.MessageLength > 0,
		f.DayOfWeek > 0 || f.HourOfDay > 0,
	}
	satisfied := 0
	for _, ok := range checks {
		if ok {
			satisfied++
		}
	}
	return float64(satisfied) / float64(len(checks))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
