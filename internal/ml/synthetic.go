package ml

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/riskwatch/riskwatch-go/internal/models"
)

// GenerateSyntheticSamples produces labeled feature vectors from two
// hand-tuned distributions so a model can be bootstrapped before enough
// real labels exist. Risky commits skew large, complex, off-hours and
// inexperienced; safe commits skew small, clean and business-hours.
// Roughly 10% of samples get noised so the class boundary is imperfect.
func GenerateSyntheticSamples(count int, positiveRate float64, seed int64) []models.TrainingSample {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]models.TrainingSample, 0, count)
	nRisky := int(float64(count) * positiveRate)

	for i := 0; i < count; i++ {
		isRisky := i < nRisky
		label := 0
		if isRisky {
			label = 1
		}
		samples = append(samples, models.TrainingSample{
			SHA:        fmt.Sprintf("synthetic_%06d", i),
			Repository: "synthetic/repo",
			Features:   syntheticFeatures(rng, isRisky),
			Label:      label,
		})
	}

	rng.Shuffle(len(samples), func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
	})
	return samples
}

func syntheticFeatures(rng *rand.Rand, isRisky bool) models.CommitFeatures {
	var (
		linesAdded, linesDeleted, filesChanged int
		avgCC, maxCC, mi, bugRate, testPct     float64
		totalPrior, hour, day, riskyKW, msgLen int
	)

	if isRisky {
		linesAdded = randInt(rng, 100, 1500)
		linesDeleted = randInt(rng, 20, 500)
		filesChanged = randInt(rng, 5, 50)
		avgCC = randFloat(rng, 5, 30)
		maxCC = avgCC + randFloat(rng, 0, 15)
		mi = randFloat(rng, 10, 60)
		totalPrior = randInt(rng, 0, 30)
		bugRate = randFloat(rng, 0.1, 0.6)
		hour = pick(rng, 0, 1, 2, 3, 22, 23, 14, 15, 16)
		day = pick(rng, 4, 5, 6, 0, 1, 2, 3) // bias toward Fri/weekend
		riskyKW = randInt(rng, 1, 5)
		msgLen = randInt(rng, 5, 40)
		testPct = randFloat(rng, 0, 0.15)
	} else {
		linesAdded = randInt(rng, 1, 200)
		linesDeleted = randInt(rng, 0, 80)
		filesChanged = randInt(rng, 1, 10)
		avgCC = randFloat(rng, 1, 8)
		maxCC = avgCC + randFloat(rng, 0, 5)
		mi = randFloat(rng, 60, 100)
		totalPrior = randInt(rng, 20, 500)
		bugRate = randFloat(rng, 0, 0.1)
		hour = randInt(rng, 8, 18)
		day = randInt(rng, 0, 4) // weekday
		if rng.Float64() <= 0.15 {
			riskyKW = randInt(rng, 1, 2)
		}
		msgLen = randInt(rng, 20, 120)
		testPct = randFloat(rng, 0.1, 0.6)
	}

	// Noise so the boundary isn't perfect
	if rng.Float64() < 0.1 {
		linesAdded = randInt(rng, 1, 1500)
		hour = randInt(rng, 0, 23)
	}

	totalLines := linesAdded + linesDeleted
	fileTypes := randInt(rng, 1, minInt(filesChanged, 8))

	return models.CommitFeatures{
		LinesAdded:              linesAdded,
		LinesDeleted:            linesDeleted,
		TotalLinesChanged:       totalLines,
		FilesChanged:            filesChanged,
		FileTypesCount:          fileTypes,
		PercentageTestFiles:     roundN(testPct, 4),
		AvgCyclomaticComplexity: roundN(avgCC, 2),
		MaxCyclomaticComplexity: roundN(maxCC, 2),
		AvgMaintainabilityIndex: roundN(mi, 2),
		TotalCCBlocks:           randInt(rng, 1, filesChanged*3),
		CCRank:                  "A",
		AvgHalsteadVolume:       roundN(avgCC*randFloat(rng, 10, 50), 2),
		ComplexitySourceFiles:   randInt(rng, 0, filesChanged),
		TotalPriorCommits:       totalPrior,
		PreviousBugRate:         roundN(bugRate, 4),
		CommitFrequency:         roundN(randFloat(rng, 0.5, 15), 4),
		TimeSinceLastCommit:     roundN(randFloat(rng, 0.5, 200), 2),
		RepoSize:                randInt(rng, 100, 50000),
		ContributorCount:        randInt(rng, 1, 20),
		OpenIssuesCount:         randInt(rng, 0, 100),
		CommitVelocity:          roundN(randFloat(rng, 1, 50), 2),
		DayOfWeek:               day,
		HourOfDay:               hour,
		WeekendFlag:             day >= 5,
		CodeChurnRatio:          roundN(float64(linesAdded)/float64(linesDeleted+1), 4),
		RiskDensity:             roundN(float64(filesChanged)/float64(totalLines+1), 6),
		DeveloperRiskScore:      roundN(bugRate*float64(totalLines), 4),
		MessageLength:           msgLen,
		HasRiskyKeywords:        riskyKW > 0,
		RiskyKeywordCount:       riskyKW,
	}
}

func randInt(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}

func randFloat(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func pick(rng *rand.Rand, choices ...int) int {
	return choices[rng.Intn(len(choices))]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func roundN(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
