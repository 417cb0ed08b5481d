package features

import (
	"testing"
	"time"

	"github.com/riskwatch/riskwatch-go/internal/complexity"
	"github.com/riskwatch/riskwatch-go/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestExtractDefaults(t *testing.T) {
	f := Extract(Input{})

	assert.Equal(t, 100.0, f.AvgMaintainabilityIndex, "missing complexity should default to healthy")
	assert.Equal(t, "A", f.CCRank)
	assert.Zero(t, f.AvgCyclomaticComplexity)
	assert.Zero(t, f.DayOfWeek)
	assert.Zero(t, f.HourOfDay)
	assert.False(t, f.WeekendFlag)
	assert.Zero(t, f.MessageLength)
	assert.False(t, f.HasRiskyKeywords)

	// Zero-safe derived ratios
	assert.Equal(t, 0.0, f.CodeChurnRatio)
	assert.Equal(t, 0.0, f.RiskDensity)
	assert.Equal(t, 0.0, f.DeveloperRiskScore)
}

func TestExtractCodeVolume(t *testing.T) {
	f := Extract(Input{
		Commit: models.RawCommit{LinesAdded: 120, LinesDeleted: 30, FilesChanged: 4},
	})

	assert.Equal(t, 120, f.LinesAdded)
	assert.Equal(t, 30, f.LinesDeleted)
	assert.Equal(t, 150, f.TotalLinesChanged)
	assert.Equal(t, 4, f.FilesChanged)
}

func TestExtractFileTypesAndTestFraction(t *testing.T) {
	tests := []struct {
		name      string
		files     []string
		wantTypes int
		wantTest  float64
	}{
		{
			"mixed extensions",
			[]string{"main.go", "util.GO", "readme.md", "Makefile"},
			2, // .go (case-folded) and .md
			0,
		},
		{
			"half tests",
			[]string{"server.go", "server_test.go", "api.py", "tests/api.py"},
			2,
			0.5,
		},
		{
			"js spec files",
			[]string{"app.test.js", "app.js"},
			1,
			0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var changed []models.ChangedFile
			for _, p := range tt.files {
				changed = append(changed, models.ChangedFile{Path: p})
			}
			f := Extract(Input{ChangedFiles: changed})
			assert.Equal(t, tt.wantTypes, f.FileTypesCount)
			assert.InDelta(t, tt.wantTest, f.PercentageTestFiles, 1e-9)
		})
	}
}

func TestExtractComplexityCopiedVerbatim(t *testing.T) {
	report := &complexity.CommitReport{
		AvgCyclomatic:       7.5,
		MaxCyclomatic:       14,
		AvgMaintainability:  62.3,
		TotalCCBlocks:       11,
		OverallCCRank:       "B",
		AvgHalsteadVolume:   830.25,
		SourceFilesAnalyzed: 3,
	}
	f := Extract(Input{Complexity: report})

	assert.Equal(t, 7.5, f.AvgCyclomaticComplexity)
	assert.Equal(t, 14.0, f.MaxCyclomaticComplexity)
	assert.Equal(t, 62.3, f.AvgMaintainabilityIndex)
	assert.Equal(t, 11, f.TotalCCBlocks)
	assert.Equal(t, "B", f.CCRank)
	assert.Equal(t, 830.25, f.AvgHalsteadVolume)
	assert.Equal(t, 3, f.ComplexitySourceFiles)
}

func TestExtractTemporal(t *testing.T) {
	tests := []struct {
		name        string
		ts          time.Time
		wantDay     int
		wantHour    int
		wantWeekend bool
	}{
		{"monday morning", time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC), 0, 9, false},
		{"friday afternoon", time.Date(2026, 8, 28, 16, 0, 0, 0, time.UTC), 4, 16, false},
		{"saturday night", time.Date(2026, 8, 29, 23, 15, 0, 0, time.UTC), 5, 23, true},
		{"sunday", time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), 6, 12, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Extract(Input{Commit: models.RawCommit{Timestamp: tt.ts}})
			if f.DayOfWeek != tt.wantDay {
				t.Errorf("DayOfWeek = %d, expected %d", f.DayOfWeek, tt.wantDay)
			}
			if f.HourOfDay != tt.wantHour {
				t.Errorf("HourOfDay = %d, expected %d", f.HourOfDay, tt.wantHour)
			}
			if f.WeekendFlag != tt.wantWeekend {
				t.Errorf("WeekendFlag = %v, expected %v", f.WeekendFlag, tt.wantWeekend)
			}
		})
	}
}

func TestExtractRiskyKeywords(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		wantCount int
	}{
		{"clean", "Add pagination to the results endpoint", 0},
		{"single", "Urgent: restore service", 1},
		{"case insensitive", "HOTFIX for the crash", 3}, // hotfix, fix (substring), crash
		{"substring matches", "fixme later, this is a hack", 3},
		{"empty message", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Extract(Input{Commit: models.RawCommit{Message: tt.message}})
			assert.Equal(t, tt.wantCount, f.RiskyKeywordCount)
			assert.Equal(t, tt.wantCount > 0, f.HasRiskyKeywords)
			assert.Equal(t, len(tt.message), f.MessageLength)
		})
	}
}

func TestExtractDerivedRatios(t *testing.T) {
	f := Extract(Input{
		Commit:    models.RawCommit{LinesAdded: 100, LinesDeleted: 9, FilesChanged: 3},
		Developer: models.DeveloperStats{PreviousBugRate: 0.2},
	})

	assert.InDelta(t, 10.0, f.CodeChurnRatio, 1e-9)     // 100 / (9+1)
	assert.InDelta(t, 0.027273, f.RiskDensity, 1e-6)    // 3 / (109+1)
	assert.InDelta(t, 21.8, f.DeveloperRiskScore, 1e-9) // 0.2 * 109
}

func TestExtractPure(t *testing.T) {
	in := Input{
		Commit: models.RawCommit{
			Message:      "fix flaky retry logic",
			LinesAdded:   40,
			LinesDeleted: 10,
			Timestamp:    time.Date(2026, 8, 26, 14, 0, 0, 0, time.UTC),
		},
		Developer: models.DeveloperStats{TotalPriorCommits: 50, PreviousBugRate: 0.1},
		Repo:      models.RepoStats{ContributorCount: 5},
	}
	first := Extract(in)
	second := Extract(in)
	assert.Equal(t, first, second)
}
