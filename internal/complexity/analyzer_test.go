package complexity

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simpleSource = `package sample

// Add returns the sum of two ints.
func Add(a, b int) int {
	return a + b
}
`

const branchySource = `package sample

func Classify(n int) string {
	if n < 0 {
		return "negative"
	}
	if n == 0 {
		return "zero"
	}
	for i := 0; i < n; i++ {
		if i%2 == 0 && i > 2 {
			return "even"
		}
	}
	switch {
	case n > 100:
		return "large"
	case n > 10:
		return "medium"
	}
	return "small"
}
`

func newTestAnalyzer() *Analyzer {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewAnalyzer(logger)
}

func TestAnalyzeFileSimpleFunction(t *testing.T) {
	a := newTestAnalyzer()
	fc := a.AnalyzeFile("sample.go", simpleSource)

	assert.Equal(t, "go", fc.Language)
	assert.Equal(t, 1, fc.NumBlocks)
	assert.Equal(t, 1.0, fc.CyclomaticComplexity, "straight-line function has CC 1")
	assert.Equal(t, "A", fc.CCRank)
	assert.Greater(t, fc.HalsteadVolume, 0.0)
	assert.Greater(t, fc.MaintainabilityIndex, 50.0)
	assert.Equal(t, 1, fc.Comments)
}

func TestAnalyzeFileBranches(t *testing.T) {
	a := newTestAnalyzer()
	fc := a.AnalyzeFile("branchy.go", branchySource)

	// 1 + if + if + for + if + && + case + case = 8
	assert.Equal(t, 8.0, fc.CyclomaticComplexity)
	assert.Equal(t, 8.0, fc.MaxComplexity)
	assert.Equal(t, "B", fc.CCRank)
}

func TestAnalyzeFileParseFailure(t *testing.T) {
	a := newTestAnalyzer()
	fc := a.AnalyzeFile("broken.go", "package sample\nfunc oops( {")

	// Degrades to line counts without failing.
	assert.Equal(t, "go", fc.Language)
	assert.Zero(t, fc.NumBlocks)
	assert.Zero(t, fc.CyclomaticComplexity)
	assert.Equal(t, 100.0, fc.MaintainabilityIndex)
	assert.Equal(t, 2, fc.SLOC)
}

func TestAnalyzeFileNonGo(t *testing.T) {
	a := newTestAnalyzer()
	fc := a.AnalyzeFile("script.py", "# comment\nprint('hi')\n\nx = 1")

	assert.Equal(t, "other", fc.Language)
	assert.Equal(t, 4, fc.LOC)
	assert.Equal(t, 2, fc.SLOC)
	assert.Equal(t, 1, fc.Comments)
	assert.Equal(t, 1, fc.Blank)
	assert.Zero(t, fc.NumBlocks)
}

func TestAnalyzeCommitAggregates(t *testing.T) {
	a := newTestAnalyzer()
	report, err := a.AnalyzeCommit(context.Background(), "abc1234", []NamedContent{
		{Name: "simple.go", Content: simpleSource},
		{Name: "branchy.go", Content: branchySource},
		{Name: "notes.md", Content: "release notes\n"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalFilesAnalyzed)
	assert.Equal(t, 2, report.SourceFilesAnalyzed)
	assert.Equal(t, 2, report.TotalCCBlocks)
	assert.InDelta(t, 4.5, report.AvgCyclomatic, 1e-9) // mean(1, 8)
	assert.Equal(t, 8.0, report.MaxCyclomatic)
	assert.Equal(t, "A", report.OverallCCRank)
	assert.Greater(t, report.AvgHalsteadVolume, 0.0)
	assert.Greater(t, report.AvgMaintainability, 0.0)
}

func TestAnalyzeCommitEmpty(t *testing.T) {
	a := newTestAnalyzer()
	report, err := a.AnalyzeCommit(context.Background(), "abc1234", nil)
	require.NoError(t, err)

	assert.Equal(t, 100.0, report.AvgMaintainability)
	assert.Equal(t, "A", report.OverallCCRank)
	assert.Zero(t, report.TotalFilesAnalyzed)
}

func TestAnalyzeCommitCancelled(t *testing.T) {
	a := newTestAnalyzer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.AnalyzeCommit(ctx, "abc1234", []NamedContent{
		{Name: "simple.go", Content: simpleSource},
	})
	assert.Error(t, err)
}
