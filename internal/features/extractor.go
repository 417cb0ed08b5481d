package features

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/riskwatch/riskwatch-go/internal/complexity"
	"github.com/riskwatch/riskwatch-go/internal/models"
)

// riskyKeywords is matched case-insensitively as substrings of the
// commit message. Both the flag and the distinct-match count are kept.
var riskyKeywords = []string{
	"fix", "hotfix", "urgent", "hack", "workaround", "temp", "wip",
	"revert", "rollback", "patch", "broken", "bug", "crash", "critical",
	"emergency", "quick fix", "dirty", "todo", "fixme",
}

var testPattern = regexp.MustCompile(`(?i)(test_|_test\.|tests/|spec/|__tests__|\.test\.|\.spec\.)`)

// Input carries everything the extractor consumes. Developer and
// repository statistics are computed by the storage collaborator; the
// extractor itself performs no I/O.
type Input struct {
	Commit       models.RawCommit
	Developer    models.DeveloperStats
	Repo         models.RepoStats
	Complexity   *complexity.CommitReport // optional
	ChangedFiles []models.ChangedFile     // optional, used for type/test heuristics
}

// Extract builds the canonical feature vector from raw commit facts and
// context. It is a pure function: same input, same output, no side
// effects, safe for concurrent use.
func Extract(in Input) models.CommitFeatures {
	f := models.CommitFeatures{
		AvgMaintainabilityIndex: 100.0, // optimistic default: healthy until proven otherwise
		CCRank:                  "A",
	}

	// Code volume
	f.LinesAdded = in.Commit.LinesAdded
	f.LinesDeleted = in.Commit.LinesDeleted
	f.TotalLinesChanged = in.Commit.LinesAdded + in.Commit.LinesDeleted
	f.FilesChanged = in.Commit.FilesChanged

	if len(in.ChangedFiles) > 0 {
		extensions := make(map[string]struct{})
		testCount := 0
		for _, cf := range in.ChangedFiles {
			if ext := fileExt(cf.Path); ext != "" {
				extensions[ext] = struct{}{}
			}
			if testPattern.MatchString(cf.Path) {
				testCount++
			}
		}
		f.FileTypesCount = len(extensions)
		f.PercentageTestFiles = round4(float64(testCount) / float64(len(in.ChangedFiles)))
	}

	// Complexity, copied verbatim from the report when present
	if in.Complexity != nil {
		f.AvgCyclomaticComplexity = in.Complexity.AvgCyclomatic
		f.MaxCyclomaticComplexity = in.Complexity.MaxCyclomatic
		f.AvgMaintainabilityIndex = in.Complexity.AvgMaintainability
		f.TotalCCBlocks = in.Complexity.TotalCCBlocks
		f.CCRank = in.Complexity.OverallCCRank
		f.AvgHalsteadVolume = in.Complexity.AvgHalsteadVolume
		f.ComplexitySourceFiles = in.Complexity.SourceFilesAnalyzed
	}

	// Developer history
	f.TotalPriorCommits = in.Developer.TotalPriorCommits
	f.PreviousBugRate = in.Developer.PreviousBugRate
	f.CommitFrequency = in.Developer.CommitFrequency
	f.TimeSinceLastCommit = in.Developer.TimeSinceLastHrs

	// Repository level
	f.RepoSize = in.Repo.SizeKB
	f.ContributorCount = in.Repo.ContributorCount
	f.OpenIssuesCount = in.Repo.OpenIssuesCount
	f.CommitVelocity = in.Repo.CommitVelocity

	// Temporal, only when a timestamp is known
	if !in.Commit.Timestamp.IsZero() {
		weekday := mondayIndexed(in.Commit.Timestamp.Weekday())
		f.DayOfWeek = weekday
		f.HourOfDay = in.Commit.Timestamp.Hour()
		f.WeekendFlag = weekday >= 5 // Saturday or Sunday
	}

	// Commit message
	if in.Commit.Message != "" {
		f.MessageLength = len(in.Commit.Message)
		msgLower := strings.ToLower(in.Commit.Message)
		for _, kw := range riskyKeywords {
			if strings.Contains(msgLower, kw) {
				f.RiskyKeywordCount++
			}
		}
		f.HasRiskyKeywords = f.RiskyKeywordCount > 0
	}

	// Derived ratios; +1 denominators avoid division by zero
	f.CodeChurnRatio = round4(float64(f.LinesAdded) / float64(f.LinesDeleted+1))
	f.RiskDensity = round6(float64(f.FilesChanged) / float64(f.TotalLinesChanged+1))
	f.DeveloperRiskScore = round4(f.PreviousBugRate * float64(f.TotalLinesChanged))

	return f
}

// mondayIndexed converts Go's Sunday-first weekday to a Monday=0 index
// so Saturday and Sunday sit at 5 and 6.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func fileExt(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(filename[idx:])
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
