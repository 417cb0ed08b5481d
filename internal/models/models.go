package models

import (
	"encoding/json"
	"time"
)

// RiskLevel represents the risk severity of a commit
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// Default level thresholds on the 0-100 score scale.
const (
	DefaultMediumThreshold = 30.0
	DefaultHighThreshold   = 60.0
)

// LevelFor maps a 0-100 risk score to a level against explicit
// thresholds, for deployments that tune the level bands in config.
func LevelFor(score, medium, high float64) RiskLevel {
	switch {
	case score >= high:
		return RiskLevelHigh
	case score >= medium:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// LevelForScore maps a 0-100 risk score to a level with the default
// thresholds: HIGH >= 60, MEDIUM >= 30, else LOW.
func LevelForScore(score float64) RiskLevel {
	return LevelFor(score, DefaultMediumThreshold, DefaultHighThreshold)
}

// RawCommit holds the commit facts supplied by the source-hosting collaborator.
// A zero Timestamp means the commit time is unknown.
type RawCommit struct {
	SHA          string    `json:"sha"`
	Message      string    `json:"message"`
	AuthorEmail  string    `json:"author_email"`
	LinesAdded   int       `json:"lines_added"`
	LinesDeleted int       `json:"lines_deleted"`
	FilesChanged int       `json:"files_changed"`
	Timestamp    time.Time `json:"timestamp"`
}

// ChangedFile pairs a changed file path with its full content.
type ChangedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// DeveloperStats aggregates the author's history, computed upstream
// from stored commit records.
type DeveloperStats struct {
	TotalPriorCommits int     `json:"total_prior_commits"`
	PreviousBugRate   float64 `json:"previous_bug_rate"`   // 0-1
	CommitFrequency   float64 `json:"commit_frequency"`    // commits/day, last 30 days
	TimeSinceLastHrs  float64 `json:"time_since_last_hrs"` // hours
}

// RepoStats aggregates repository-level statistics, computed upstream.
type RepoStats struct {
	SizeKB           int     `json:"size_kb"`
	ContributorCount int     `json:"contributor_count"`
	OpenIssuesCount  int     `json:"open_issues_count"`
	CommitVelocity   float64 `json:"commit_velocity"` // commits/week, repo-wide
}

// CommitFeatures is the canonical, fixed-order numeric feature vector for
// a single commit. Field groups: code volume, complexity, developer
// history, repository level, temporal, derived ratios, commit message.
type CommitFeatures struct {
	// Code volume
	LinesAdded          int     `json:"lines_added"`
	LinesDeleted        int     `json:"lines_deleted"`
	TotalLinesChanged   int     `json:"total_lines_changed"`
	FilesChanged        int     `json:"files_changed"`
	FileTypesCount      int     `json:"file_types_count"`
	PercentageTestFiles float64 `json:"percentage_test_files"` // 0-1

	// Complexity
	AvgCyclomaticComplexity float64 `json:"avg_cyclomatic_complexity"`
	MaxCyclomaticComplexity float64 `json:"max_cyclomatic_complexity"`
	AvgMaintainabilityIndex float64 `json:"avg_maintainability_index"`
	TotalCCBlocks           int     `json:"total_cc_blocks"`
	CCRank                  string  `json:"cc_rank"`
	AvgHalsteadVolume       float64 `json:"avg_halstead_volume"`
	ComplexitySourceFiles   int     `json:"complexity_source_files"`

	// Developer history
	TotalPriorCommits   int     `json:"total_prior_commits"`
	PreviousBugRate     float64 `json:"previous_bug_rate"`
	CommitFrequency     float64 `json:"commit_frequency"`
	TimeSinceLastCommit float64 `json:"time_since_last_commit"`

	// Repository level
	RepoSize         int     `json:"repo_size"`
	ContributorCount int     `json:"contributor_count"`
	OpenIssuesCount  int     `json:"open_issues_count"`
	CommitVelocity   float64 `json:"commit_velocity"`

	// Temporal
	DayOfWeek   int  `json:"day_of_week"` // 0=Mon .. 6=Sun
	HourOfDay   int  `json:"hour_of_day"`
	WeekendFlag bool `json:"weekend_flag"`

	// Derived
	CodeChurnRatio     float64 `json:"code_churn_ratio"`     // added / (deleted+1)
	RiskDensity        float64 `json:"risk_density"`         // files / (total+1)
	DeveloperRiskScore float64 `json:"developer_risk_score"` // bug_rate * total_lines

	// Commit message
	MessageLength     int  `json:"message_length"`
	HasRiskyKeywords  bool `json:"has_risky_keywords"`
	RiskyKeywordCount int  `json:"risky_keyword_count"`
}

// FeatureColumns is the ordered list of numeric feature names used to
// build model input vectors. The list embedded in a trained bundle must
// match this column-for-column; a mismatch refuses inference. CCRank is
// excluded because it is not numeric.
var FeatureColumns = []string{
	"lines_added",
	"lines_deleted",
	"total_lines_changed",
	"files_changed",
	"file_types_count",
	"percentage_test_files",
	"avg_cyclomatic_complexity",
	"max_cyclomatic_complexity",
	"avg_maintainability_index",
	"total_cc_blocks",
	"avg_halstead_volume",
	"complexity_source_files",
	"total_prior_commits",
	"previous_bug_rate",
	"commit_frequency",
	"time_since_last_commit",
	"repo_size",
	"contributor_count",
	"open_issues_count",
	"commit_velocity",
	"day_of_week",
	"hour_of_day",
	"weekend_flag",
	"code_churn_ratio",
	"risk_density",
	"developer_risk_score",
	"message_length",
	"has_risky_keywords",
	"risky_keyword_count",
}

// Value returns the numeric value of the named feature. Booleans are
// cast to 0/1. The second return is false for unknown names.
func (f CommitFeatures) Value(name string) (float64, bool) {
	switch name {
	case "lines_added":
		return float64(f.LinesAdded), true
	case "lines_deleted":
		return float64(f.LinesDeleted), true
	case "total_lines_changed":
		return float64(f.TotalLinesChanged), true
	case "files_changed":
		return float64(f.FilesChanged), true
	case "file_types_count":
		return float64(f.FileTypesCount), true
	case "percentage_test_files":
		return f.PercentageTestFiles, true
	case "avg_cyclomatic_complexity":
		return f.AvgCyclomaticComplexity, true
	case "max_cyclomatic_complexity":
		return f.MaxCyclomaticComplexity, true
	case "avg_maintainability_index":
		return f.AvgMaintainabilityIndex, true
	case "total_cc_blocks":
		return float64(f.TotalCCBlocks), true
	case "avg_halstead_volume":
		return f.AvgHalsteadVolume, true
	case "complexity_source_files":
		return float64(f.ComplexitySourceFiles), true
	case "total_prior_commits":
		return float64(f.TotalPriorCommits), true
	case "previous_bug_rate":
		return f.PreviousBugRate, true
	case "commit_frequency":
		return f.CommitFrequency, true
	case "time_since_last_commit":
		return f.TimeSinceLastCommit, true
	case "repo_size":
		return float64(f.RepoSize), true
	case "contributor_count":
		return float64(f.ContributorCount), true
	case "open_issues_count":
		return float64(f.OpenIssuesCount), true
	case "commit_velocity":
		return f.CommitVelocity, true
	case "day_of_week":
		return float64(f.DayOfWeek), true
	case "hour_of_day":
		return float64(f.HourOfDay), true
	case "weekend_flag":
		return boolToFloat(f.WeekendFlag), true
	case "code_churn_ratio":
		return f.CodeChurnRatio, true
	case "risk_density":
		return f.RiskDensity, true
	case "developer_risk_score":
		return f.DeveloperRiskScore, true
	case "message_length":
		return float64(f.MessageLength), true
	case "has_risky_keywords":
		return boolToFloat(f.HasRiskyKeywords), true
	case "risky_keyword_count":
		return float64(f.RiskyKeywordCount), true
	}
	return 0, false
}

// Vector builds a numeric row in the given column order. Unknown column
// names produce a 0.0 sentinel; missing-value handling proper happens in
// the preprocessing pipeline.
func (f CommitFeatures) Vector(columns []string) []float64 {
	row := make([]float64, len(columns))
	for i, col := range columns {
		v, _ := f.Value(col)
		row[i] = v
	}
	return row
}

// ToJSON serialises the features for storage alongside an assessment.
func (f CommitFeatures) ToJSON() (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// RiskResult is the output unit of a single prediction. It is created
// fresh per prediction and immutable once returned; ownership passes to
// the caller for persistence.
type RiskResult struct {
	RiskScore      float64            `json:"risk_score"` // 0-100
	RiskLevel      RiskLevel          `json:"risk_level"`
	Confidence     float64            `json:"confidence"` // 0-1
	Features       CommitFeatures     `json:"features"`
	ScoreBreakdown map[string]float64 `json:"score_breakdown"`
}

// TrainingSample pairs a stored feature vector with its binary label.
type TrainingSample struct {
	SHA        string         `json:"sha"`
	Repository string         `json:"repository"`
	Features   CommitFeatures `json:"features"`
	Label      int            `json:"label"` // 1 = risky
}

// Assessment is the persisted record of one risk prediction.
type Assessment struct {
	ID            string    `json:"id" db:"id"`
	RepoID        string    `json:"repo_id" db:"repo_id"`
	CommitSHA     string    `json:"commit_sha" db:"commit_sha"`
	RiskScore     float64   `json:"risk_score" db:"risk_score"`
	RiskLevel     RiskLevel `json:"risk_level" db:"risk_level"`
	Confidence    float64   `json:"confidence" db:"confidence"`
	Engine        string    `json:"engine" db:"engine"` // "rule_based" or "ml"
	ModelVersion  string    `json:"model_version" db:"model_version"`
	BreakdownJSON string    `json:"breakdown_json" db:"breakdown_json"`
	FeaturesJSON  string    `json:"features_json" db:"features_json"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
