package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/riskwatch/riskwatch-go/internal/complexity"
	"github.com/riskwatch/riskwatch-go/internal/features"
	"github.com/riskwatch/riskwatch-go/internal/ml"
	"github.com/riskwatch/riskwatch-go/internal/models"
	"github.com/riskwatch/riskwatch-go/internal/risk"
	"github.com/spf13/cobra"
)

var (
	highColor   = color.New(color.FgRed, color.Bold)
	mediumColor = color.New(color.FgYellow, color.Bold)
	lowColor    = color.New(color.FgGreen)
)

var scoreOpts struct {
	sha       string
	message   string
	author    string
	added     int
	deleted   int
	filesFlag int
	paths     []string
	timestamp string

	priorCommits int
	bugRate      float64
	commitFreq   float64
	hoursSince   float64

	repoSizeKB   int
	contributors int
	openIssues   int
	velocity     float64

	repoID     string
	modelPath  string
	save       bool
	label      int
	jsonOutput bool
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score the deployment risk of a single commit",
	Long: `Score extracts features from the described commit, runs them through
the active model (or the heuristic rules when no model is loaded), and
prints the risk score, level, and per-category breakdown.`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.StringVar(&scoreOpts.sha, "sha", "", "commit SHA")
	f.StringVarP(&scoreOpts.message, "message", "m", "", "commit message")
	f.StringVar(&scoreOpts.author, "author", "", "author email")
	f.IntVar(&scoreOpts.added, "added", 0, "lines added")
	f.IntVar(&scoreOpts.deleted, "deleted", 0, "lines deleted")
	f.IntVar(&scoreOpts.filesFlag, "files-changed", 0, "changed file count (defaults to --file count)")
	f.StringArrayVar(&scoreOpts.paths, "file", nil, "changed file path, repeatable; contents are read for complexity analysis")
	f.StringVar(&scoreOpts.timestamp, "timestamp", "", "commit timestamp, RFC3339 (default: unknown)")

	f.IntVar(&scoreOpts.priorCommits, "prior-commits", 0, "author's prior commit count")
	f.Float64Var(&scoreOpts.bugRate, "bug-rate", 0, "author's historical bug rate, 0-1")
	f.Float64Var(&scoreOpts.commitFreq, "commit-frequency", 0, "author commits per day over the last 30 days")
	f.Float64Var(&scoreOpts.hoursSince, "hours-since-last", 0, "hours since the author's previous commit")

	f.IntVar(&scoreOpts.repoSizeKB, "repo-size", 0, "repository size in KB")
	f.IntVar(&scoreOpts.contributors, "contributors", 0, "repository contributor count")
	f.IntVar(&scoreOpts.openIssues, "open-issues", 0, "repository open issue count")
	f.Float64Var(&scoreOpts.velocity, "velocity", 0, "repository commits per week")

	f.StringVar(&scoreOpts.repoID, "repo", "", "repository identifier for persisted assessments")
	f.StringVar(&scoreOpts.modelPath, "model", "", "model bundle path (default: <models dir>/latest.json)")
	f.BoolVar(&scoreOpts.save, "save", false, "persist the assessment to storage")
	f.IntVar(&scoreOpts.label, "label", -1, "store the feature vector as a labeled sample (0=safe, 1=risky)")
	f.BoolVar(&scoreOpts.jsonOutput, "json", false, "emit the result as JSON")
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	commit := models.RawCommit{
		SHA:          scoreOpts.sha,
		Message:      scoreOpts.message,
		AuthorEmail:  scoreOpts.author,
		LinesAdded:   scoreOpts.added,
		LinesDeleted: scoreOpts.deleted,
		FilesChanged: scoreOpts.filesFlag,
	}
	if scoreOpts.timestamp != "" {
		ts, err := time.Parse(time.RFC3339, scoreOpts.timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		commit.Timestamp = ts
	}

	var changed []models.ChangedFile
	for _, path := range scoreOpts.paths {
		content, err := os.ReadFile(path)
		if err != nil {
			logger.WithError(err).WithField("path", path).Warn("Skipping unreadable file")
			changed = append(changed, models.ChangedFile{Path: path})
			continue
		}
		changed = append(changed, models.ChangedFile{Path: path, Content: string(content)})
	}
	if commit.FilesChanged == 0 {
		commit.FilesChanged = len(changed)
	}

	var report *complexity.CommitReport
	if len(changed) > 0 {
		named := make([]complexity.NamedContent, 0, len(changed))
		for _, cf := range changed {
			if cf.Content == "" {
				continue
			}
			named = append(named, complexity.NamedContent{Name: cf.Path, Content: cf.Content})
		}
		if len(named) > 0 {
			analyzer := complexity.NewAnalyzer(logger)
			var err error
			report, err = analyzer.AnalyzeCommit(ctx, commit.SHA, named)
			if err != nil {
				logger.WithError(err).Warn("Complexity analysis failed, scoring without it")
				report = nil
			}
		}
	}

	feats := features.Extract(features.Input{
		Commit: commit,
		Developer: models.DeveloperStats{
			TotalPriorCommits: scoreOpts.priorCommits,
			PreviousBugRate:   scoreOpts.bugRate,
			CommitFrequency:   scoreOpts.commitFreq,
			TimeSinceLastHrs:  scoreOpts.hoursSince,
		},
		Repo: models.RepoStats{
			SizeKB:           scoreOpts.repoSizeKB,
			ContributorCount: scoreOpts.contributors,
			OpenIssuesCount:  scoreOpts.openIssues,
			CommitVelocity:   scoreOpts.velocity,
		},
		Complexity:   report,
		ChangedFiles: changed,
	})

	predictor := ml.NewPredictor(cfg.Models.Directory, logger)
	predictor.Load(expandModelPath(cfg.Models.Directory, scoreOpts.modelPath))

	result := predictor.Predict(feats)
	result.RiskLevel = models.LevelFor(result.RiskScore, cfg.Risk.MediumThreshold, cfg.Risk.HighThreshold)
	info := predictor.GetInfo()

	if scoreOpts.save || scoreOpts.label >= 0 {
		if err := persistResult(cmd, feats, result, info); err != nil {
			return err
		}
	}

	if scoreOpts.jsonOutput {
		out := struct {
			models.RiskResult
			Engine       string `json:"engine"`
			ModelVersion string `json:"model_version"`
		}{result, info.Engine, info.Version}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printResult(result, info)
	return nil
}

func persistResult(cmd *cobra.Command, feats models.CommitFeatures, result models.RiskResult, info ml.Info) error {
	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	if scoreOpts.save {
		featuresJSON, err := feats.ToJSON()
		if err != nil {
			return fmt.Errorf("encode features: %w", err)
		}
		breakdownJSON, err := json.Marshal(result.ScoreBreakdown)
		if err != nil {
			return fmt.Errorf("encode breakdown: %w", err)
		}
		a := &models.Assessment{
			RepoID:        scoreOpts.repoID,
			CommitSHA:     scoreOpts.sha,
			RiskScore:     result.RiskScore,
			RiskLevel:     result.RiskLevel,
			Confidence:    result.Confidence,
			Engine:        info.Engine,
			ModelVersion:  info.Version,
			BreakdownJSON: string(breakdownJSON),
			FeaturesJSON:  featuresJSON,
		}
		if err := store.SaveAssessment(ctx, a); err != nil {
			return err
		}
		logger.WithField("id", a.ID).Debug("Assessment saved")
	}

	if scoreOpts.label >= 0 {
		if scoreOpts.label > 1 {
			return fmt.Errorf("label must be 0 or 1, got %d", scoreOpts.label)
		}
		if scoreOpts.sha == "" {
			return fmt.Errorf("--label requires --sha")
		}
		sample := &models.TrainingSample{
			SHA:        scoreOpts.sha,
			Repository: scoreOpts.repoID,
			Features:   feats,
			Label:      scoreOpts.label,
		}
		if err := store.SaveTrainingSample(cmd.Context(), sample); err != nil {
			return err
		}
	}
	return nil
}

func printResult(result models.RiskResult, info ml.Info) {
	fmt.Printf("Risk score: %.2f / 100\n", result.RiskScore)
	fmt.Printf("Risk level: %s\n", colorLevel(result.RiskLevel))
	fmt.Printf("Confidence: %.2f\n", result.Confidence)
	fmt.Printf("Engine:     %s (%s)\n\n", info.Engine, info.Version)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Category", "Points", "Cap"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, cat := range risk.Categories {
		data = append(data, []string{
			cat,
			strconv.FormatFloat(result.ScoreBreakdown[cat], 'f', 2, 64),
			strconv.FormatFloat(risk.Cap(cat), 'f', 0, 64),
		})
	}
	if err := table.Bulk(data); err != nil {
		logger.WithError(err).Warn("Failed to render breakdown table")
		return
	}
	if err := table.Render(); err != nil {
		logger.WithError(err).Warn("Failed to render breakdown table")
	}
}

func colorLevel(level models.RiskLevel) string {
	switch level {
	case models.RiskLevelHigh:
		return highColor.Sprint(string(level))
	case models.RiskLevelMedium:
		return mediumColor.Sprint(string(level))
	default:
		return lowColor.Sprint(string(level))
	}
}

// expandModelPath keeps relative bundle paths anchored at the models dir.
func expandModelPath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
