package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/riskwatch/riskwatch-go/internal/ml"
	"github.com/spf13/cobra"
)

var trainOpts struct {
	modelType      string
	synthetic      bool
	syntheticCount int
	positiveRate   float64
	seed           int64
	csvExport      string
	testSize       float64
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a risk model from stored labeled samples",
	Long: `Train collects labeled samples from storage, fits a classifier, and
writes a versioned model bundle plus the "latest" artifact that the
score command picks up. With --synthetic, generated samples fill in
when stored history is too thin.`,
	RunE: runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.StringVar(&trainOpts.modelType, "model", "", "classifier type: "+strings.Join(ml.ModelTypes(), ", "))
	f.BoolVar(&trainOpts.synthetic, "synthetic", false, "augment with synthetic samples when below the minimum")
	f.IntVar(&trainOpts.syntheticCount, "synthetic-count", 0, "synthetic sample count")
	f.Float64Var(&trainOpts.positiveRate, "positive-rate", 0, "risky fraction of synthetic samples, 0-1")
	f.Int64Var(&trainOpts.seed, "seed", 0, "random seed for generation and splitting")
	f.StringVar(&trainOpts.csvExport, "csv", "", "dump the assembled training set to this CSV path")
	f.Float64Var(&trainOpts.testSize, "test-size", 0, "held-out fraction for evaluation")
}

func runTrain(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	modelType := trainOpts.modelType
	if modelType == "" {
		modelType = cfg.Training.ModelType
	}
	syntheticCount := trainOpts.syntheticCount
	if syntheticCount == 0 {
		syntheticCount = cfg.Training.SyntheticCount
	}
	positiveRate := trainOpts.positiveRate
	if positiveRate == 0 {
		positiveRate = cfg.Training.PositiveRate
	}
	testSize := trainOpts.testSize
	if testSize == 0 {
		testSize = cfg.Training.TestSize
	}

	trainer := ml.NewTrainer(store, cfg.Models.Directory, logger)
	result, err := trainer.Train(cmd.Context(), ml.TrainOptions{
		ModelType:      modelType,
		Synthetic:      trainOpts.synthetic,
		SyntheticCount: syntheticCount,
		PositiveRate:   positiveRate,
		Seed:           trainOpts.seed,
		CSVExport:      trainOpts.csvExport,
		TestSize:       testSize,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Trained %s %s in %.2fs\n", result.ModelName, result.ModelVersion, result.TrainingTime)
	fmt.Printf("Bundle:  %s\n\n", result.ModelPath)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Metric", "Value"})
	data := [][]string{
		{"Accuracy", fmtMetric(result.Metrics.Accuracy)},
		{"Precision", fmtMetric(result.Metrics.Precision)},
		{"Recall", fmtMetric(result.Metrics.Recall)},
		{"F1 score", fmtMetric(result.Metrics.F1Score)},
		{"ROC-AUC", fmtMetric(result.Metrics.ROCAUC)},
		{"Train samples", strconv.Itoa(result.TrainSamples)},
		{"Test samples", strconv.Itoa(result.TestSamples)},
		{"Removed rows", strconv.Itoa(result.RemovedSamples)},
		{"Risky share", fmt.Sprintf("%.1f%%", result.PositiveRate)},
	}
	if err := table.Bulk(data); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}

func fmtMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
