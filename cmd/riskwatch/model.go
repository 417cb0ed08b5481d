package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/riskwatch/riskwatch-go/internal/ml"
	"github.com/spf13/cobra"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect trained model bundles",
}

var modelInfoOpts struct {
	path       string
	jsonOutput bool
}

var modelInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the active model and its evaluation metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		predictor := ml.NewPredictor(cfg.Models.Directory, logger)
		predictor.Load(expandModelPath(cfg.Models.Directory, modelInfoOpts.path))
		info := predictor.GetInfo()

		if modelInfoOpts.jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		fmt.Printf("Engine:  %s\n", info.Engine)
		fmt.Printf("Version: %s\n", info.Version)
		if !info.MLAvailable {
			fmt.Println("No trained bundle is active; scoring uses heuristic rules.")
			return nil
		}
		fmt.Printf("Model:   %s\n", info.ModelName)
		fmt.Printf("Trained: %s\n", info.TrainedAt.Format("2006-01-02 15:04:05 MST"))
		if info.Metrics != nil {
			fmt.Printf("Metrics: accuracy=%.4f precision=%.4f recall=%.4f f1=%.4f auc=%.4f\n",
				info.Metrics.Accuracy, info.Metrics.Precision, info.Metrics.Recall,
				info.Metrics.F1Score, info.Metrics.ROCAUC)
		}
		return nil
	},
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List model bundles in the models directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := ml.ListBundles(cfg.Models.Directory)
		if err != nil {
			return fmt.Errorf("list bundles: %w", err)
		}
		if len(paths) == 0 {
			fmt.Printf("No bundles found in %s\n", cfg.Models.Directory)
			return nil
		}
		for _, p := range paths {
			fmt.Println(filepath.Base(p))
		}
		return nil
	},
}

func init() {
	modelInfoCmd.Flags().StringVar(&modelInfoOpts.path, "path", "", "bundle path (default: <models dir>/latest.json)")
	modelInfoCmd.Flags().BoolVar(&modelInfoOpts.jsonOutput, "json", false, "emit as JSON")
	modelCmd.AddCommand(modelInfoCmd)
	modelCmd.AddCommand(modelListCmd)
}
