// CLI for chord analysis, the visualizer server, and weight training.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/chordscape/chordscape/logging"
	"github.com/chordscape/chordscape/pipeline"
	"github.com/chordscape/chordscape/server"
	"github.com/chordscape/chordscape/training"
)

var rootCmd = &cobra.Command{
	Use:   "chordscape",
	Short: "Chord and key analysis with a piano visualizer server",
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url|file>",
	Short: "Analyze an audio source and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		weightsDir, _ := cmd.Flags().GetString("weights-dir")
		verbose, _ := cmd.Flags().GetBool("verbose")
		return runAnalyze(args[0], weightsDir, verbose)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the visualizer web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		staticDir, _ := cmd.Flags().GetString("static")
		weightsDir, _ := cmd.Flags().GetString("weights-dir")
		return runServe(addr, staticDir, weightsDir)
	},
}

var trainCmd = &cobra.Command{
	Use:   "train <dataset.json>",
	Short: "Train the combination weights on a labeled dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		weightsDir, _ := cmd.Flags().GetString("weights-dir")
		epochs, _ := cmd.Flags().GetInt("epochs")
		return runTrain(args[0], weightsDir, epochs)
	},
}

func init() {
	analyzeCmd.Flags().String("weights-dir", "", "Weight store directory (optional)")
	analyzeCmd.Flags().BoolP("verbose", "v", false, "Enable debug logging")
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().String("static", "web", "Static visualizer assets directory")
	serveCmd.Flags().String("weights-dir", "", "Weight store directory (optional)")
	trainCmd.Flags().String("weights-dir", "", "Weight store directory for persisting results")
	trainCmd.Flags().Int("epochs", 0, "Override training epochs")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trainCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadRegistry builds the weight registry, seeded from the store when a
// directory is given and a snapshot has been persisted
func loadRegistry(weightsDir string) (*training.Registry, error) {
	registry := training.NewRegistry()
	if weightsDir == "" {
		return registry, nil
	}

	store, err := training.OpenStore(weightsDir)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	weights, err := store.Load()
	if err != nil {
		return nil, err
	}
	if weights != nil {
		registry.Publish(weights)
		logging.Info("loaded persisted weights", logging.Fields{"dir": weightsDir})
	}
	return registry, nil
}

func runAnalyze(source, weightsDir string, verbose bool) error {
	if verbose {
		logging.SetLevel(logging.DebugLevel)
	}

	registry, err := loadRegistry(weightsDir)
	if err != nil {
		return err
	}

	pipe, err := pipeline.New(pipeline.DefaultConfig(), registry)
	if err != nil {
		return err
	}

	progress := func(stage pipeline.Stage, message string) {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", stage, message)
	}

	ctx := context.Background()
	var result *pipeline.Result
	if strings.HasPrefix(source, "http") {
		result, err = pipe.AnalyzeURL(ctx, source, progress)
	} else {
		result, err = pipe.AnalyzeFile(ctx, source, progress)
	}
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func runServe(addr, staticDir, weightsDir string) error {
	registry, err := loadRegistry(weightsDir)
	if err != nil {
		return err
	}

	pipe, err := pipeline.New(pipeline.DefaultConfig(), registry)
	if err != nil {
		return err
	}

	srv := server.New(&server.Config{Addr: addr, StaticDir: staticDir}, pipe)
	return srv.Run()
}

func runTrain(datasetPath, weightsDir string, epochs int) error {
	samples, err := training.LoadDataset(datasetPath)
	if err != nil {
		return err
	}

	config := training.DefaultTrainingConfig()
	if epochs > 0 {
		config.Epochs = epochs
	}

	registry, err := loadRegistry(weightsDir)
	if err != nil {
		return err
	}

	// progress bar over epochs
	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(config.Epochs),
		mpb.PrependDecorators(
			decor.Name("Training: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
		),
	)

	trainer := training.NewTrainerWithConfig(config)
	result, err := trainer.Train(samples, registry.Current(), func(epoch int, accuracy float64) {
		bar.Increment()
	})
	if err != nil {
		return err
	}
	p.Wait()

	fmt.Printf("validation accuracy: %.3f (improved: %v)\n", result.ValidationAccuracy, result.Improved)

	if !result.Improved {
		fmt.Println("no improvement over current weights, nothing persisted")
		return nil
	}

	registry.Publish(result.Weights)

	if weightsDir != "" {
		store, err := training.OpenStore(weightsDir)
		if err != nil {
			return err
		}
		defer store.Close()

		configBlob := map[string]float64{
			"validation_accuracy": result.ValidationAccuracy,
		}
		if err := store.Save(result.Weights, configBlob, &config); err != nil {
			return err
		}
		fmt.Println("weights persisted to", weightsDir)
	}

	return nil
}
