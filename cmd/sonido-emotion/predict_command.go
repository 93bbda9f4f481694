package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-emotion/classifier"
	"github.com/RyanBlaney/sonido-emotion/emotion"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

type predictionOutput struct {
	File            string                    `json:"file"`
	Label           emotion.Label             `json:"label,omitempty"`
	Score           float64                   `json:"score"`
	Scores          map[emotion.Label]float64 `json:"scores,omitempty"`
	Probabilities   map[emotion.Label]float64 `json:"probabilities,omitempty"`
	Normalized      bool                      `json:"normalized"`
	DurationSeconds float64                   `json:"duration_seconds"`
	Error           string                    `json:"error,omitempty"`
}

func newPredictCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var normalize string

	cmd := &cobra.Command{
		Use:   "predict <file>...",
		Short: "Predict the emotion of one or more audio files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(normalize) != "" {
				if _, err := emotion.ParseNormalizeMode(normalize); err != nil {
					return err
				}
				cfg.Model.Normalize = normalize
			}

			p, err := ctx.openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.close()

			results := make([]predictionOutput, 0, len(args))
			failed := 0
			for _, path := range args {
				pred, err := p.classifier.PredictEmotion(cmd.Context(), path)
				if err != nil {
					if cmd.Context().Err() != nil {
						return cmd.Context().Err()
					}
					failed++
					logging.Error(err, "Prediction failed", logging.Fields{"file": path})
					results = append(results, predictionOutput{File: path, Error: err.Error()})
					continue
				}
				results = append(results, toPredictionOutput(path, pred))
			}

			if jsonOutput {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				renderPredictions(cmd, results)
			}

			if failed > 0 {
				if len(args) == 1 {
					return fmt.Errorf("predict %s: %s", args[0], results[0].Error)
				}
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	cmd.Flags().StringVar(&normalize, "normalize", "", "Score normalisation: auto, softmax or none")
	return cmd
}

func toPredictionOutput(path string, pred *classifier.Prediction) predictionOutput {
	out := predictionOutput{
		File:            path,
		Label:           pred.Label,
		Score:           pred.Score(),
		Scores:          emotion.ScoreMap(pred.Scores),
		Normalized:      pred.Normalized,
		DurationSeconds: pred.Duration.Seconds(),
	}
	if pred.Probabilities != nil {
		out.Probabilities = emotion.ScoreMap(pred.Probabilities)
	}
	return out
}

func renderPredictions(cmd *cobra.Command, results []predictionOutput) {
	out := cmd.OutOrStdout()
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(out)
		}
		if r.Error != "" {
			fmt.Fprintf(out, "%s: error: %s\n", r.File, r.Error)
			continue
		}
		fmt.Fprintf(out, "%s: %s (%.2fs)\n", r.File, r.Label, r.DurationSeconds)

		rows := make([][]string, 0, len(emotion.Labels))
		for _, label := range emotion.Labels {
			name := string(label)
			if label == r.Label {
				name += " *"
			}
			prob := "-"
			if p, ok := r.Probabilities[label]; ok {
				prob = fmt.Sprintf("%.1f%%", p*100)
			}
			rows = append(rows, []string{name, fmt.Sprintf("%.4f", r.Scores[label]), prob})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Label", "Score", "Probability"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight},
		))
	}
}
