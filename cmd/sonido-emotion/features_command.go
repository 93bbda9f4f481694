package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-emotion/features"
)

type featuresOutput struct {
	File            string               `json:"file"`
	SampleRate      int                  `json:"sample_rate"`
	DurationSeconds float64              `json:"duration_seconds"`
	Frames          int                  `json:"frames"`
	Tuning          float64              `json:"tuning"`
	Descriptors     features.Descriptors `json:"descriptors"`
	Layout          []features.Segment   `json:"layout"`
	Vector          []float64            `json:"vector"`
}

func newFeaturesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "features <file>",
		Short: "Print the feature vector extracted from an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.close()

			analysis, err := p.classifier.Analyze(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("analyze %s: %w", args[0], err)
			}

			result := featuresOutput{
				File:            args[0],
				SampleRate:      analysis.Features.SampleRate,
				DurationSeconds: analysis.Audio.Duration.Seconds(),
				Frames:          analysis.Features.Frames,
				Tuning:          analysis.Features.Tuning,
				Descriptors:     analysis.Features.Descriptors,
				Layout:          analysis.Layout,
				Vector:          analysis.Vector,
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}
			renderFeatures(cmd, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full vector as JSON")
	return cmd
}

// renderFeatures summarises each feature group rather than printing all
// values.
func renderFeatures(cmd *cobra.Command, r featuresOutput) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d Hz, %.2fs, %d frames, tuning %+.2f\n",
		r.File, r.SampleRate, r.DurationSeconds, r.Frames, r.Tuning)
	fmt.Fprintf(out, "centroid %.0f Hz, bandwidth %.0f Hz, rolloff %.0f Hz, flatness %.3f, silence %.0f%%\n",
		r.Descriptors.Centroid, r.Descriptors.Bandwidth, r.Descriptors.Rolloff,
		r.Descriptors.Flatness, r.Descriptors.SilenceRatio*100)
	zcr := r.Descriptors.ZeroCrossing
	fmt.Fprintf(out, "zero crossing rate %.4f (std %.4f, range %.4f-%.4f)\n", zcr.Mean, zcr.StdDev, zcr.Min, zcr.Max)

	rows := make([][]string, 0, len(r.Layout))
	for _, seg := range r.Layout {
		end := min(seg.Offset+seg.Length, len(r.Vector))
		if seg.Offset >= end {
			rows = append(rows, []string{seg.Name, fmt.Sprint(seg.Offset), fmt.Sprint(seg.Length), "-", "-", "-"})
			continue
		}
		values := r.Vector[seg.Offset:end]
		rows = append(rows, []string{
			seg.Name,
			fmt.Sprint(seg.Offset),
			fmt.Sprint(seg.Length),
			fmt.Sprintf("%.4f", stat.Mean(values, nil)),
			fmt.Sprintf("%.4f", floats.Min(values)),
			fmt.Sprintf("%.4f", floats.Max(values)),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Feature", "Offset", "Length", "Mean", "Min", "Max"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
}
