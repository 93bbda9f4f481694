package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-emotion/emotion"
)

func newLabelsCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "labels",
		Short:       "List the emotion labels in model output order",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				return writeJSON(cmd, emotion.Labels)
			}
			rows := make([][]string, 0, len(emotion.Labels))
			for i, label := range emotion.Labels {
				rows = append(rows, []string{fmt.Sprint(i), string(label)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Index", "Label"}, rows, []columnAlignment{alignRight, alignLeft}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print labels as JSON")
	return cmd
}
