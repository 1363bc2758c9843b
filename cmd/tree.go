package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-coursebook/internal/render"
	"github.com/mattsolo1/grove-coursebook/pkg/service"
)

func NewTreeCmd(svc **service.Service) *cobra.Command {
	var (
		treeJSON   bool
		treeLabels bool
	)

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the course tree",
		Long: `Print every chapter of the course with its folders and files.

Examples:
  cb tree              # Plain tree
  cb tree --labels     # Display labels ("1.LCG" -> "1. LCG")
  cb tree --json       # Chapters as JSON`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s := *svc

			chapters, err := s.Chapters(ctx)
			if err != nil {
				return fmt.Errorf("load course: %w", err)
			}

			if treeJSON {
				data, err := json.MarshalIndent(chapters, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal chapters to JSON: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			if len(chapters) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No chapters found in %s\n", s.Course.Root)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Course.Title())
			return render.Tree(cmd.OutOrStdout(), chapters, render.TreeOptions{Labels: treeLabels})
		},
	}

	cmd.Flags().BoolVar(&treeJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&treeLabels, "labels", false, "Print display labels instead of file names")

	return cmd
}
