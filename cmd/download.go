package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-coursebook/pkg/service"
)

func NewDownloadCmd(svc **service.Service) *cobra.Command {
	var (
		downloadExecuted bool
		downloadOutput   string
	)

	cmd := &cobra.Command{
		Use:   "download <path>",
		Short: "Save a course file locally",
		Long: `Save a course file to disk. Use -o - to write to stdout.

Examples:
  cb download Data/1.LCG/lcg.py
  cb download Data/1.LCG/hist.ipynb --executed -o hist_run.ipynb`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			data, name, err := s.Download(context.Background(), args[0], downloadExecuted)
			if err != nil {
				return err
			}

			target := downloadOutput
			if target == "" {
				target = name
			}
			if target == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(target, data, 0644); err != nil {
				return fmt.Errorf("write %s: %w", target, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%d bytes)\n", target, len(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&downloadExecuted, "executed", false, "Download the last executed copy of a notebook")
	cmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "Output file (default: the file's name)")

	return cmd
}
