package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-coursebook/pkg/service"
)

func NewDataCmd(svc **service.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Inspect course data files",
	}
	cmd.AddCommand(newDataPreviewCmd(svc))
	return cmd
}

func newDataPreviewCmd(svc **service.Service) *cobra.Command {
	var (
		previewRows int
		previewJSON bool
	)

	cmd := &cobra.Command{
		Use:   "preview <path>",
		Short: "Preview a data file",
		Long: `Show the first rows of a CSV or spreadsheet, or the leading text of
any other text file.

Examples:
  cb data preview Data/2.GBM/prices.csv --max-rows 20
  cb data preview Data/3.Sampling/samples.dat`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			p, err := s.Preview(context.Background(), args[0], previewRows)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if previewJSON {
				data, err := json.MarshalIndent(p, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal preview to JSON: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if p.Table == nil {
				fmt.Fprint(out, p.Text)
				if p.Truncated {
					fmt.Fprintf(out, "\n… truncated at %d characters\n", service.MaxTextPreview)
				}
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for i, c := range p.Table.Columns {
				if i > 0 {
					fmt.Fprint(w, "\t")
				}
				fmt.Fprint(w, c)
			}
			fmt.Fprintln(w)
			for _, row := range p.Table.Rows {
				for i, c := range p.Table.Columns {
					if i > 0 {
						fmt.Fprint(w, "\t")
					}
					if v, ok := row[c]; ok && v != nil {
						fmt.Fprint(w, v)
					}
				}
				fmt.Fprintln(w)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if p.Truncated {
				fmt.Fprintf(out, "… showing first %d rows\n", len(p.Table.Rows))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&previewRows, "max-rows", 0, "Maximum rows for tabular files (default from config)")
	cmd.Flags().BoolVar(&previewJSON, "json", false, "Output as JSON")

	return cmd
}
