package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-coursebook/internal/render"
	"github.com/mattsolo1/grove-coursebook/pkg/service"
)

func NewSearchCmd(svc **service.Service) *cobra.Command {
	var (
		searchJSON    bool
		searchContent bool
		searchChapter string
		searchExt     string
		searchLimit   int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the course",
		Long: `Filter the course tree by file, folder and chapter names, or search
file contents with --content.

Examples:
  cb search hist                      # Filtered tree
  cb search "box muller" --json       # Filtered tree and expand keys as JSON
  cb search numpy --content           # Files whose text mentions numpy
  cb search np --content --ext ipynb  # Only notebooks`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s := *svc
			query := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			if searchContent {
				var opts []service.SearchOption
				if searchChapter != "" {
					opts = append(opts, service.InChapter(searchChapter))
				}
				if searchExt != "" {
					opts = append(opts, service.WithExt(searchExt))
				}
				opts = append(opts, service.WithLimit(searchLimit))

				hits, err := s.SearchContent(ctx, query, opts...)
				if err != nil {
					return err
				}
				if searchJSON {
					data, err := json.MarshalIndent(hits, "", "  ")
					if err != nil {
						return fmt.Errorf("failed to marshal results to JSON: %w", err)
					}
					fmt.Fprintln(out, string(data))
					return nil
				}
				if len(hits) == 0 {
					fmt.Fprintln(out, "No results found (run 'cb index' to refresh the content index)")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "PATH\tCHAPTER\tSNIPPET")
				for _, h := range hits {
					fmt.Fprintf(w, "%s\t%s\t%s\n", h.Path, h.Chapter, h.Snippet)
				}
				return w.Flush()
			}

			ctrl := s.NewController()
			res, err := ctrl.SetQuery(ctx, query)
			if err != nil {
				return err
			}

			if searchJSON {
				data, err := json.MarshalIndent(map[string]interface{}{
					"query":       query,
					"chapters":    res.Chapters,
					"expand_keys": res.ExpandKeys,
				}, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal results to JSON: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(res.Chapters) == 0 {
				fmt.Fprintln(out, "No results found")
				return nil
			}
			return render.Tree(out, res.Chapters, render.TreeOptions{Expanded: ctrl.IsOpen})
		},
	}

	cmd.Flags().BoolVar(&searchJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&searchContent, "content", false, "Search file contents instead of names")
	cmd.Flags().StringVar(&searchChapter, "chapter", "", "Limit content search to a chapter ID (e.g. Data/1.LCG)")
	cmd.Flags().StringVar(&searchExt, "ext", "", "Limit content search to an extension")
	cmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum results")

	return cmd
}
