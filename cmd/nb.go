package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-coursebook/pkg/notebook"
	"github.com/mattsolo1/grove-coursebook/pkg/service"
	"github.com/mattsolo1/grove-coursebook/pkg/session"
)

func NewNotebookCmd(svc **service.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "nb",
		Aliases: []string{"notebook"},
		Short:   "Show and run notebooks",
	}
	cmd.AddCommand(newNotebookShowCmd(svc))
	cmd.AddCommand(newNotebookRunCmd(svc))
	return cmd
}

func newNotebookShowCmd(svc **service.Service) *cobra.Command {
	var (
		showExecuted bool
		showJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Print a notebook",
		Long: `Print the cells and outputs of a notebook.

Examples:
  cb nb show Data/1.LCG/hist.ipynb             # As stored in the course
  cb nb show Data/1.LCG/hist.ipynb --executed  # Last executed copy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			doc, err := s.Notebook(context.Background(), args[0], showExecuted)
			if err != nil {
				return err
			}
			return writeNotebook(cmd, doc, showJSON)
		},
	}

	cmd.Flags().BoolVar(&showExecuted, "executed", false, "Show the last executed copy")
	cmd.Flags().BoolVar(&showJSON, "json", false, "Print the notebook JSON")

	return cmd
}

func newNotebookRunCmd(svc **service.Service) *cobra.Command {
	var (
		runEdits  []string
		runSave   string
		runExport bool
		runJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "run <path>",
		Short: "Execute a notebook on the backend",
		Long: `Execute a notebook and print the result. With --edit, cell sources
are replaced from files first and the edited notebook is sent instead of
the stored one.

Examples:
  cb nb run Data/1.LCG/hist.ipynb
  cb nb run Data/1.LCG/hist.ipynb --edit 2=cell2.py --export
  cb nb run Data/2.GBM/sim.ipynb --save /tmp/sim_out.ipynb`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s := *svc

			sess, err := s.OpenNotebook(ctx, args[0])
			if err != nil {
				return err
			}
			if err := applyEdits(sess, runEdits); err != nil {
				return err
			}

			runErr := sess.Run(ctx)
			if runErr != nil && !session.DocumentApplied(runErr) {
				return runErr
			}

			doc := sess.Displayed()
			if err := writeNotebook(cmd, doc, runJSON); err != nil {
				return err
			}

			target := runSave
			if target == "" && runExport {
				target = sess.ExportName()
			}
			if target != "" {
				data, err := doc.Encode()
				if err != nil {
					return err
				}
				if err := os.WriteFile(target, data, 0644); err != nil {
					return fmt.Errorf("save notebook: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s\n", target)
			}
			return runErr
		},
	}

	cmd.Flags().StringArrayVar(&runEdits, "edit", nil, "Replace a cell source: <index>=<file> (repeatable)")
	cmd.Flags().StringVar(&runSave, "save", "", "Write the resulting notebook to this file")
	cmd.Flags().BoolVar(&runExport, "export", false, "Write the result as <name>_current.ipynb or <name>_edited.ipynb")
	cmd.Flags().BoolVar(&runJSON, "json", false, "Print the notebook JSON")

	return cmd
}

// applyEdits switches the session to editing mode and applies each
// "<index>=<file>" edit to the draft.
func applyEdits(sess *session.Session, edits []string) error {
	if len(edits) == 0 {
		return nil
	}
	if err := sess.SetEditing(true); err != nil {
		return err
	}
	for _, e := range edits {
		idx, file, ok := strings.Cut(e, "=")
		if !ok {
			return fmt.Errorf("invalid --edit %q: want <index>=<file>", e)
		}
		i, err := strconv.Atoi(idx)
		if err != nil {
			return fmt.Errorf("invalid --edit %q: %w", e, err)
		}
		src, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read edit source: %w", err)
		}
		if err := sess.EditCellSource(i, string(src)); err != nil {
			return err
		}
	}
	return nil
}

func writeNotebook(cmd *cobra.Command, doc *notebook.Document, asJSON bool) error {
	if asJSON {
		data, err := doc.Encode()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	return notebook.WriteText(cmd.OutOrStdout(), doc)
}
