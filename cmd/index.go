package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-coursebook/pkg/service"
)

func NewIndexCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the content search index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			n, err := s.Reindex(context.Background())
			if err != nil {
				return err
			}
			mode := "full-text"
			if !s.Index.FullText() {
				mode = "substring"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d files (%s search)\n", n, mode)
			return nil
		},
	}
}
