package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-coursebook/pkg/api"
	"github.com/mattsolo1/grove-coursebook/pkg/service"
)

func NewServeCmd(svc **service.Service, logger **logrus.Logger, defaultListen func() string) *cobra.Command {
	var (
		serveListen  string
		serveReindex bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the course over HTTP",
		Long: `Serve the course tree, search and files as a JSON API, with course
assets under /content.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			log := (*logger).WithField("component", "serve")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if serveReindex {
				n, err := s.Reindex(ctx)
				if err != nil {
					return err
				}
				log.WithField("files", n).Info("Content index rebuilt")
			}

			addr := serveListen
			if addr == "" {
				addr = defaultListen()
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewRouter(api.NewHandlers(s, logrus.NewEntry(*logger))),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()
			fmt.Fprintf(cmd.ErrOrStderr(), "Serving %s on http://%s\n", s.Course.Title(), addr)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			log.Info("Shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&serveReindex, "reindex", false, "Rebuild the content index before serving")

	return cmd
}
