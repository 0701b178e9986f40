package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/resortledger/internal/api"
)

func newServeCommand() *cobra.Command {
	var maxBody int64

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the accounting HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if st, ok := a.store.(interface{ Migrate(context.Context) error }); ok {
				if err := st.Migrate(ctx); err != nil {
					return err
				}
			}

			router := api.NewRouter(api.Dependencies{
				Logger:       a.logger,
				Store:        a.store,
				Posting:      a.posting,
				Reporter:     a.reporter,
				Auditor:      a.journal,
				MaxBodyBytes: maxBody,
			})

			srv := &http.Server{
				Addr:              a.cfg.ListenAddr,
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				<-sigCh
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			a.logger.Info("accounting api listening", "addr", a.cfg.ListenAddr, "env", a.cfg.Environment)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&maxBody, "max-body-bytes", 1<<20, "maximum request body size")

	return cmd
}
