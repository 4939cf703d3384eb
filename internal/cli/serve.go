package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/scheduler"
	"github.com/raysh454/a11yscan/internal/server"
)

var (
	addrFlag    string
	targetsFlag string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the a11yscan API server",
	Long: `Serves the scan API, the websocket progress stream and the swagger UI.
With a targets file, recurring scans run on their cron schedules and the
file is reloaded whenever it changes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (host:port, default from config)")
	serveCmd.Flags().StringVar(&targetsFlag, "targets", "", "YAML file of recurring scan targets")
}

func runServe(cmd *cobra.Command, args []string) error {
	if addrFlag != "" {
		appConfig.ListenAddr = addrFlag
	}
	if targetsFlag != "" {
		appConfig.TargetsFile = targetsFlag
	}
	schedCfg, err := appConfig.SchedulerConfig()
	if err != nil {
		return err
	}

	a, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer closeApplication(a)

	srvCfg := appConfig.ServerConfig()
	srvCfg.Logger = a.Logger
	s, err := server.NewServer(srvCfg, a.Orch)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(schedCfg, a.Orch, a.Logger)
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := s.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "a11yscan API listening on %s (swagger at /swagger/index.html)\n", srvCfg.ListenAddr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("http shutdown", logging.Err(err))
	}
	return nil
}
