package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/client"
	"github.com/raysh454/a11yscan/internal/fix"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/report"
)

// backend is what the run commands need from an orchestrator. It is served
// in-process by localBackend or over HTTP by client.Client.
type backend interface {
	StartScan(ctx context.Context, req model.ScanRequest) (string, error)
	GetRunStatus(ctx context.Context, id string) (*app.RunStatus, error)
	GetRunReport(ctx context.Context, id string) (*report.RunReport, error)
	ListRuns(ctx context.Context, limit int) ([]*model.ScanRun, error)
	ApplyFixes(ctx context.Context, id string, findingIDs []string) (*fix.Result, error)
	IgnoreFinding(ctx context.Context, id, findingID string) (*model.Finding, error)
	CancelScan(ctx context.Context, id string) error
	Wait(ctx context.Context, id string, progress func(scanned, discovered int)) (*app.RunStatus, error)
	Close() error
}

// localBackend runs the orchestrator inside this process.
type localBackend struct {
	*app.Orchestrator
	app *app.Application
}

// Wait follows the run's events until its result event.
func (l *localBackend) Wait(ctx context.Context, id string, progress func(scanned, discovered int)) (*app.RunStatus, error) {
	events, unsubscribe, err := l.Subscribe(context.Background(), id)
	if err != nil {
		return nil, err
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if _, err := l.Orchestrator.Wait(context.Background(), id); err != nil {
					return nil, err
				}
				return l.GetRunStatus(context.Background(), id)
			}
			if progress != nil && ev.Type == app.EventProgress {
				progress(ev.PagesScanned, ev.PagesDiscovered)
			}
		}
	}
}

func (l *localBackend) Close() error {
	return l.app.Shutdown(context.Background())
}

// newBackend connects to the configured server, or builds the application
// in-process when no server is set.
func newBackend(cmd *cobra.Command) (backend, error) {
	if appConfig.ServerURL != "" {
		c, err := client.New(appConfig.ServerURL, nil, commandLogger(cmd))
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	a, err := newApplication(cmd)
	if err != nil {
		return nil, err
	}
	return &localBackend{Orchestrator: a.Orch, app: a}, nil
}
