package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/report"
)

var (
	levelFlag      string
	depthFlag      int
	maxPagesFlag   int
	subdomainsFlag bool
	fixFlag        bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Crawl and audit a site",
	Long: `Crawls the site from the given URL, audits every page and prints the
remediation report. Interrupting the command cancels the scan; the partial
run is still recorded.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&levelFlag, "level", "l", "", "WCAG level: A, AA or AAA (default from config)")
	scanCmd.Flags().IntVarP(&depthFlag, "depth", "d", 0, "max link depth from the seed page")
	scanCmd.Flags().IntVarP(&maxPagesFlag, "max-pages", "m", 0, "max pages to visit, seed included")
	scanCmd.Flags().BoolVar(&subdomainsFlag, "subdomains", false, "also crawl subdomains of the seed's domain")
	scanCmd.Flags().BoolVar(&fixFlag, "fix", false, "apply every automatic fix once the scan completes")
}

func runScan(cmd *cobra.Command, args []string) error {
	formatter, err := report.GetFormatter(outputFlag)
	if err != nil {
		return err
	}

	b, err := newBackend(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	req := appConfig.ScanDefaults(model.ScanRequest{
		URL:               args[0],
		WCAGLevel:         model.WCAGLevel(strings.ToUpper(levelFlag)),
		MaxDepth:          depthFlag,
		MaxPages:          maxPagesFlag,
		IncludeSubdomains: subdomainsFlag,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, err := b.StartScan(ctx, req)
	if err != nil {
		return err
	}
	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "Scanning %s (run %s)\n", req.URL, id)

	progress := func(scanned, discovered int) {
		fmt.Fprintf(stderr, "\r  %d/%d pages", scanned, discovered)
	}
	st, err := b.Wait(ctx, id, progress)
	if err != nil && ctx.Err() != nil {
		fmt.Fprintln(stderr, "\nInterrupted, cancelling scan...")
		if cerr := b.CancelScan(context.Background(), id); cerr != nil && !errors.Is(cerr, app.ErrRunFinished) {
			return cerr
		}
		st, err = b.Wait(context.Background(), id, nil)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(stderr)

	if fixFlag && st.Status == model.StatusCompleted {
		res, err := b.ApplyFixes(context.Background(), id, nil)
		if err != nil {
			return fmt.Errorf("applying fixes: %w", err)
		}
		fmt.Fprintf(stderr, "Applied %d automatic fixes\n", res.AppliedCount)
	}

	rep, err := b.GetRunReport(context.Background(), id)
	if err != nil {
		return err
	}
	if err := formatter.Format(cmd.OutOrStdout(), rep); err != nil {
		return err
	}
	if st.Status == model.StatusFailed && st.Error != nil {
		return fmt.Errorf("scan %s failed: %s: %s", id, st.Error.Kind, st.Error.Message)
	}
	return nil
}
