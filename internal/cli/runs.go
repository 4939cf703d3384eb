package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/report"
)

var limitFlag int

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show the status and progress of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var reportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Print the remediation report of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&limitFlag, "limit", "n", 20, "max runs to list (0 for all)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	b, err := newBackend(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	st, err := b.GetRunStatus(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if outputFlag == "json" {
		return writeJSON(cmd.OutOrStdout(), st)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run:      %s\n", st.RunID)
	fmt.Fprintf(w, "URL:      %s\n", st.URL)
	fmt.Fprintf(w, "Status:   %s\n", colorStatus(st.Status))
	fmt.Fprintf(w, "Progress: %.0f%% (%d/%d pages)\n", st.Progress*100, st.PagesScanned, st.PagesDiscovered)
	if st.Score != nil {
		fmt.Fprintf(w, "Score:    %.0f\n", *st.Score)
	}
	if st.Error != nil {
		fmt.Fprintf(w, "Error:    %s: %s\n", st.Error.Kind, st.Error.Message)
	}
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	formatter, err := report.GetFormatter(outputFlag)
	if err != nil {
		return err
	}

	b, err := newBackend(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	rep, err := b.GetRunReport(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return formatter.Format(cmd.OutOrStdout(), rep)
}

func runRuns(cmd *cobra.Command, args []string) error {
	b, err := newBackend(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	runs, err := b.ListRuns(cmd.Context(), limitFlag)
	if err != nil {
		return err
	}
	if outputFlag == "json" {
		if runs == nil {
			runs = []*model.ScanRun{}
		}
		return writeJSON(cmd.OutOrStdout(), runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Run", "URL", "Status", "Score", "Created"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator("│")
	for _, r := range runs {
		score := "-"
		if r.ComplianceScore != nil {
			score = fmt.Sprintf("%.0f", *r.ComplianceScore)
		}
		table.Append([]string{r.ID, r.Request.URL, colorStatus(r.Status), score, r.CreatedAt.Local().Format(time.DateTime)})
	}
	table.Render()
	return nil
}

func colorStatus(s model.ScanStatus) string {
	switch s {
	case model.StatusCompleted:
		return color.GreenString(string(s))
	case model.StatusFailed:
		return color.RedString(string(s))
	case model.StatusInProgress:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}
