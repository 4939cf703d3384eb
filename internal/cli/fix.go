package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var fixCmd = &cobra.Command{
	Use:   "fix <run-id> [finding-id...]",
	Short: "Apply automatic fixes to a completed run",
	Long: `Applies the automatic remediation of the given findings, or of every
open auto-fixable finding when none are named. Fixed findings keep the
patch that was applied to their markup.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFix,
}

var ignoreCmd = &cobra.Command{
	Use:   "ignore <run-id> <finding-id>",
	Short: "Mark a finding as ignored",
	Args:  cobra.ExactArgs(2),
	RunE:  runIgnore,
}

func runFix(cmd *cobra.Command, args []string) error {
	b, err := newBackend(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := b.ApplyFixes(cmd.Context(), args[0], args[1:])
	if err != nil {
		return err
	}
	if outputFlag == "json" {
		return writeJSON(cmd.OutOrStdout(), res)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Applied %d fixes to run %s\n", res.AppliedCount, res.RunID)
	for _, id := range res.Applied {
		fmt.Fprintf(w, "  %s %s\n", color.GreenString("fixed"), id)
	}
	for _, id := range res.AlreadyFixed {
		fmt.Fprintf(w, "  %s %s\n", color.CyanString("already fixed"), id)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  %s %s: %s\n", color.RedString("failed"), f.ID, f.Reason)
	}
	return nil
}

func runIgnore(cmd *cobra.Command, args []string) error {
	b, err := newBackend(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	f, err := b.IgnoreFinding(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	if outputFlag == "json" {
		return writeJSON(cmd.OutOrStdout(), f)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Finding %s (%s) is now %s\n", f.ID, f.RuleID, f.Status)
	return nil
}
