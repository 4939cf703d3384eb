package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/raysh454/a11yscan/internal/contrast"
	"github.com/raysh454/a11yscan/internal/model"
)

var largeTextFlag bool

var contrastCmd = &cobra.Command{
	Use:   "contrast <foreground> <background>",
	Short: "Check the contrast ratio of two colours",
	Long: `Computes the WCAG contrast ratio of a colour pair and whether it passes
AA and AAA. Colours may be hex, rgb(), rgba(), hsl() or CSS names.`,
	Example: `  a11yscan contrast "#777" white
  a11yscan contrast "rgb(0,0,0)" "#ffcc00" --large`,
	Args: cobra.ExactArgs(2),
	RunE: runContrast,
}

func init() {
	contrastCmd.Flags().BoolVar(&largeTextFlag, "large", false, "evaluate as large text (18pt, or 14pt bold)")
}

func runContrast(cmd *cobra.Command, args []string) error {
	size := model.TextNormal
	if largeTextFlag {
		size = model.TextLarge
	}
	res, err := contrast.Check(args[0], args[1], size)
	if err != nil {
		return err
	}
	if outputFlag == "json" {
		return writeJSON(cmd.OutOrStdout(), res)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s on %s (%s text)\n", res.Foreground, res.Background, res.TextSize)
	fmt.Fprintf(w, "  Ratio: %.2f:1\n", res.Ratio)
	fmt.Fprintf(w, "  AA:    %s\n", passFail(res.PassesAA))
	fmt.Fprintf(w, "  AAA:   %s\n", passFail(res.PassesAAA))
	if res.Recommendation != "" {
		fmt.Fprintf(w, "  %s\n", res.Recommendation)
	}
	return nil
}

func passFail(ok bool) string {
	if ok {
		return color.GreenString("pass")
	}
	return color.RedString("fail")
}
