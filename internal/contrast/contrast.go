// Package contrast computes WCAG contrast ratios between two colours and
// proposes a compliant replacement foreground when a pair fails.
package contrast

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/raysh454/a11yscan/internal/model"
)

// WCAG thresholds.
const (
	AANormal  = 4.5
	AALarge   = 3.0
	AAANormal = 7.0
	AAALarge  = 4.5
)

// Result is the outcome of a contrast check.
type Result struct {
	Ratio      float64        `json:"ratio"`
	PassesAA   bool           `json:"passes_aa"`
	PassesAAA  bool           `json:"passes_aaa"`
	Foreground string         `json:"foreground"`
	Background string         `json:"background"`
	TextSize   model.TextSize `json:"text_size"`

	// Recommendation is empty when the pair passes AA.
	Recommendation      string `json:"recommendation,omitempty"`
	SuggestedForeground string `json:"suggested_foreground,omitempty"`
}

// Threshold returns the minimum ratio for level and size. Level A has no
// contrast requirement and yields 1.
func Threshold(level model.WCAGLevel, size model.TextSize) float64 {
	large := size == model.TextLarge
	switch level {
	case model.LevelAAA:
		if large {
			return AAALarge
		}
		return AAANormal
	case model.LevelAA:
		if large {
			return AALarge
		}
		return AANormal
	default:
		return 1
	}
}

// linearize converts one sRGB channel to linear light using the WCAG 2.x
// breakpoint.
func linearize(c float64) float64 {
	if c <= 0.03928 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

// RelativeLuminance of an opaque colour.
func RelativeLuminance(c colorful.Color) float64 {
	c = c.Clamped()
	return 0.2126*linearize(c.R) + 0.7152*linearize(c.G) + 0.0722*linearize(c.B)
}

// Ratio is symmetric and lies in [1, 21].
func Ratio(a, b colorful.Color) float64 {
	l1, l2 := RelativeLuminance(a), RelativeLuminance(b)
	if l2 > l1 {
		l1, l2 = l2, l1
	}
	return (l1 + 0.05) / (l2 + 0.05)
}

// Resolve flattens a translucent pair: the background is composited over
// white, then the foreground over that.
func Resolve(fg, bg Color) (colorful.Color, colorful.Color) {
	back := bg.Over(white)
	return fg.Over(back), back
}

// Check parses both colours and evaluates them for size.
func Check(foreground, background string, size model.TextSize) (*Result, error) {
	if size == "" {
		size = model.TextNormal
	}
	if size != model.TextNormal && size != model.TextLarge {
		return nil, model.NewError(model.InvalidInput, fmt.Errorf("unknown text size %q", size))
	}
	fg, err := ParseColor(foreground)
	if err != nil {
		return nil, model.NewError(model.InvalidInput, fmt.Errorf("foreground: %w", err))
	}
	bg, err := ParseColor(background)
	if err != nil {
		return nil, model.NewError(model.InvalidInput, fmt.Errorf("background: %w", err))
	}

	f, b := Resolve(fg, bg)
	return Evaluate(f, b, size), nil
}

// Evaluate builds a Result for an already opaque pair.
func Evaluate(fg, bg colorful.Color, size model.TextSize) *Result {
	ratio := Ratio(fg, bg)
	res := &Result{
		Ratio:      math.Round(ratio*100) / 100,
		PassesAA:   ratio >= Threshold(model.LevelAA, size),
		PassesAAA:  ratio >= Threshold(model.LevelAAA, size),
		Foreground: fg.Clamped().Hex(),
		Background: bg.Clamped().Hex(),
		TextSize:   size,
	}
	if !res.PassesAA {
		target := Threshold(model.LevelAA, size)
		suggested := Suggest(fg, bg, target)
		res.SuggestedForeground = suggested.Hex()
		res.Recommendation = fmt.Sprintf(
			"Contrast %.2f:1 is below the %.1f:1 minimum for %s text. Use %s on %s (%.2f:1) or adjust the background.",
			ratio, target, size, res.SuggestedForeground, res.Background, Ratio(suggested, bg))
	}
	return res
}

// Suggest moves fg toward black or white in Lab space, whichever direction
// can reach target against bg, and returns the first colour that meets it.
// When neither extreme reaches target the better extreme is returned.
func Suggest(fg, bg colorful.Color, target float64) colorful.Color {
	if Ratio(fg, bg) >= target {
		return fg
	}
	toward := black
	if Ratio(white, bg) > Ratio(black, bg) {
		toward = white
	}
	if Ratio(toward, bg) < target {
		return toward
	}
	for step := 1; step <= 100; step++ {
		c := fg.BlendLab(toward, float64(step)/100).Clamped()
		// Hex rounding can shave the ratio, so check the rounded colour.
		rounded, _ := colorful.Hex(c.Hex())
		if Ratio(rounded, bg) >= target {
			return rounded
		}
	}
	return toward
}
