package contrast

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// ErrInvalidColorFormat is returned for colour strings that cannot be parsed.
var ErrInvalidColorFormat = errors.New("invalid color format")

// Color is an sRGB colour with straight alpha.
type Color struct {
	colorful.Color
	A float64
}

// Opaque reports whether the colour has full alpha.
func (c Color) Opaque() bool { return c.A >= 1 }

// Hex renders the colour as #rrggbb, dropping alpha.
func (c Color) Hex() string { return c.Clamped().Hex() }

// Over composites c onto an opaque backdrop.
func (c Color) Over(backdrop colorful.Color) colorful.Color {
	if c.A >= 1 {
		return c.Color
	}
	return colorful.Color{
		R: c.R*c.A + backdrop.R*(1-c.A),
		G: c.G*c.A + backdrop.G*(1-c.A),
		B: c.B*c.A + backdrop.B*(1-c.A),
	}
}

var (
	black = colorful.Color{R: 0, G: 0, B: 0}
	white = colorful.Color{R: 1, G: 1, B: 1}
)

// ParseColor accepts hex (#rgb, #rgba, #rrggbb, #rrggbbaa), rgb()/rgba(),
// hsl()/hsla(), CSS named colours and "transparent".
func ParseColor(s string) (Color, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	if in == "" {
		return Color{}, fmt.Errorf("%w: empty", ErrInvalidColorFormat)
	}

	switch {
	case strings.HasPrefix(in, "#"):
		return parseHex(in)
	case strings.HasPrefix(in, "rgb"):
		return parseFunc(in, "rgb")
	case strings.HasPrefix(in, "hsl"):
		return parseFunc(in, "hsl")
	case in == "transparent":
		return Color{Color: black, A: 0}, nil
	}

	if named, ok := colornames.Map[in]; ok {
		c, _ := colorful.MakeColor(named)
		return Color{Color: c, A: 1}, nil
	}
	return Color{}, fmt.Errorf("%w: %q", ErrInvalidColorFormat, s)
}

func parseHex(in string) (Color, error) {
	digits := in[1:]
	for _, r := range digits {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return Color{}, fmt.Errorf("%w: %q", ErrInvalidColorFormat, in)
		}
	}

	alpha := 1.0
	switch len(digits) {
	case 3, 6:
	case 4:
		a, _ := strconv.ParseUint(strings.Repeat(digits[3:], 2), 16, 8)
		alpha = float64(a) / 255
		digits = digits[:3]
	case 8:
		a, _ := strconv.ParseUint(digits[6:], 16, 8)
		alpha = float64(a) / 255
		digits = digits[:6]
	default:
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColorFormat, in)
	}

	c, err := colorful.Hex("#" + digits)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColorFormat, in)
	}
	return Color{Color: c, A: alpha}, nil
}

// parseFunc handles rgb(), rgba(), hsl() and hsla() in both the comma and
// the space/slash syntaxes.
func parseFunc(in, kind string) (Color, error) {
	open := strings.IndexByte(in, '(')
	if open < 0 || !strings.HasSuffix(in, ")") {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColorFormat, in)
	}
	name := in[:open]
	if name != kind && name != kind+"a" {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColorFormat, in)
	}
	body := in[open+1 : len(in)-1]
	body = strings.ReplaceAll(body, "/", " ")
	body = strings.ReplaceAll(body, ",", " ")
	parts := strings.Fields(body)
	if len(parts) != 3 && len(parts) != 4 {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColorFormat, in)
	}

	alpha := 1.0
	if len(parts) == 4 {
		a, err := parseComponent(parts[3], 1)
		if err != nil {
			return Color{}, fmt.Errorf("%w: %q", ErrInvalidColorFormat, in)
		}
		alpha = clamp01(a)
	}

	if kind == "rgb" {
		var ch [3]float64
		for i := 0; i < 3; i++ {
			v, err := parseComponent(parts[i], 255)
			if err != nil {
				return Color{}, fmt.Errorf("%w: %q", ErrInvalidColorFormat, in)
			}
			ch[i] = clamp01(v / 255)
		}
		return Color{Color: colorful.Color{R: ch[0], G: ch[1], B: ch[2]}, A: alpha}, nil
	}

	h, err := parseNumber(strings.TrimSuffix(parts[0], "deg"))
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColorFormat, in)
	}
	sat, err1 := parsePercent(parts[1])
	light, err2 := parsePercent(parts[2])
	if err1 != nil || err2 != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColorFormat, in)
	}
	h = math.Mod(math.Mod(h, 360)+360, 360)
	return Color{Color: colorful.Hsl(h, sat, light).Clamped(), A: alpha}, nil
}

// parseComponent reads a number or a percentage of full.
func parseComponent(s string, full float64) (float64, error) {
	if strings.HasSuffix(s, "%") {
		p, err := parseNumber(strings.TrimSuffix(s, "%"))
		if err != nil {
			return 0, err
		}
		return p / 100 * full, nil
	}
	return parseNumber(s)
}

func parsePercent(s string) (float64, error) {
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("expected percentage, got %q", s)
	}
	p, err := parseNumber(strings.TrimSuffix(s, "%"))
	if err != nil {
		return 0, err
	}
	return clamp01(p / 100), nil
}

// parseNumber reads a CSS number. NaN and infinities are rejected so they
// never reach the luminance math.
func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
