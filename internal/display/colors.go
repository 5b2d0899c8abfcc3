// Package display renders run and retention reports for terminals.
package display

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Color names a terminal foreground color
type Color int

const (
	ColorReset Color = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorCyan
	ColorWhite
	ColorBrightRed
	ColorBrightGreen
	ColorBrightYellow
	ColorBrightBlue
)

// ColorTheme maps report roles to colors
type ColorTheme struct {
	Header  Color
	Success Color
	Warning Color
	Error   Color
	Muted   Color
}

// ColorSystem applies a theme when the output supports it
type ColorSystem struct {
	theme   ColorTheme
	enabled bool
	colors  map[Color]*color.Color
}

// NewColorSystem detects color support for w. Writers that are not a
// terminal never receive escape codes.
func NewColorSystem(w io.Writer, theme ColorTheme) *ColorSystem {
	cs := &ColorSystem{theme: theme, enabled: detectColorSupport(w)}
	cs.colors = map[Color]*color.Color{
		ColorRed:          color.New(color.FgRed),
		ColorGreen:        color.New(color.FgGreen),
		ColorYellow:       color.New(color.FgYellow),
		ColorBlue:         color.New(color.FgBlue),
		ColorCyan:         color.New(color.FgCyan),
		ColorWhite:        color.New(color.FgWhite),
		ColorBrightRed:    color.New(color.FgHiRed),
		ColorBrightGreen:  color.New(color.FgHiGreen),
		ColorBrightYellow: color.New(color.FgHiYellow),
		ColorBrightBlue:   color.New(color.FgHiBlue),
	}
	for _, c := range cs.colors {
		if cs.enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return cs
}

// NewPlainColorSystem never colors
func NewPlainColorSystem() *ColorSystem {
	return &ColorSystem{theme: PlainTheme()}
}

func detectColorSupport(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	return termenv.NewOutput(f).ColorProfile() != termenv.Ascii
}

// Enabled reports whether escape codes are emitted
func (cs *ColorSystem) Enabled() bool {
	return cs.enabled
}

// Theme returns the active theme
func (cs *ColorSystem) Theme() ColorTheme {
	return cs.theme
}

// Colorize wraps text in clr when colors are enabled
func (cs *ColorSystem) Colorize(text string, clr Color) string {
	if !cs.enabled || clr == ColorReset {
		return text
	}
	if c, ok := cs.colors[clr]; ok {
		return c.Sprint(text)
	}
	return text
}

// Sprintf formats then colorizes
func (cs *ColorSystem) Sprintf(clr Color, format string, args ...interface{}) string {
	return cs.Colorize(fmt.Sprintf(format, args...), clr)
}

// DarkTheme suits dark terminal backgrounds
func DarkTheme() ColorTheme {
	return ColorTheme{
		Header:  ColorBrightBlue,
		Success: ColorBrightGreen,
		Warning: ColorBrightYellow,
		Error:   ColorBrightRed,
		Muted:   ColorWhite,
	}
}

// LightTheme suits light terminal backgrounds
func LightTheme() ColorTheme {
	return ColorTheme{
		Header:  ColorBlue,
		Success: ColorGreen,
		Warning: ColorYellow,
		Error:   ColorRed,
		Muted:   ColorCyan,
	}
}

// PlainTheme uses no colors
func PlainTheme() ColorTheme {
	return ColorTheme{}
}

// ThemeByName returns the named theme, defaulting to dark
func ThemeByName(name string) ColorTheme {
	switch name {
	case "light":
		return LightTheme()
	case "plain", "none":
		return PlainTheme()
	default:
		return DarkTheme()
	}
}
