package core

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/josephlewis42/msh/core/config"
	"github.com/mattn/go-isatty"
)

var (
	ColorBoldGreen = newColor(color.FgGreen, color.Bold)
	ColorBoldRed   = newColor(color.FgRed, color.Bold)
	ColorBoldBlue  = newColor(color.FgBlue, color.Bold)
)

// newColor creates a color that's always rendered, ColorPrinter decides
// whether it's used.
func newColor(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	c.EnableColor()
	return c
}

// ColorPrinter formats text in color if the configuration allows it.
type ColorPrinter struct {
	enabled bool
}

// NewColorPrinter creates a printer for output written to out.
func NewColorPrinter(cfg *config.Configuration, out *os.File) *ColorPrinter {
	isTerminal := out != nil && isatty.IsTerminal(out.Fd())
	return &ColorPrinter{enabled: cfg.ShouldColor(isTerminal)}
}

func (c *ColorPrinter) ShouldColor() bool {
	return c.enabled
}

func (c *ColorPrinter) Sprintf(color *color.Color, format string, a ...interface{}) string {
	if c.ShouldColor() {
		return color.Sprintf(format, a...)
	}
	return fmt.Sprintf(format, a...)
}
