// Package colors holds the CLI palette.
//
// Colors are disabled automatically when stdout is not a terminal; Init
// overrides that from configuration.
package colors

import "github.com/fatih/color"

// Init forces colors on or off. A nil forceColor keeps the auto-detected
// setting.
func Init(forceColor *bool) {
	if forceColor != nil {
		color.NoColor = !*forceColor
	}
}

// Enabled returns true if colors are currently enabled.
func Enabled() bool {
	return !color.NoColor
}

var (
	File    = color.New(color.Bold, color.FgCyan).SprintFunc()
	Desc    = color.New(color.Bold, color.FgHiWhite).SprintFunc()
	Command = color.New(color.Faint, color.FgWhite).SprintFunc()
	Segment = color.New(color.FgHiMagenta).SprintFunc()
	Section = color.New(color.FgMagenta).SprintFunc()
	Addr    = color.New(color.FgHiBlue).SprintFunc()
	Symbol  = color.New(color.FgHiWhite).SprintFunc()
	Flags   = color.New(color.Faint).SprintFunc()
	Warn    = color.New(color.FgYellow).SprintFunc()
)
