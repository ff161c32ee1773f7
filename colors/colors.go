package colors

import (
	"github.com/fatih/color"
)

// Each pipeline role logs in its own color so interleaved output stays readable.
var (
	Producer = color.New(color.FgBlue).SprintFunc()
	Consumer = color.New(color.FgYellow).SprintFunc()
	Queue    = color.New(color.FgMagenta).SprintFunc()
	Error    = color.New(color.FgRed).SprintFunc()
	Done     = color.New(color.FgGreen).SprintFunc()
	Info     = color.New(color.FgCyan).SprintFunc()
)

// Disable turns off coloring for every role. NO_COLOR is honored by color itself.
func Disable() {
	color.NoColor = true
}
