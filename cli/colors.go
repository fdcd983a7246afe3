package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

func SupportsColor(noColorHint bool) {
	fd := os.Stderr.Fd()
	color.NoColor = noColorHint || (!isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd))
}

var errorColor = color.New(color.FgRed, color.Bold)

// Errorf prints a highlighted message line to w.
func Errorf(w io.Writer, format string, args ...any) {
	errorColor.Fprintf(w, format, args...)
	fmt.Fprintln(w)
}
