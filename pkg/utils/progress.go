package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type ProgressCallback func(section string, current int, total int, description string)

// TerminalProgress returns a callback drawing PrintProgress bars when out is
// a terminal, and nil otherwise.
func TerminalProgress(out *os.File) ProgressCallback {
	if !isatty.IsTerminal(out.Fd()) && !isatty.IsCygwinTerminal(out.Fd()) {
		return nil
	}
	return func(section string, current, total int, description string) {
		PrintProgress(out, section, current, total, description)
	}
}

func PrintProgress(w io.Writer, section string, current int, total int, description string) {
	nbBlocks := 50

	if total <= 0 {
		total = 1
	}
	current = max(0, min(current, total))

	blocks := current * nbBlocks / total
	percentage := current * 100 / total

	fmt.Fprintf(w, "\r%s [%s%s] %d%% (%d/%d) | %s",
		section,
		strings.Repeat("=", blocks),
		strings.Repeat(" ", nbBlocks-blocks),
		percentage,
		current,
		total,
		description)
	if current == total {
		fmt.Fprintln(w)
	}
}
