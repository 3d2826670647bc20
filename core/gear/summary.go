package gear

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/cerebralab/siena-gear/internal/digest"
)

// Color helpers for the deliverable table.
var (
	cBold  = color.New(color.Bold).SprintFunc()
	cGreen = color.New(color.FgGreen).SprintFunc()
	cCyan  = color.New(color.FgCyan).SprintFunc()
	cDim   = color.New(color.Faint).SprintFunc()
)

// isTerminal is swappable so tests can force the table on or off.
var isTerminal = func(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// WriteSummary renders the deliverable table when w is an interactive
// terminal. Pipeline runs log deliverables structurally instead, so a
// non-terminal writer gets nothing.
func WriteSummary(w io.Writer, deliverables []Deliverable) {
	f, ok := w.(*os.File)
	if !ok || !isTerminal(f) || len(deliverables) == 0 {
		return
	}

	nameWidth := len("NAME")
	for _, d := range deliverables {
		if len(d.Name) > nameWidth {
			nameWidth = len(d.Name)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", cBold("▸ Deliverables"))
	header := fmt.Sprintf("    %-*s  %8s  %-12s  %-12s", nameWidth, "NAME", "SIZE", "SHA256", "BLAKE3")
	fmt.Fprintf(w, "%s\n", cDim(header))
	for _, d := range deliverables {
		// Pad before coloring: ANSI escapes are invisible but count
		// toward %-*s width.
		name := fmt.Sprintf("%-*s", nameWidth, d.Name)
		size := fmt.Sprintf("%8s", formatSize(d.Digest.Size))
		fmt.Fprintf(w, "    %s  %s  %-12s  %-12s\n",
			cGreen(name), size, cCyan(digest.Short(d.Digest.SHA256)), cDim(digest.Short(d.Digest.BLAKE3)))
	}
	fmt.Fprintln(w)
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
