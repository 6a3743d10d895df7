package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/backmassage/layerlapse/internal/config"
	"github.com/backmassage/layerlapse/internal/display"
	"github.com/backmassage/layerlapse/internal/layers"
	"github.com/backmassage/layerlapse/internal/planner"
	"github.com/backmassage/layerlapse/internal/term"
)

// printLayerTable writes the stable layers with the timestamp each slot
// will be extracted at, followed by the rejected layers.
func printLayerTable(w io.Writer, set layers.StableSet, rejected []layers.Rejection, policy config.TimestampPolicy) {
	slotW := len("Slot")
	zW := len("Z (mm)")
	nW := len("Samples")
	tsW := len("0:00.000")

	for _, l := range set {
		zW = max(zW, len(l.Key.String()))
		nW = max(nW, len(fmt.Sprint(len(l.Timestamps))))
		tsW = max(tsW, len(display.FormatClock(l.Last())))
	}
	slotW = max(slotW, len(fmt.Sprint(len(set))))

	header := fmt.Sprintf("  %*s  %*s  %*s  %*s  %*s  %*s",
		slotW, "Slot",
		zW, "Z (mm)",
		nW, "Samples",
		tsW, "First",
		tsW, "Last",
		tsW, "Extract",
	)
	separator := "  " + strings.Repeat("─", len(header)-2)

	fmt.Fprintln(w, header)
	fmt.Fprintln(w, separator)
	for i, l := range set {
		fmt.Fprintf(w, "  %*d  %*s  %*d  %*s  %*s  %s\n",
			slotW, i+1,
			zW, l.Key,
			nW, len(l.Timestamps),
			tsW, display.FormatClock(l.First()),
			tsW, display.FormatClock(l.Last()),
			colorPad(display.FormatClock(planner.Timestamp(l, policy)), tsW, term.Cyan),
		)
	}
	fmt.Fprintln(w)

	if len(rejected) == 0 {
		return
	}
	fmt.Fprintf(w, "  Rejected layers (%d):\n", len(rejected))
	for _, r := range rejected {
		fmt.Fprintf(w, "    %s %s\n", colorPad("[x]", 3, term.Yellow), r)
	}
	fmt.Fprintln(w)
}

// colorPad right-aligns s to width, then wraps it in color. Padding first
// keeps %*s alignment from counting escape bytes as visible width.
func colorPad(s string, width int, color string) string {
	return term.Paint(color, fmt.Sprintf("%*s", width, s))
}
