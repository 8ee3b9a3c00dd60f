// Package pp is the shared §4.6 pretty printer used by cmd/peaks and
// cmd/memtrace: a TTY-colored dump of the linear heap and of the
// free-block index, falling back to plain text when stdout isn't a
// terminal, in the manner of direktiv-vorteil's pkg/elog CLI formatter.
package pp

import (
	"fmt"
	"io"
	"sort"

	"github.com/cznic/sortutil"
	"github.com/fatih/color"

	"github.com/cznic/memar"
)

// Printer formats Arena introspection data. The zero value uses plain text;
// call Detect or set Color explicitly to enable ANSI output.
type Printer struct {
	Color   bool // emit ANSI color codes
	Verbose bool // include raw addresses, not just offsets
}

// Detect mirrors elog.CLI's DisableColors/DisableTTY fields: color defaults
// on only when fatih/color's own TTY detection (run once at package init
// against os.Stdout) left it enabled.
func Detect(w io.Writer) *Printer {
	return &Printer{Color: !color.NoColor}
}

var (
	faintColor  = color.New(color.Faint)
	greenColor  = color.New(color.FgGreen)
	redColor    = color.New(color.FgRed)
	cyanColor   = color.New(color.FgCyan)
	yellowColor = color.New(color.FgYellow)
)

func (p *Printer) paint(c *color.Color, format string, args ...interface{}) string {
	s := fmt.Sprintf(format, args...)
	if !p.Color {
		return s
	}
	return c.SprintFunc()(s)
}

// DumpHeap writes one line per block of a.Blocks(), in ascending address
// order (the order Blocks already returns them in), allocated blocks in
// green and free blocks in red, mirroring elog.Format's level-to-color
// switch.
func (p *Printer) DumpHeap(w io.Writer, a *memar.Arena) {
	blocks := a.Blocks()
	fmt.Fprintf(w, "%s: %d blocks\n", p.paint(cyanColor, "heap"), len(blocks))
	for _, b := range blocks {
		var line string
		if b.Alloc {
			line = fmt.Sprintf("  %#08x  used  size=%-8d left_alloc=%v", b.Off, b.Size, b.LeftAlloc)
			if p.Verbose {
				line += fmt.Sprintf(" addr=%#08x", b.Addr)
			}
			fmt.Fprintln(w, p.paint(greenColor, "%s", line))
			continue
		}

		colorName := "black"
		if b.Color == memar.Red {
			colorName = "red"
		}
		line = fmt.Sprintf("  %#08x  free  size=%-8d left_alloc=%v color=%-5s indexed=%v",
			b.Off, b.Size, b.LeftAlloc, colorName, b.Indexed)
		fmt.Fprintln(w, p.paint(redColor, "%s", line))
	}
}

// DumpIndex writes the free-block index contents, sorted by offset via
// sortutil.Int64Slice for deterministic output regardless of a variant's
// internal traversal order (tree in-order for the RB-* variants, bucket/list
// order for SL).
func (p *Printer) DumpIndex(w io.Writer, a *memar.Arena) {
	order := a.IndexOrder()
	sorted := make(sortutil.Int64Slice, len(order))
	for i, off := range order {
		sorted[i] = int64(off)
	}
	sort.Sort(sorted)

	fmt.Fprintf(w, "%s (%s): %d entries\n", p.paint(cyanColor, "index"), a.Variant(), len(sorted))
	for _, off := range sorted {
		fmt.Fprintln(w, p.paint(yellowColor, "  %#08x", off))
	}
}

// DumpStats writes the one-line aggregate summary.
func (p *Printer) DumpStats(w io.Writer, a *memar.Arena) {
	s := memar.Summarize(a.Blocks())
	fmt.Fprintf(w, "%s total=%d used=%d(%d bytes) free=%d(%d bytes) capacity=%d\n",
		p.paint(faintColor, "stats"), s.TotalBlocks, s.UsedBlocks, s.UsedBytes,
		s.FreeBlocks, s.FreeBytes, a.Capacity())
}

// Dump writes the full §4.6 report: stats, heap, then index.
func (p *Printer) Dump(w io.Writer, a *memar.Arena) {
	p.DumpStats(w, a)
	p.DumpHeap(w, a)
	p.DumpIndex(w, a)
}
