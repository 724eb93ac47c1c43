package internal

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/starford/inkwell/internal/assets"
	"github.com/starford/inkwell/internal/posts"
)

// writeReport prints a post table, skipped files and dangling images.
func writeReport(out io.Writer, ix *posts.Index, aix *assets.Index) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tTITLE\tDATE\tDRAFT\tIMAGES")
	for _, e := range ix.Entries {
		date := e.Date
		if date == "" {
			date = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\n", e.Path, e.Title, date, e.Draft, len(e.References))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d post(s), %d image(s)\n", len(ix.Entries), len(aix.Entries))
	for _, d := range ix.Diagnostics {
		fmt.Fprintf(out, "skipped: %s\n", d.Error())
	}
	for _, d := range aix.Diagnostics {
		fmt.Fprintf(out, "skipped: %s\n", d.Error())
	}
	dangling := aix.Dangling()
	if len(dangling) == 0 {
		return nil
	}
	fmt.Fprintf(out, "\nunreferenced images (%d):\n", len(dangling))
	for _, a := range dangling {
		fmt.Fprintf(out, "  %s  %d bytes\n", a.Path, a.Size)
	}
	return nil
}
