package indexer

import (
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteSummary prints the end-of-run report. location names where the
// indices were written, as returned by storage.Location.
func WriteSummary(w io.Writer, stats *Statistics, location string) error {
	p := message.NewPrinter(language.English)
	if _, err := fmt.Fprintf(w, "Done. %d files indexed, %d converted, %d unchanged.\n",
		stats.FilesDiscovered, stats.FilesConverted, stats.FilesUnchanged); err != nil {
		return err
	}
	if n := stats.Failed(); n > 0 {
		if _, err := fmt.Fprintf(w, "%d file operations failed (see log).\n", n); err != nil {
			return err
		}
	}
	if _, err := p.Fprintf(w, "Total tokens across converted files: %d\n", stats.TotalTokens); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Indices written to %s\n", location)
	return err
}
