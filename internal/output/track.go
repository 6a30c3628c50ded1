package output

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/inodb/vibe-polya/internal/cleavage"
)

// TrackWriter writes genome browser tracks next to a report.
type TrackWriter struct {
	Prefix      string // path prefix, e.g. "out/sample"
	Name        string // track name
	Description string
	RGB         string // bedGraph colour, e.g. "0,0,255"
}

// Files returns the paths written by Write.
func (tw TrackWriter) Files() []string {
	return []string{
		tw.Prefix + ".+.bg",
		tw.Prefix + ".-.bg",
		tw.Prefix + ".HEXAMERS.bed",
		tw.Prefix + ".3UTR.bed",
	}
}

// Write writes the bedGraph tracks per strand, the hexamer BED track and
// the 3'UTR BED track.
func (tw TrackWriter) Write(t *cleavage.Tracks) error {
	files := tw.Files()
	outputs := []struct {
		path   string
		header string
		lines  []string
	}{
		{files[0], bedGraphHeader(tw.Name+".+", tw.Description, tw.RGB), t.Plus},
		{files[1], bedGraphHeader(tw.Name+".-", tw.Description, tw.RGB), t.Minus},
		{files[2], `track name="hexamer_track" description="Track containing all CPSF hexamer binding sites" visibility=2 itemRgb="On"`, t.Hexamers},
		{files[3], fmt.Sprintf(`track name="%s.3UTRs" description="3'UTR" visibility=full itemRgb="On"`, tw.Name), t.UTRs},
	}
	for _, o := range outputs {
		if err := writeLines(o.path, o.header, o.lines); err != nil {
			return err
		}
	}
	return nil
}

func bedGraphHeader(name, desc, rgb string) string {
	return fmt.Sprintf(`track type=bedGraph name="%s" description="%s" visibility=full color=%s`, name, desc, rgb)
}

func writeLines(path, header string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create track: %w", err)
	}
	w := bufio.NewWriter(f)
	w.WriteString(header + "\n")
	if len(lines) > 0 {
		w.WriteString(strings.Join(lines, "\n") + "\n")
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
