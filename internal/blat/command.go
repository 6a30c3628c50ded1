package blat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/biogo/external"
	"go.uber.org/zap"
)

// ErrMissingRequired is returned when a command is built without its input
// or output files.
var ErrMissingRequired = errors.New("blat: missing required argument")

// BLAT defines parameters for the blat aligner.
type BLAT struct {
	// Usage: blat database query [-options] output.psl
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}blat{{end}}"` // blat

	Database string `buildarg:"{{.}}"` // target FASTA
	Query    string `buildarg:"{{.}}"` // query FASTA

	MinIdentity int  `buildarg:"{{if .}}-minIdentity={{.}}{{end}}"` // -minIdentity: minimum sequence identity in percent
	MinScore    int  `buildarg:"{{if .}}-minScore={{.}}{{end}}"`    // -minScore: minimum score
	StepSize    int  `buildarg:"{{if .}}-stepSize={{.}}{{end}}"`    // -stepSize: spacing between tiles
	TileSize    int  `buildarg:"{{if .}}-tileSize={{.}}{{end}}"`    // -tileSize: size of match that triggers an alignment
	FastMap     bool `buildarg:"{{if .}}-fastMap{{end}}"`           // -fastMap: run for fast DNA/DNA remapping
	NoHead      bool `buildarg:"{{if .}}-noHead{{end}}"`            // -noHead: suppress PSL header

	Output string `buildarg:"{{.}}"` // output.psl
}

// BuildCommand returns an exec.Cmd built from the parameters in b.
func (b BLAT) BuildCommand() (*exec.Cmd, error) {
	cl, err := b.commandLine()
	if err != nil {
		return nil, err
	}
	return exec.Command(cl[0], cl[1:]...), nil
}

func (b BLAT) commandLine() ([]string, error) {
	if b.Database == "" || b.Query == "" || b.Output == "" {
		return nil, ErrMissingRequired
	}
	cl, err := external.Build(b)
	if err != nil {
		return nil, fmt.Errorf("build blat command: %w", err)
	}
	return cl, nil
}

// Command runs blat as an external process. Each call works in its own
// temporary directory, so a Command may be shared between goroutines.
type Command struct {
	// Params supplies the blat options. File names are set per call.
	Params BLAT
	// TempDir is the parent of the per-call directories; empty uses the
	// system default.
	TempDir string

	logger *zap.Logger
}

// NewCommand creates a blat runner using the binary at path.
func NewCommand(path, tempDir string) *Command {
	return &Command{
		Params:  BLAT{Cmd: path},
		TempDir: tempDir,
		logger:  zap.NewNop(),
	}
}

// SetLogger sets the logger for debug messages.
func (c *Command) SetLogger(l *zap.Logger) {
	c.logger = l
}

// Align writes target and queries to FASTA, runs blat and parses its PSL
// output.
func (c *Command) Align(ctx context.Context, target Sequence, queries []Sequence) ([]Hit, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	dir, err := os.MkdirTemp(c.TempDir, "blat-")
	if err != nil {
		return nil, fmt.Errorf("create blat work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	params := c.Params
	params.Database = filepath.Join(dir, "target.fa")
	params.Query = filepath.Join(dir, "query.fa")
	params.Output = filepath.Join(dir, "out.psl")
	params.NoHead = true

	if err := writeFASTA(params.Database, []Sequence{target}); err != nil {
		return nil, err
	}
	if err := writeFASTA(params.Query, queries); err != nil {
		return nil, err
	}

	cl, err := params.commandLine()
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, cl[0], cl[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run blat: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	f, err := os.Open(params.Output)
	if err != nil {
		return nil, fmt.Errorf("open blat output: %w", err)
	}
	defer f.Close()

	hits, err := ParsePSL(f)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("blat finished",
		zap.String("target", target.Name),
		zap.Int("queries", len(queries)),
		zap.Int("hits", len(hits)))
	return hits, nil
}

func writeFASTA(path string, seqs []Sequence) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := fasta.NewWriter(f, 60)
	for _, s := range seqs {
		ls := linear.NewSeq(s.Name, alphabet.BytesToLetters(s.Seq), alphabet.DNAredundant)
		if _, err := w.Write(ls); err != nil {
			f.Close()
			return fmt.Errorf("write sequence %q: %w", s.Name, err)
		}
	}
	return f.Close()
}
