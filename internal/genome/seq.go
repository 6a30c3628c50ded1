package genome

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/seq/linear"
)

// RevComp returns the upper-cased reverse complement of s.
func RevComp(s []byte) []byte {
	if len(s) == 0 {
		return nil
	}
	ls := linear.NewSeq("", alphabet.BytesToLetters(toUpper(s)), alphabet.DNAredundant)
	ls.RevComp()
	return lettersToBytes(ls.Seq)
}

func toUpper(s []byte) []byte {
	b := make([]byte, len(s))
	for i, c := range s {
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		b[i] = c
	}
	return b
}

// ChromAliases renames chromosomes, e.g. Ensembl "1" to UCSC "chr1".
type ChromAliases map[string]string

// Name returns the alias for chrom, or chrom itself.
func (a ChromAliases) Name(chrom string) string {
	if to, ok := a[chrom]; ok {
		return to
	}
	return chrom
}

// ParseChromAliases reads whitespace separated "from to" pairs, one per line.
func ParseChromAliases(r io.Reader) (ChromAliases, error) {
	aliases := make(ChromAliases)
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("chromosome aliases line %d: expected 2 fields, got %d", lineNum, len(fields))
		}
		aliases[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan chromosome aliases: %w", err)
	}
	return aliases, nil
}

// LoadChromAliases reads an alias file from disk.
func LoadChromAliases(path string) (ChromAliases, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chromosome aliases: %w", err)
	}
	defer f.Close()
	return ParseChromAliases(f)
}
