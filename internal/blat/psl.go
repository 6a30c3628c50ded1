package blat

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// pslColumns is the number of columns in a PSL record.
const pslColumns = 21

// ParsePSL reads PSL records from r. Header lines and any line not starting
// with a digit are ignored.
func ParsePSL(r io.Reader) ([]Hit, error) {
	var hits []Hit
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" || line[0] < '0' || line[0] > '9' {
			continue
		}
		h, err := parsePSLLine(line)
		if err != nil {
			return nil, fmt.Errorf("PSL line %d: %w", lineNum, err)
		}
		hits = append(hits, h)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read PSL: %w", err)
	}
	return hits, nil
}

func parsePSLLine(line string) (Hit, error) {
	f := strings.Split(line, "\t")
	if len(f) < pslColumns {
		return Hit{}, fmt.Errorf("expected %d columns, got %d", pslColumns, len(f))
	}

	var ints [8]int
	for i, col := range []int{0, 10, 11, 12, 14, 15, 16, 17} {
		v, err := strconv.Atoi(f[col])
		if err != nil {
			return Hit{}, fmt.Errorf("column %d: %w", col+1, err)
		}
		ints[i] = v
	}

	strand := int8(1)
	if strings.HasPrefix(f[8], "-") {
		strand = -1
	}
	return Hit{
		Matches: ints[0],
		Strand:  strand,
		QName:   f[9],
		QSize:   ints[1],
		QStart:  ints[2],
		QEnd:    ints[3],
		TName:   f[13],
		TSize:   ints[4],
		TStart:  ints[5],
		TEnd:    ints[6],
		Blocks:  ints[7],
	}, nil
}
