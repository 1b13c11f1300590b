package source

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// TableOptions controls ReadTable.
type TableOptions struct {
	// Comments are prefixes that start a comment anywhere on a line.
	Comments []string
	// SkipRows lines are dropped before any other processing.
	SkipRows int
	// Missing tokens are read as NaN.
	Missing []string
	// MinColumns rejects tables narrower than this.
	MinColumns int
}

// ParseError locates a malformed table line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReadTable parses a whitespace-separated numeric table and returns it by
// column. Every data line must have the same number of fields.
func ReadTable(r io.Reader, opts TableOptions) ([][]float64, error) {
	missing := make(map[string]bool, len(opts.Missing))
	for _, m := range opts.Missing {
		missing[m] = true
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var cols [][]float64
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum <= opts.SkipRows {
			continue
		}
		line := scanner.Text()
		for _, c := range opts.Comments {
			if i := strings.Index(line, c); i >= 0 {
				line = line[:i]
			}
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if cols == nil {
			if len(fields) < opts.MinColumns {
				return nil, &ParseError{Line: lineNum, Text: line,
					Err: fmt.Errorf("got %d columns, want at least %d", len(fields), opts.MinColumns)}
			}
			cols = make([][]float64, len(fields))
		}
		if len(fields) != len(cols) {
			return nil, &ParseError{Line: lineNum, Text: line,
				Err: fmt.Errorf("got %d columns, want %d", len(fields), len(cols))}
		}

		for i, f := range fields {
			if missing[f] {
				cols[i] = append(cols[i], math.NaN())
				continue
			}
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, &ParseError{Line: lineNum, Text: line, Err: err}
			}
			cols[i] = append(cols[i], v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	if cols == nil {
		return nil, fmt.Errorf("read table: no data rows")
	}
	return cols, nil
}
