package datasource

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pankbase/functional/internal/domain/cohort"
)

const ctxCheckEvery = 1024

// ReadTable reads a delimited file into a raw table. Header names are
// trimmed and a UTF-8 byte order mark is dropped. Short rows are kept; the
// dataset builder treats missing trailing fields as absent.
func ReadTable(ctx context.Context, spec FileSpec) (cohort.Table, error) {
	f, err := os.Open(spec.Path)
	if err != nil {
		return cohort.Table{}, err
	}
	defer f.Close()

	t, err := parseTable(ctx, f, spec.Delimiter())
	if err != nil {
		return cohort.Table{}, fmt.Errorf("%s: %w", spec.Path, err)
	}
	t.Name = filepath.Base(spec.Path)
	return t, nil
}

func parseTable(ctx context.Context, r io.Reader, delim rune) (cohort.Table, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return cohort.Table{}, errors.New("empty file")
	}
	if err != nil {
		return cohort.Table{}, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = strings.TrimSpace(h)
	}

	t := cohort.Table{Header: header}
	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return cohort.Table{}, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return cohort.Table{}, err
		}
		if blankRecord(rec) {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
