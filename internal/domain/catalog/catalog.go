// Package catalog loads the list of videos eligible for rating.
//
// A catalog is a comma or tab separated table with the columns exercise,
// video_name and url. Column names are matched case and whitespace
// insensitively. Every well-formed row becomes exactly one item; a single
// malformed row fails the whole load.
package catalog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/text/cases"

	"github.com/okian/formeval/internal/domain/model"
)

// Canonical column names.
const (
	ColumnExercise  = "exercise"
	ColumnVideoName = "video_name"
	ColumnURL       = "url"
)

var requiredColumns = []string{ColumnExercise, ColumnVideoName, ColumnURL}

// Load reads the catalog at path.
func Load(ctx context.Context, path string) ([]model.CatalogItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, path)
		}
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	items, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// Parse reads a catalog table from r. The delimiter is a tab when the header
// line contains one, otherwise a comma.
func Parse(r io.Reader) ([]model.CatalogItem, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	if i := bytes.IndexByte(header, '\n'); i >= 0 {
		header = header[:i]
	}

	cr := csv.NewReader(br)
	cr.Comma = ','
	if bytes.IndexByte(header, '\t') >= 0 {
		cr.Comma = '\t'
	}
	cr.TrimLeadingSpace = true

	columns, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty catalog", ErrCatalogSchema)
		}
		return nil, fmt.Errorf("%w: %v", ErrCatalogSchema, err)
	}
	index, err := columnIndex(columns)
	if err != nil {
		return nil, err
	}

	var items []model.CatalogItem
	seen := make(map[string]int)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCatalogSchema, err)
		}
		line, _ := cr.FieldPos(0)
		item := model.CatalogItem{
			Exercise:  strings.TrimSpace(row[index[ColumnExercise]]),
			VideoName: strings.TrimSpace(row[index[ColumnVideoName]]),
			URL:       strings.TrimSpace(row[index[ColumnURL]]),
		}
		if missing := missingField(item); missing != "" {
			return nil, fmt.Errorf("%w: line %d: empty %s", ErrCatalogSchema, line, missing)
		}
		if prev, dup := seen[item.VideoName]; dup {
			return nil, fmt.Errorf("%w: line %d: video_name %q already defined on line %d", ErrCatalogSchema, line, item.VideoName, prev)
		}
		seen[item.VideoName] = line
		items = append(items, item)
	}
	return items, nil
}

// NormalizeColumn folds a header cell to its canonical spelling.
func NormalizeColumn(name string) string {
	trimmed := strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	folded := cases.Fold().String(trimmed)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	})
	return strings.Join(fields, "_")
}

func columnIndex(columns []string) (map[string]int, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		name := NormalizeColumn(c)
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrCatalogSchema, c)
		}
		index[name] = i
	}
	var missing []string
	for _, want := range requiredColumns {
		if _, ok := index[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrCatalogSchema, strings.Join(missing, ", "))
	}
	return index, nil
}

func missingField(item model.CatalogItem) string {
	switch {
	case item.Exercise == "":
		return ColumnExercise
	case item.VideoName == "":
		return ColumnVideoName
	case item.URL == "":
		return ColumnURL
	}
	return ""
}
