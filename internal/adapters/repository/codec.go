package repository

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/okian/formeval/internal/domain/model"
)

// Columns is the header of the results table.
var Columns = []string{"Expert", "Video", "Exercise", "Form_Label", "Score"}

// legacyColumns is the header written by the first version of the form,
// before the Exercise column existed.
var legacyColumns = []string{"Expert", "Video", "Form_Label", "Score"}

// WriteCSV writes the header and one row per record.
func WriteCSV(w io.Writer, records []model.ScoreRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		row := []string{r.Expert, r.Video, r.Exercise, r.FormLabel.String(), strconv.Itoa(r.Score)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeCSV is WriteCSV into a byte slice.
func EncodeCSV(records []model.ScoreRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadCSV parses a results table. Empty input is an empty table. Any row
// that does not parse fails the whole read with ErrStoreCorruption.
func ReadCSV(r io.Reader) ([]model.ScoreRecord, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrStoreCorruption, err)
	}
	legacy := false
	switch {
	case sameColumns(header, Columns):
	case sameColumns(header, legacyColumns):
		legacy = true
	default:
		return nil, fmt.Errorf("%w: unexpected header %q", ErrStoreCorruption, strings.Join(header, ","))
	}

	var records []model.ScoreRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreCorruption, err)
		}
		line, _ := cr.FieldPos(0)
		rec, err := parseRow(row, legacy)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrStoreCorruption, line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// DecodeCSV is ReadCSV over a byte slice.
func DecodeCSV(data []byte) ([]model.ScoreRecord, error) {
	return ReadCSV(bytes.NewReader(data))
}

func parseRow(row []string, legacy bool) (model.ScoreRecord, error) {
	var rec model.ScoreRecord
	var label, score string
	if legacy {
		rec.Expert, rec.Video, label, score = row[0], row[1], row[2], row[3]
	} else {
		rec.Expert, rec.Video, rec.Exercise, label, score = row[0], row[1], row[2], row[3], row[4]
	}
	l, err := model.ParseFormLabel(label)
	if err != nil {
		return rec, err
	}
	rec.FormLabel = l
	n, err := strconv.Atoi(strings.TrimSpace(score))
	if err != nil {
		return rec, fmt.Errorf("score %q: %w", score, err)
	}
	rec.Score = n
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	return rec, nil
}

func sameColumns(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if !strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(got[i], "\ufeff")), want[i]) {
			return false
		}
	}
	return true
}
