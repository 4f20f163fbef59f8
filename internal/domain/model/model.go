// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Score bounds accepted for a rating.
const (
	MinScore = 0
	MaxScore = 100
)

// CatalogItem is one video eligible for rating. VideoName is its identity.
type CatalogItem struct {
	Exercise  string `json:"exercise"`
	VideoName string `json:"video_name"`
	URL       string `json:"url"`
}

// FormLabel classifies the form shown in a video.
type FormLabel int

const (
	// LabelUnknown is the zero value and never valid in a record.
	LabelUnknown FormLabel = iota
	GoodForm
	BadForm
)

// String returns the label as written to the results table.
func (l FormLabel) String() string {
	switch l {
	case GoodForm:
		return "Good Form"
	case BadForm:
		return "Bad Form"
	default:
		return "unknown"
	}
}

// MarshalText encodes the label using its table spelling.
func (l FormLabel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLabel, int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText accepts anything ParseFormLabel accepts.
func (l *FormLabel) UnmarshalText(b []byte) error {
	parsed, err := ParseFormLabel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Valid reports whether l is GoodForm or BadForm.
func (l FormLabel) Valid() bool {
	return l == GoodForm || l == BadForm
}

// ParseFormLabel parses "Good Form"/"Bad Form" ignoring case and surrounding
// whitespace. The short forms "good" and "bad" are also accepted.
func ParseFormLabel(s string) (FormLabel, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(s), " "))
	switch normalized {
	case "good form", "good", "goodform":
		return GoodForm, nil
	case "bad form", "bad", "badform":
		return BadForm, nil
	}
	return LabelUnknown, fmt.Errorf("%w: %q", ErrInvalidLabel, s)
}

// Key is the natural key of a ScoreRecord.
type Key struct {
	Expert string
	Video  string
}

// ScoreRecord is one rater's evaluation of one video.
type ScoreRecord struct {
	Expert    string    `json:"expert"`
	Video     string    `json:"video"`
	Exercise  string    `json:"exercise"`
	FormLabel FormLabel `json:"form_label"`
	Score     int       `json:"score"`
}

// Key returns the (expert, video) pair identifying r.
func (r ScoreRecord) Key() Key {
	return Key{Expert: r.Expert, Video: r.Video}
}

// Validate checks the record fields.
func (r ScoreRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.Expert) == "":
		return ErrMissingExpert
	case strings.TrimSpace(r.Video) == "":
		return ErrMissingVideo
	case !r.FormLabel.Valid():
		return ErrInvalidLabel
	}
	return ValidateScore(r.Score)
}

// ValidateScore checks that score lies in [MinScore, MaxScore].
func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return fmt.Errorf("%w: %d", ErrScoreOutOfRange, score)
	}
	return nil
}
