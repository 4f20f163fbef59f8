// Package simulate drives a running rating API with synthetic raters and
// verifies the exported tables afterwards.
package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL string        // Base URL of the service
	Raters  int           // Number of synthetic raters
	Workers int           // Number of raters rated concurrently
	Timeout time.Duration // HTTP request timeout
	// RepeatRate is the fraction of submissions sent twice with the same
	// index. The repeat must never produce a second row.
	RepeatRate float64
	// Prefix names the raters: Prefix001, Prefix002, ...
	Prefix string
	Seed   uint64
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.Raters <= 0 {
		c.Raters = 1
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Prefix == "" {
		c.Prefix = "SIM"
	}
	return c
}

// Stats holds run statistics.
type Stats struct {
	Raters      int           `json:"raters"`
	Submitted   int64         `json:"submitted"`
	Saved       int64         `json:"saved"`
	Duplicates  int64         `json:"duplicates"`
	Ignored     int64         `json:"ignored"`
	Failed      int64         `json:"failed"`
	RowsChecked int           `json:"rows_checked"`
	Duration    time.Duration `json:"duration"`
}
