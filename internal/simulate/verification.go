package simulate

import (
	"bytes"
	"context"
	"fmt"

	"github.com/okian/formeval/internal/adapters/repository"
)

// verify checks that the rater's export holds at least one row per queued
// video, one row per video, and only the rater's rows. It returns the number
// of rows read.
func verify(ctx context.Context, c *client, expert string, queued int) (int, error) {
	data, err := c.export(ctx, expert)
	if err != nil {
		return 0, fmt.Errorf("%w: export %s: %w", ErrVerification, expert, err)
	}
	records, err := repository.ReadCSV(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: export %s: %w", ErrVerification, expert, err)
	}
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.Expert != expert {
			return len(records), fmt.Errorf("%w: export %s contains a row for %s", ErrVerification, expert, r.Expert)
		}
		if _, dup := seen[r.Video]; dup {
			return len(records), fmt.Errorf("%w: export %s has %s twice", ErrVerification, expert, r.Video)
		}
		seen[r.Video] = struct{}{}
	}
	if len(records) < queued {
		return len(records), fmt.Errorf("%w: export %s has %d rows, %d videos were queued", ErrVerification, expert, len(records), queued)
	}
	return len(records), nil
}
