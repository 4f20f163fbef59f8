package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	service "github.com/okian/formeval/internal/app"
	"github.com/okian/formeval/internal/domain/model"
	"github.com/okian/formeval/pkg/logger"
)

// ErrVerification marks a run whose exported tables do not match what the
// raters submitted.
var ErrVerification = errors.New("simulation verification failed")

type raterResult struct {
	expert string
	total  int
	err    error
}

// Run rates the whole catalog with cfg.Raters synthetic raters, then checks
// every rater's export.
func Run(ctx context.Context, cfg Config, log logger.Logger) (Stats, error) {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.Nop()
	}
	started := time.Now()
	stats := Stats{Raters: cfg.Raters}
	c := newClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("raters", cfg.Raters),
		logger.Int("workers", cfg.Workers),
	)
	if err := c.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	var counters counters
	jobs := make(chan int, cfg.Workers)
	results := make(chan raterResult, cfg.Raters)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				expert := fmt.Sprintf("%s%03d", cfg.Prefix, n)
				rng := rand.New(rand.NewPCG(cfg.Seed, uint64(n)))
				total, err := rate(ctx, c, expert, rng, cfg.RepeatRate, &counters)
				results <- raterResult{expert: expert, total: total, err: err}
			}
		}()
	}
	for n := 1; n <= cfg.Raters; n++ {
		jobs <- n
	}
	close(jobs)
	wg.Wait()
	close(results)

	var errs []error
	for r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.expert, r.err))
			continue
		}
		rows, err := verify(ctx, c, r.expert, r.total)
		stats.RowsChecked += rows
		if err != nil {
			errs = append(errs, err)
		}
	}

	stats.Submitted = counters.submitted.Load()
	stats.Saved = counters.saved.Load()
	stats.Duplicates = counters.duplicates.Load()
	stats.Ignored = counters.ignored.Load()
	stats.Failed = counters.failed.Load()
	stats.Duration = time.Since(started)

	log.Info(ctx, "simulation finished",
		logger.Int("submitted", int(stats.Submitted)),
		logger.Int("saved", int(stats.Saved)),
		logger.Int("duplicates", int(stats.Duplicates)),
		logger.Int("ignored", int(stats.Ignored)),
		logger.Int("rowsChecked", stats.RowsChecked),
		logger.Duration("duration", stats.Duration),
	)
	return stats, errors.Join(errs...)
}

type counters struct {
	submitted  atomic.Int64
	saved      atomic.Int64
	duplicates atomic.Int64
	ignored    atomic.Int64
	failed     atomic.Int64
}

// rate drives one rater to the end of its queue and returns the queue length
// seen at session start.
func rate(ctx context.Context, c *client, expert string, rng *rand.Rand, repeatRate float64, n *counters) (int, error) {
	view, err := c.start(ctx, expert)
	if err != nil {
		return 0, fmt.Errorf("start session: %w", err)
	}
	total := view.Total
	for !view.Complete {
		idx := view.Index
		d := service.Draft{Label: model.GoodForm, Score: rng.IntN(model.MaxScore + 1), Index: &idx}
		if rng.IntN(2) == 0 {
			d.Label = model.BadForm
		}
		out, err := c.submit(ctx, expert, d)
		n.submitted.Add(1)
		if err != nil {
			n.failed.Add(1)
			return total, fmt.Errorf("submit index %d: %w", idx, err)
		}
		n.count(out)
		if out.Index <= idx {
			return total, fmt.Errorf("submit index %d did not advance", idx)
		}
		if rng.Float64() < repeatRate {
			again, err := c.submit(ctx, expert, d)
			n.submitted.Add(1)
			if err != nil {
				n.failed.Add(1)
				return total, fmt.Errorf("repeat index %d: %w", idx, err)
			}
			if again.Record != nil {
				return total, fmt.Errorf("repeat of index %d was written", idx)
			}
			n.ignored.Add(1)
		}
		view = out.View
	}
	return total, nil
}

func (n *counters) count(out service.Outcome) {
	switch {
	case out.Record != nil:
		n.saved.Add(1)
	case out.State == service.DuplicateSkipped:
		n.duplicates.Add(1)
	}
}
