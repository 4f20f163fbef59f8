package queue

import "math/rand/v2"

type builder struct {
	shuffle func(n int, swap func(i, j int))
}

// Option configures Build.
type Option func(*builder)

// WithRand makes Build shuffle with r instead of the global source.
func WithRand(r *rand.Rand) Option {
	return func(b *builder) {
		if r != nil {
			b.shuffle = r.Shuffle
		}
	}
}
