package service

import (
	"github.com/okian/formeval/internal/domain/queue"
	"github.com/okian/formeval/internal/domain/session"
	"github.com/okian/formeval/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAdminMode enables Reset.
func WithAdminMode(enabled bool) Option {
	return func(s *Service) {
		s.adminMode = enabled
	}
}

// WithSessionManager shares a session manager between services.
func WithSessionManager(m *session.Manager) Option {
	return func(s *Service) {
		if m != nil {
			s.sessions = m
		}
	}
}

// WithQueueOptions passes options to every queue the service builds.
func WithQueueOptions(opts ...queue.Option) Option {
	return func(s *Service) {
		s.queueOpts = append(s.queueOpts, opts...)
	}
}
