// Package api provides the gRPC rules service for hl7keeper.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/hl7keeper/internal/core/store"
	"github.com/solatis/hl7keeper/internal/rules"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// anonymousAuthor is recorded when a put arrives without an authenticated key.
const anonymousAuthor = "anonymous"

// RulesAPIService implements RulesAPIServer.
// Thin orchestration layer delegating to the rules engine and rule store.
type RulesAPIService struct {
	engine  *rules.Engine
	store   store.RuleStore
	logger  *slog.Logger
	timeout time.Duration
}

// NewRulesAPIService creates a service instance with dependencies.
// A zero timeout leaves request deadlines to the caller.
func NewRulesAPIService(engine *rules.Engine, ruleStore store.RuleStore, logger *slog.Logger, timeout time.Duration) (*RulesAPIService, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if ruleStore == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &RulesAPIService{
		engine:  engine,
		store:   ruleStore,
		logger:  logger,
		timeout: timeout,
	}, nil
}

// withTimeout bounds a request by the configured timeout.
func (s *RulesAPIService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// fail converts err to a status. Server-side failures are logged at error
// level, caller mistakes at debug.
func (s *RulesAPIService) fail(method string, err error) error {
	st := toStatus(err)
	switch status.Code(st) {
	case codes.Internal, codes.Unavailable:
		s.logger.Error("request failed", "method", method, "error", err)
	default:
		s.logger.Debug("request rejected", "method", method, "code", status.Code(st).String(), "error", err)
	}
	return st
}
