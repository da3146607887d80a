package network

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/logging"
)

// ErrCircuitOpen is returned while the breaker refuses calls.
var ErrCircuitOpen = errors.New("circuit open")

// DefaultRetryAttempts and DefaultRetryDelay shape ExecuteWithRetry.
const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
)

// Operation is a network call guarded by the breaker.
type Operation func(ctx context.Context) error

// NetworkService runs dial and handshake calls through a circuit breaker so
// a dead server is not hammered by reconnect attempts.
type NetworkService struct {
	breaker   *gobreaker.CircuitBreaker
	logger    *logging.Logger
	attempts  int
	baseDelay time.Duration
}

// NewNetworkService configures a breaker from the environment settings.
func NewNetworkService(env *config.EnvironmentConfig, logger *logging.Logger) *NetworkService {
	if logger == nil {
		logger = logging.NewLogger()
	}
	maxFails := env.CircuitBreakerMaxConsecutiveFails
	settings := gobreaker.Settings{
		Name:        "lander-client",
		MaxRequests: env.CircuitBreakerMaxRequests,
		Interval:    env.CircuitBreakerInterval,
		Timeout:     env.CircuitBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &NetworkService{
		breaker:   gobreaker.NewCircuitBreaker(settings),
		logger:    logger,
		attempts:  DefaultRetryAttempts,
		baseDelay: DefaultRetryDelay,
	}
}

// Execute runs op through the breaker. An open breaker fails fast with
// ErrCircuitOpen.
func (ns *NetworkService) Execute(ctx context.Context, op Operation) error {
	_, err := ns.breaker.Execute(func() (interface{}, error) {
		return nil, op(ctx)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	ns.logger.Debug(ctx, "guarded call failed", "error", err.Error(), "state", ns.breaker.State().String())
	return err
}

// ExecuteWithRetry retries op with a linearly growing delay. It stops early
// when the breaker opens or ctx is done.
func (ns *NetworkService) ExecuteWithRetry(ctx context.Context, op Operation) error {
	var err error
	for attempt := 1; attempt <= ns.attempts; attempt++ {
		if err = ns.Execute(ctx, op); err == nil {
			return nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			ns.logger.Warn(ctx, "circuit breaker is open, skipping retries", "attempt", attempt)
			return err
		}
		if attempt == ns.attempts {
			break
		}

		delay := time.Duration(attempt) * ns.baseDelay
		ns.logger.Warn(ctx, "operation failed, retrying",
			"attempt", attempt,
			"max_attempts", ns.attempts,
			"delay", delay.String(),
			"error", err.Error(),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", ns.attempts, err)
}

// State returns the breaker state.
func (ns *NetworkService) State() gobreaker.State {
	return ns.breaker.State()
}

// Counts returns the breaker's counters for the current interval.
func (ns *NetworkService) Counts() gobreaker.Counts {
	return ns.breaker.Counts()
}
