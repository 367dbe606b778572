package llm

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Retrier runs operations with exponential backoff and ±25% jitter.
type Retrier struct {
	config RetryConfig

	mu   sync.Mutex
	rand *rand.Rand

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
	stats *RetryStats
}

// NewRetrier creates a retrier. Zero-valued InitialDelay and BackoffFactor
// fall back to the defaults.
func NewRetrier(config RetryConfig) *Retrier {
	def := DefaultRetryConfig()
	if config.InitialDelay <= 0 {
		config.InitialDelay = def.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.BackoffFactor <= 0 {
		config.BackoffFactor = def.BackoffFactor
	}
	return &Retrier{
		config: config,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepCtx,
	}
}

// RetryOperation is one attempt; attempt starts at 0.
type RetryOperation[T any] func(ctx context.Context, attempt int) (T, error)

// Execute runs op until it succeeds, returns a non-retryable error, or the
// retry budget is spent.
func Execute[T any](r *Retrier, ctx context.Context, op RetryOperation[T]) (T, error) {
	var zero T
	var lastErr error
	start := time.Now()

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			r.record(false, start, err)
			return zero, err
		}

		result, err := op(ctx, attempt)
		if err == nil {
			r.record(true, start, nil)
			return result, nil
		}
		lastErr = err
		r.recordErr(err)

		if !r.shouldRetry(err, attempt) {
			r.record(false, start, err)
			if attempt >= r.config.MaxRetries && attempt > 0 {
				return zero, fmt.Errorf("operation failed after %d attempts: %w", attempt+1, err)
			}
			return zero, err
		}

		delay := r.delay(attempt, err)
		log.Debug().Int("attempt", attempt+1).Dur("delay", delay).Err(err).Msg("retrying LLM call")
		if err := r.sleep(ctx, delay); err != nil {
			r.record(false, start, err)
			return zero, err
		}
	}

	r.record(false, start, lastErr)
	return zero, fmt.Errorf("operation failed after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}

// ExecuteSimple is Execute for operations without a result.
func (r *Retrier) ExecuteSimple(ctx context.Context, op func(context.Context, int) error) error {
	_, err := Execute(r, ctx, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, op(ctx, attempt)
	})
	return err
}

func (r *Retrier) shouldRetry(err error, attempt int) bool {
	if attempt >= r.config.MaxRetries {
		return false
	}
	if e, ok := AsLLMError(err); ok {
		return e.Retryable || retryableType(e.Type)
	}
	msg := strings.ToLower(err.Error())
	for _, s := range r.config.RetryableErrors {
		if strings.Contains(msg, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func (r *Retrier) delay(attempt int, err error) time.Duration {
	if e, ok := AsLLMError(err); ok && e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter) * time.Second
	}

	d := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt))
	r.mu.Lock()
	d += 0.25 * d * (r.rand.Float64()*2 - 1)
	r.mu.Unlock()

	d = math.Min(d, float64(r.config.MaxDelay))
	d = math.Max(d, float64(r.config.InitialDelay))
	return time.Duration(d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryStats accumulates outcomes for a stat-tracking retrier.
type RetryStats struct {
	TotalAttempts int            `json:"total_attempts"`
	Successful    int            `json:"successful"`
	Failed        int            `json:"failed"`
	TotalDelay    time.Duration  `json:"total_delay"`
	LastError     string         `json:"last_error,omitempty"`
	ErrorTypes    map[string]int `json:"error_types,omitempty"`
}

// NewStatTrackingRetrier is NewRetrier with statistics enabled.
func NewStatTrackingRetrier(config RetryConfig) *Retrier {
	r := NewRetrier(config)
	r.stats = &RetryStats{ErrorTypes: map[string]int{}}
	return r
}

// Stats returns a snapshot; zero when tracking is disabled.
func (r *Retrier) Stats() RetryStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stats == nil {
		return RetryStats{}
	}
	cp := *r.stats
	cp.ErrorTypes = make(map[string]int, len(r.stats.ErrorTypes))
	for k, v := range r.stats.ErrorTypes {
		cp.ErrorTypes[k] = v
	}
	return cp
}

func (r *Retrier) recordErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stats == nil {
		return
	}
	r.stats.TotalAttempts++
	r.stats.LastError = err.Error()
	if e, ok := AsLLMError(err); ok {
		r.stats.ErrorTypes[string(e.Type)]++
	} else {
		r.stats.ErrorTypes[string(ErrorTypeUnknown)]++
	}
}

func (r *Retrier) record(ok bool, start time.Time, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stats == nil {
		return
	}
	if ok {
		r.stats.TotalAttempts++
		r.stats.Successful++
	} else {
		r.stats.Failed++
	}
	r.stats.TotalDelay += time.Since(start)
}
