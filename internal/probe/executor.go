package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	consts "github.com/khanhnv2901/idprecon/internal/shared/constants"
)

// Options configures an Executor.
type Options struct {
	Delay      time.Duration // fixed wait before every attempt
	MaxRetries int           // retries after a transient failure
	MaxRPS     float64       // global ceiling; 0 means unlimited
	Timeout    time.Duration // per-request timeout
	UserAgent  string
	Proxy      string
	Client     *http.Client // overrides the client built from Timeout/Proxy
	Logger     *zap.Logger
}

// Executor issues probes. It is safe for concurrent use.
type Executor struct {
	client     *http.Client
	delay      time.Duration
	maxRetries int
	userAgent  string
	limiter    *rate.Limiter
	stats      *Stats
	logger     *zap.Logger
}

// NewExecutor builds an Executor from opts.
func NewExecutor(opts Options) (*Executor, error) {
	if opts.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative")
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = consts.DefaultRequestTimeout
		}
		var err error
		client, err = NewHTTPClient(timeout, opts.Proxy)
		if err != nil {
			return nil, err
		}
	}

	limit := rate.Inf
	burst := 1
	if opts.MaxRPS > 0 {
		limit = rate.Limit(opts.MaxRPS)
		burst = int(math.Max(1, math.Ceil(opts.MaxRPS)))
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = consts.DefaultUserAgent
	}

	return &Executor{
		client:     client,
		delay:      opts.Delay,
		maxRetries: opts.MaxRetries,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(limit, burst),
		stats:      NewStats(),
		logger:     logger,
	}, nil
}

// Stats returns the executor's request counters.
func (e *Executor) Stats() *Stats {
	return e.stats
}

// Execute sends req, retrying transient failures up to the retry bound. An
// HTTP 429 earns one extra attempt beyond the bound. The returned Result
// always carries either a response or a Failure.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	result := Result{Key: req.Key, Request: req.Summary()}
	start := time.Now()
	allowed := e.maxRetries + 1
	rateLimitBonus := false
	log := e.logger.With(
		zap.Int("phase", req.Key.Phase),
		zap.String("check", req.Key.Check),
		zap.String("connection", req.Key.Connection),
	)

	fail := func(kind FailureKind, detail string) Result {
		result.Failure = &Failure{Kind: kind, Detail: detail}
		result.Elapsed = time.Since(start)
		e.stats.observeFailure(kind)
		log.Debug("probe failed", zap.String("kind", string(kind)), zap.String("detail", detail), zap.Int("attempts", result.Attempts))
		return result
	}

	for {
		if err := sleepContext(ctx, e.delay); err != nil {
			return fail(FailureCanceled, err.Error())
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return fail(FailureCanceled, err.Error())
		}

		httpReq, err := req.build(ctx)
		if err != nil {
			return fail(FailureInvalidRequest, err.Error())
		}
		httpReq.Header.Set("User-Agent", e.userAgent)

		result.Attempts++
		attemptStart := time.Now()
		status, header, body, err := e.do(httpReq)
		e.stats.observeAttempt(req.Key.Phase, time.Since(attemptStart))

		if err != nil {
			if ctx.Err() != nil {
				return fail(FailureCanceled, ctx.Err().Error())
			}
			if isTransient(err) && result.Attempts < allowed {
				e.stats.observeRetry()
				log.Debug("retrying after transient error", zap.Int("attempt", result.Attempts), zap.Error(err))
				continue
			}
			return fail(FailureTransientNetwork, err.Error())
		}

		if status == http.StatusTooManyRequests {
			e.stats.observeRateLimited()
			if !rateLimitBonus {
				rateLimitBonus = true
				allowed++
			}
			if result.Attempts < allowed {
				e.stats.observeRetry()
				log.Debug("rate limited, retrying", zap.Int("attempt", result.Attempts))
				continue
			}
			result.StatusCode = status
			result.Header = header
			result.Body = body
			return fail(FailureRateLimited, fmt.Sprintf("HTTP 429 after %d attempts", result.Attempts))
		}

		result.StatusCode = status
		result.Header = header
		result.Body = body
		result.Elapsed = time.Since(start)
		return result
	}
}

func (e *Executor) do(req *http.Request) (int, http.Header, []byte, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, consts.MaxResponseBodyBytes))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

// isTransient reports whether err is worth another attempt: timeouts,
// resets, refused connections and truncated reads.
func isTransient(err error) bool {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.EPIPE):
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
