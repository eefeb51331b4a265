package model

import (
	"context"
	"time"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/internal/retry"
	"github.com/hupe1980/dialogmesh/logging"
)

// Generate drains a model's channels and returns the final response.
// Partial chunks are ignored; an error on the error channel wins.
func Generate(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		final    Response
		gotFinal bool
	)
	for respCh != nil || errCh != nil {
		select {
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !r.Partial {
				final, gotFinal = r, true
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if !gotFinal {
		return Response{}, ErrNoResponse
	}
	return final, nil
}

// RetryOptions configures WithRetry.
type RetryOptions struct {
	MaxAttempts int
	Delay       time.Duration
	Logger      logging.Logger
}

type retryModel struct {
	Model
	opts RetryOptions
}

// WithRetry wraps m so transient failures are retried. The default is a
// single retry after 500ms.
func WithRetry(m Model, optFns ...func(o *RetryOptions)) Model {
	opts := RetryOptions{
		MaxAttempts: 2,
		Delay:       500 * time.Millisecond,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &retryModel{Model: m, opts: opts}
}

// Generate runs the wrapped model to completion, retrying transient errors,
// and re-emits the final response on fresh channels.
func (r *retryModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		var resp Response
		err := retry.Do(ctx, retry.Config{
			MaxAttempts:  r.opts.MaxAttempts,
			InitialDelay: r.opts.Delay,
			MaxDelay:     r.opts.Delay,
			ShouldRetry:  IsTransient,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				r.opts.Logger.Warn("model.retry", "provider", r.Info().Provider, "attempt", attempt, "error", err.Error(), "delay", delay)
			},
		}, func() error {
			var err error
			resp, err = Generate(ctx, r.Model, req)
			return err
		})
		if err != nil {
			errCh <- err
			return
		}
		out <- resp
	}()
	return out, errCh
}

// TextOf returns the text of a response.
func TextOf(resp Response) string {
	return resp.Content.Text()
}

// FunctionCallsOf returns the tool calls requested by a response.
func FunctionCallsOf(resp Response) []core.FunctionCall {
	return resp.Content.FunctionCalls()
}
