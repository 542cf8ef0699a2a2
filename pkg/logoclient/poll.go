package logoclient

import (
	"context"
	"fmt"
	"time"

	"kiranalogo/internal/domain"
)

// PollOptions controls WaitForCompletion. The zero value polls every two
// seconds for at most five minutes.
type PollOptions struct {
	Interval    time.Duration
	MaxInterval time.Duration
	// Backoff multiplies the interval after each non-terminal answer; values
	// <= 1 keep it fixed.
	Backoff float64
	Timeout time.Duration
	// OnUpdate is called with every status observed.
	OnUpdate func(*Prediction)
}

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 5 * time.Minute
)

func (o PollOptions) withDefaults() PollOptions {
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultPollTimeout
	}
	if o.MaxInterval < o.Interval {
		o.MaxInterval = o.Interval
		if o.Backoff > 1 {
			o.MaxInterval = 15 * o.Interval
		}
	}
	return o
}

// WaitForCompletion polls id until the prediction is terminal. When the
// deadline passes first it returns the last observed prediction together
// with domain.ErrTimedOut. Transient failures are retried on the next tick.
func (c *Client) WaitForCompletion(ctx context.Context, id string, opts PollOptions) (*Prediction, error) {
	opts = opts.withDefaults()
	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()

	interval := opts.Interval
	var last *Prediction
	for {
		p, err := c.Get(ctx, id)
		switch {
		case err == nil:
			last = p
			if opts.OnUpdate != nil {
				opts.OnUpdate(p)
			}
			if p.Status.IsTerminal() {
				return p, nil
			}
		case !IsTransient(err):
			return last, err
		}

		wait := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return last, ctx.Err()
		case <-deadline.C:
			wait.Stop()
			return last, fmt.Errorf("prediction %s after %s: %w", id, opts.Timeout, domain.ErrTimedOut)
		case <-wait.C:
		}
		if opts.Backoff > 1 {
			interval = time.Duration(float64(interval) * opts.Backoff)
			if interval > opts.MaxInterval {
				interval = opts.MaxInterval
			}
		}
	}
}

// Generate submits in and waits for the result.
func (c *Client) Generate(ctx context.Context, in domain.PredictionInput, opts PollOptions) (*Prediction, error) {
	p, err := c.Submit(ctx, in)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		return p, nil
	}
	return c.WaitForCompletion(ctx, p.ID, opts)
}
