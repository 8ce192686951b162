package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// ErrExhausted 表示重试次数已用尽。
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy 描述有界指数退避。
type Policy struct {
	MaxAttempts int
	Min         time.Duration
	Max         time.Duration
	Factor      float64
	Jitter      bool
}

// DefaultPolicy 在未配置时使用。
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, Min: 500 * time.Millisecond, Max: 10 * time.Second, Factor: 2, Jitter: true}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Min <= 0 {
		p.Min = def.Min
	}
	if p.Max < p.Min {
		p.Max = p.Min
	}
	if p.Factor < 1 {
		p.Factor = def.Factor
	}
	return p
}

func (p Policy) backoff() *backoff.Backoff {
	return &backoff.Backoff{Min: p.Min, Max: p.Max, Factor: p.Factor, Jitter: p.Jitter}
}

// Do 执行 op，直到成功、返回不可重试错误、ctx 取消或次数耗尽。
// retryable 为 nil 时所有错误均可重试。
func Do(ctx context.Context, p Policy, retryable func(error) bool, op func(ctx context.Context, attempt int) error) error {
	p = p.normalized()
	b := p.backoff()
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		timer := time.NewTimer(b.Duration())
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.MaxAttempts, lastErr)
}
