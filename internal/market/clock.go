package market

import (
	"context"
	"time"
)

// SessionClock 按纽交所常规时段推算市场状态（不含节假日）。
//   - 工作日 09:30–16:00 为 OPEN
//   - 工作日 04:00–09:30 为 EARLY_HOURS
//   - 其余为 CLOSED
type SessionClock struct {
	Location *time.Location
	Now      func() time.Time
}

// NewSessionClock 使用给定时区名（默认 America/New_York）。
func NewSessionClock(tz string) (*SessionClock, error) {
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	return &SessionClock{Location: loc, Now: time.Now}, nil
}

func (c *SessionClock) Poll(ctx context.Context) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusError, err
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return SessionAt(now().In(loc)), nil
}

// SessionAt 返回本地时间 t 所处的交易时段。
func SessionAt(t time.Time) Status {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return StatusClosed
	}
	minutes := t.Hour()*60 + t.Minute()
	switch {
	case minutes >= 9*60+30 && minutes < 16*60:
		return StatusOpen
	case minutes >= 4*60 && minutes < 9*60+30:
		return StatusEarlyHours
	default:
		return StatusClosed
	}
}

// AlwaysOpen 始终返回 OPEN，适用于只交易加密资产的部署。
type AlwaysOpen struct{}

func (AlwaysOpen) Poll(context.Context) (Status, error) { return StatusOpen, nil }

// SegmentKey 标识一个交易日内的时段（日期 + 状态），用于“每个时段只刷新一次”。
func SegmentKey(t time.Time, status Status) string {
	return t.Format("2006-01-02") + "/" + string(status)
}
