package scheduler

import (
	"fmt"
	"strings"
	"time"

	"quorum/internal/logger"

	"github.com/robfig/cron/v3"
)

// EpochCron 按 cron 表达式发出额外的排名周期请求；请求本身由协调循环在两轮之间执行。
type EpochCron struct {
	Spec string

	cron     *cron.Cron
	schedule cron.Schedule
	loc      *time.Location
	request  func()
	now      func() time.Time
}

// NewEpochCron 解析标准五段 cron 表达式。spec 为空时返回 nil（不启用）。
func NewEpochCron(spec string, loc *time.Location, request func()) (*EpochCron, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	if request == nil {
		return nil, fmt.Errorf("epoch cron: request func is nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("register epoch cron %q: %w", spec, err)
	}
	c := cron.New(cron.WithLocation(loc))
	s := &EpochCron{Spec: spec, cron: c, schedule: schedule, loc: loc, request: request, now: time.Now}
	c.Schedule(schedule, cron.FuncJob(s.fire))
	return s, nil
}

func (s *EpochCron) fire() {
	logger.Infof("EpochCron: schedule %q fired, requesting ranking epoch", s.Spec)
	s.request()
}

// Start starts the cron scheduler.
func (s *EpochCron) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
	logger.Infof("EpochCron: started spec=%q", s.Spec)
}

// Stop stops the cron scheduler and waits for a running job.
func (s *EpochCron) Stop() {
	if s == nil {
		return
	}
	<-s.cron.Stop().Done()
	logger.Infof("EpochCron: stopped")
}

// Next 返回下一次触发时间，用于诊断；不依赖调度器是否已启动。
func (s *EpochCron) Next() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.schedule.Next(s.now().In(s.loc))
}
