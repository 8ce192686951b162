package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"quorum/internal/coefficient"
	brcfg "quorum/internal/config"
	"quorum/internal/logger"
	"quorum/internal/orchestrator"
	"quorum/internal/scheduler"
	livehttp "quorum/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动协调循环与诊断服务。
type App struct {
	cfg     *brcfg.Config
	orch    *orchestrator.Orchestrator
	http    *livehttp.Server
	cron    *scheduler.EpochCron
	curve   *coefficient.Curve
	closers []io.Closer

	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *brcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动协调循环、诊断 HTTP、系数曲线监听与排名定时任务，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.orch == nil {
		return fmt.Errorf("orchestrator not initialized")
	}
	defer a.close()

	if a.Summary != nil {
		a.Summary.Print()
	}

	a.cron.Start()
	defer a.cron.Stop()

	group, ctx := errgroup.WithContext(ctx)

	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("diagnostics http server error: %w", err)
			}
			return nil
		})
	}

	if a.curve != nil {
		// 监听失败不影响交易循环，继续使用已加载的系数。
		if err := a.curve.Watch(ctx); err != nil {
			logger.Warnf("coefficient watcher disabled: %v", err)
		}
	}

	group.Go(func() error {
		err := a.orch.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return group.Wait()
}

// Orchestrator exposes the coordinator (for tests and replay harnesses).
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	if a == nil {
		return nil
	}
	return a.orch
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Warnf("close resource: %v", err)
		}
	}
	a.closers = nil
}
