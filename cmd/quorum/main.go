package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"quorum/internal/app"
	brcfg "quorum/internal/config"
	"quorum/internal/logger"
)

func main() {
	os.Exit(run())
}

// run 返回进程退出码；错误路径同样执行 defer，保证日志文件被刷新关闭。
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := brcfg.PathFromEnv()
	cfg, err := brcfg.Load(cfgPath)
	if err != nil {
		log.Printf("读取配置失败: %v", err)
		return 1
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Printf("初始化日志文件失败: %v", err)
		return 1
	}
	if logFile != nil {
		defer logFile.Close()
	}
	journal, err := setupJournalOutput(cfg.App.JournalPath)
	if err != nil {
		log.Printf("初始化交易日志失败: %v", err)
		return 1
	}
	if journal != nil {
		defer journal.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，配置=%s）", cfg.App.Env, cfgPath)

	a, err := app.NewApp(cfg)
	if err != nil {
		logger.Errorf("初始化应用失败: %v", err)
		return 1
	}
	if err := a.Run(ctx); err != nil {
		logger.Errorf("运行失败: %v", err)
		return 1
	}
	logger.Infof("quorum 已退出")
	return 0
}

func openAppend(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	file, err := openAppend(trimmed)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}

// setupJournalOutput 把模拟/实盘成交流水单独写入一个文件。
func setupJournalOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		logger.SetJournalWriter(nil)
		return nil, nil
	}
	f, err := openAppend(trimmed)
	if err != nil {
		return nil, err
	}
	logger.SetJournalWriter(f)
	return f, nil
}
