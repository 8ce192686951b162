package app

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"quorum/internal/coefficient"
	brcfg "quorum/internal/config"
	"quorum/internal/seed"
)

type StartupSummary struct {
	Env          string
	Strategies   []string
	Reserved     []string
	DataSource   string
	StatusSource string
	Universe     brcfg.UniverseConfig
	LiveEnabled  bool
	BrokerKind   string
	EpochCron    string
	NextEpoch    time.Time
	HTTPAddr     string
	Seeded       seed.Report
	Curve        coefficient.CurveSnapshot
}

func (s *StartupSummary) Print() {
	s.Fprint(os.Stdout)
}

func (s *StartupSummary) Fprint(w io.Writer) {
	title := "启动配置摘要 (STARTUP SUMMARY)"
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "[策略 (STRATEGIES)]")
	fmt.Fprintf(w, "  环境: %s\n", orDash(s.Env))
	fmt.Fprintf(w, "  启用策略(%d): %s\n", len(s.Strategies), formatList(s.Strategies))
	fmt.Fprintf(w, "  保留策略: %s\n", formatList(s.Reserved))
	fmt.Fprintf(w, "  本次初始化: 账本 %d 个, 周期 %d 个\n", len(s.Seeded.LedgersCreated), len(s.Seeded.PeriodsSet))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[行情 (MARKET)]")
	fmt.Fprintf(w, "  数据源: %s\n", orDash(s.DataSource))
	fmt.Fprintf(w, "  市场状态: %s\n", orDash(s.StatusSource))
	if s.Universe.Source == "" || s.Universe.Source == "static" {
		fmt.Fprintf(w, "  标的列表: static %s\n", formatList(s.Universe.Symbols))
	} else {
		fmt.Fprintf(w, "  标的列表: %s\n", s.Universe.Source)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[排名与系数 (RANKING)]")
	fmt.Fprintf(w, "  额外排名周期: %s\n", orDash(s.EpochCron))
	if !s.NextEpoch.IsZero() {
		fmt.Fprintf(w, "  下次触发: %s\n", s.NextEpoch.Format(time.RFC3339))
	}
	if len(s.Curve.Records) == 0 {
		fmt.Fprintln(w, "  系数曲线: (空)")
	} else {
		parts := make([]string, 0, len(s.Curve.Records))
		for _, r := range s.Curve.Records {
			parts = append(parts, fmt.Sprintf("#%d=%s", r.Rank, r.Weight.String()))
		}
		fmt.Fprintf(w, "  系数曲线(v%d): %s\n", s.Curve.Version, strings.Join(parts, " "))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[实盘 (LIVE)]")
	if s.LiveEnabled {
		fmt.Fprintf(w, "  已启用, 券商: %s\n", orDash(s.BrokerKind))
	} else {
		fmt.Fprintln(w, "  未启用 (仅模拟)")
	}
	fmt.Fprintf(w, "  诊断接口: %s\n", orDash(s.HTTPAddr))
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
