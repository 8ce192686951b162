// Package visual 用 go-echarts 渲染策略排行榜与实盘收益曲线。
package visual

import (
	"fmt"
	"io"
	"sort"
	"time"

	"quorum/internal/types"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	chartTypes "github.com/go-echarts/go-echarts/v2/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorValue         = "#3b82f6"
	colorReturn        = "#fbbf24"

	chartWidthPx  = 1400
	chartHeightPx = 420
)

// Row 是排行榜上的一行。
type Row struct {
	Rank           int
	StrategyID     string
	PortfolioValue float64
	Points         float64
	Cash           float64
}

// Rows 按名次合并排名、账本与积分；缺少账本的名次仍保留（市值为 0）。
func Rows(ranks []types.RankRecord, ledgers []types.Ledger, points []types.PointsRecord) []Row {
	byLedger := make(map[string]types.Ledger, len(ledgers))
	for _, l := range ledgers {
		byLedger[l.StrategyID] = l
	}
	byPoints := make(map[string]types.PointsRecord, len(points))
	for _, p := range points {
		byPoints[p.StrategyID] = p
	}
	out := make([]Row, 0, len(ranks))
	for _, r := range ranks {
		l := byLedger[r.StrategyID]
		out = append(out, Row{
			Rank:           r.Rank,
			StrategyID:     r.StrategyID,
			PortfolioValue: l.PortfolioValue.InexactFloat64(),
			Cash:           l.Cash.InexactFloat64(),
			Points:         byPoints[r.StrategyID].TotalPoints.InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

func initOpts() opts.Initialization {
	return opts.Initialization{
		PageTitle:       "quorum leaderboard",
		Theme:           chartTypes.ThemeWesteros,
		Width:           fmt.Sprintf("%dpx", chartWidthPx),
		Height:          fmt.Sprintf("%dpx", chartHeightPx),
		BackgroundColor: colorBackground,
	}
}

func title(text, sub string) opts.Title {
	return opts.Title{
		Title:         text,
		Subtitle:      sub,
		Left:          "left",
		TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
		SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
	}
}

func buildValueChart(rows []Row) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts()),
		charts.WithTitleOpts(title("Strategy leaderboard", fmt.Sprintf("%d ranked strategies", len(rows)))),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary, Rotate: 30},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	x := make([]string, len(rows))
	values := make([]opts.BarData, len(rows))
	cash := make([]opts.BarData, len(rows))
	for i, r := range rows {
		x[i] = fmt.Sprintf("#%d %s", r.Rank, r.StrategyID)
		values[i] = opts.BarData{Value: r.PortfolioValue, ItemStyle: &opts.ItemStyle{Color: colorValue}}
		cash[i] = opts.BarData{Value: r.Cash, ItemStyle: &opts.ItemStyle{Color: colorTextSecondary, Opacity: opts.Float(0.6)}}
	}
	bar.SetXAxis(x)
	bar.AddSeries("Portfolio value", values)
	bar.AddSeries("Cash", cash)
	return bar
}

func buildPointsChart(rows []Row) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts()),
		charts.WithTitleOpts(title("Points", "")),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(opts.YAxis{AxisLabel: &opts.AxisLabel{Color: colorTextSecondary}}),
	)
	x := make([]string, len(rows))
	data := make([]opts.BarData, len(rows))
	for i, r := range rows {
		x[i] = r.StrategyID
		color := colorBull
		if r.Points < 0 {
			color = colorBear
		}
		data[i] = opts.BarData{Value: r.Points, ItemStyle: &opts.ItemStyle{Color: color}}
	}
	bar.SetXAxis(x)
	bar.AddSeries("Points", data)
	return bar
}

// buildReturnChart 画实盘组合相对基准的收益（百分比），snaps 可为任意顺序。
func buildReturnChart(snaps []types.PortfolioSnapshot) *charts.Line {
	ordered := append([]types.PortfolioSnapshot(nil), snaps...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].CreatedAt.Before(ordered[j].CreatedAt) })
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts()),
		charts.WithTitleOpts(title("Live return vs baseline", "%")),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Color: colorTextSecondary}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true), AxisLabel: &opts.AxisLabel{Color: colorTextSecondary}}),
	)
	x := make([]string, len(ordered))
	data := make([]opts.LineData, len(ordered))
	for i, s := range ordered {
		x[i] = s.CreatedAt.UTC().Format(time.DateTime)
		data[i] = opts.LineData{Value: s.ReturnPct.Mul(hundred).Round(2).InexactFloat64()}
	}
	line.SetXAxis(x)
	line.AddSeries("Return %", data,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorReturn, Width: 2}),
	)
	return line
}

// RenderLeaderboard 把排行榜与收益曲线写成一个 HTML 页面。
func RenderLeaderboard(w io.Writer, rows []Row, snaps []types.PortfolioSnapshot) error {
	page := components.NewPage()
	page.PageTitle = "quorum leaderboard"
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(buildValueChart(rows), buildPointsChart(rows))
	if len(snaps) > 0 {
		page.AddCharts(buildReturnChart(snaps))
	}
	return page.Render(w)
}
