package notifier

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"quorum/internal/types"

	"github.com/shopspring/decimal"
)

const maxStructuredMessageLen = 3800

// MessageSection 表示通知中的一个段落。
type MessageSection struct {
	Title string
	Lines []string
}

// StructuredMessage 描述统一格式的推送消息。
type StructuredMessage struct {
	Icon      string
	Title     string
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown 生成 Markdown 文本：标题、代码块中的分段列表、页脚与时间。
// 超过 Telegram 长度上限时按字符截断。
func (m StructuredMessage) RenderMarkdown() string {
	var parts []string
	if header := strings.TrimSpace(m.Icon + " " + m.Title); header != "" {
		parts = append(parts, header)
	}
	if block := renderSections(m.Sections); block != "" {
		parts = append(parts, block)
	}
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		parts = append(parts, escapeFence(footer))
	}
	if !m.Timestamp.IsZero() {
		parts = append(parts, "时间："+m.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}
	return truncateRunes(strings.Join(parts, "\n\n"), maxStructuredMessageLen)
}

func renderSections(secs []MessageSection) string {
	var blocks []string
	for _, sec := range secs {
		var b strings.Builder
		if title := strings.TrimSpace(sec.Title); title != "" {
			b.WriteString(escapeFence(title) + "\n")
		}
		n := 0
		for _, line := range sec.Lines {
			if line = strings.TrimSpace(line); line != "" {
				b.WriteString("- " + escapeFence(line) + "\n")
				n++
			}
		}
		if n > 0 {
			blocks = append(blocks, strings.TrimRight(b.String(), "\n"))
		}
	}
	if len(blocks) == 0 {
		return ""
	}
	return "```\n" + strings.Join(blocks, "\n\n") + "\n```"
}

// escapeFence 防止内容提前闭合代码块。
func escapeFence(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "..."
}

// OrderMessage 渲染一笔实盘订单。
func OrderMessage(o types.LiveOrder) StructuredMessage {
	icon := "🟢"
	if o.Side == types.SideSell {
		icon = "🔴"
	}
	lines := []string{
		fmt.Sprintf("标的: %s", o.Instrument),
		fmt.Sprintf("数量: %s @ %s", o.Quantity.String(), o.Price.StringFixed(2)),
		fmt.Sprintf("状态: %s", o.Status),
	}
	if o.BrokerOrderID != "" {
		lines = append(lines, "broker id: "+o.BrokerOrderID)
	}
	return StructuredMessage{
		Icon:      icon,
		Title:     fmt.Sprintf("%s %s", strings.ToUpper(string(o.Side)), o.Instrument),
		Sections:  []MessageSection{{Title: o.Reason, Lines: lines}},
		Timestamp: o.CreatedAt,
	}
}

// SnapshotMessage 渲染周期结束时的组合收益。
func SnapshotMessage(s types.PortfolioSnapshot) StructuredMessage {
	return StructuredMessage{
		Icon:  "📊",
		Title: "portfolio",
		Sections: []MessageSection{{Lines: []string{
			"value: " + s.PortfolioValue.StringFixed(2),
			"cash: " + s.Cash.StringFixed(2),
			"return: " + s.ReturnPct.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%",
		}}},
		Timestamp: s.CreatedAt,
	}
}
