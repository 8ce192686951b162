package logger

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
)

var (
	journalMu  sync.Mutex
	journalLog *log.Logger
)

// SetJournalWriter 设置成交流水的独立输出；nil 表示关闭。
func SetJournalWriter(w io.Writer) {
	journalMu.Lock()
	defer journalMu.Unlock()
	if w == nil {
		journalLog = nil
		return
	}
	journalLog = log.New(w, "", log.LstdFlags)
}

// Journal 记录一条成交/决策流水，同时写入主日志（info）。
// kind 如 "sim"、"live"；fields 以 key=value 形式追加。
func Journal(kind string, fields map[string]any) {
	line := formatJournal(kind, fields)
	Infof("%s", line)
	journalMu.Lock()
	l := journalLog
	journalMu.Unlock()
	if l == nil {
		return
	}
	l.Println(line)
}

func formatJournal(kind string, fields map[string]any) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strings.ToUpper(strings.TrimSpace(kind)))
	b.WriteString("]")
	for _, key := range sortedKeys(fields) {
		fmt.Fprintf(&b, " %s=%v", key, fields[key])
	}
	return b.String()
}

func sortedKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
