package scheduler

import (
	"strconv"
	"strings"
	"time"
)

var windowUnits = map[byte]time.Duration{
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseIntervalDuration 把 ideal period 窗口（"15m"、"1h"、"1d"、"1w"）换算为单根 K 线时长。
// 大小写与首尾空白不敏感；非法输入返回 (0, false)。
func ParseIntervalDuration(window string) (time.Duration, bool) {
	window = strings.ToLower(strings.TrimSpace(window))
	if len(window) < 2 {
		return 0, false
	}
	unit, ok := windowUnits[window[len(window)-1]]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(window[:len(window)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * unit, true
}
