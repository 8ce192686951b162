package config

import "strings"

// NormalizeStrategyID 统一策略标识：去空白、转小写。
func NormalizeStrategyID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// ReservedSet 返回保留策略标识集合。
func (s StrategiesConfig) ReservedSet() map[string]struct{} {
	out := make(map[string]struct{}, len(s.Reserved))
	for _, id := range s.Reserved {
		id = NormalizeStrategyID(id)
		if id == "" {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}

// IsReserved reports whether id is a reserved (fixture) strategy.
func (s StrategiesConfig) IsReserved(id string) bool {
	_, ok := s.ReservedSet()[NormalizeStrategyID(id)]
	return ok
}

// EnabledSet 返回显式启用的策略；nil 表示全部启用。
func (s StrategiesConfig) EnabledSet() map[string]struct{} {
	if len(s.Enabled) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(s.Enabled))
	for _, id := range s.Enabled {
		id = NormalizeStrategyID(id)
		if id == "" {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}
