// Package seed 为新注册的策略初始化模拟账本、积分与 ideal period。
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quorum/internal/config"
	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/store"
	"quorum/internal/strategy"
	"quorum/internal/types"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var seedLog = logger.Named("seed")

const seedSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "defaults": {"$ref": "#/$defs/entry"},
    "strategies": {
      "type": "object",
      "additionalProperties": {"$ref": "#/$defs/entry"}
    }
  },
  "$defs": {
    "entry": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "initial_cash": {"type": "number", "exclusiveMinimum": 0},
        "window": {"type": "string", "pattern": "^([0-9]+[mhdw])?$"},
        "sample_instrument": {"type": "string"}
      }
    }
  }
}`

// Entry 是单个策略（或默认值）的种子参数。
type Entry struct {
	InitialCash     float64 `yaml:"initial_cash"`
	Window          string  `yaml:"window"`
	SampleInstrument string  `yaml:"sample_instrument"`
}

// File 映射 strategies.yaml。
type File struct {
	Defaults   Entry            `yaml:"defaults"`
	Strategies map[string]Entry `yaml:"strategies"`
}

func (f File) entry(id string) Entry {
	e := f.Strategies[id]
	if e.InitialCash <= 0 {
		e.InitialCash = f.Defaults.InitialCash
	}
	if e.Window == "" {
		e.Window = f.Defaults.Window
	}
	if e.SampleInstrument == "" {
		e.SampleInstrument = f.Defaults.SampleInstrument
	}
	return e
}

// Load 读取并校验种子文件；文件不存在时返回空 File。
func Load(path string) (File, error) {
	var f File
	path = strings.TrimSpace(path)
	if path == "" {
		return f, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		seedLog.Warnf("seed file %s not found, using config defaults", path)
		return f, nil
	}
	if err != nil {
		return f, fmt.Errorf("read seed file: %w", err)
	}
	if err := validate(raw); err != nil {
		return f, fmt.Errorf("seed file %s: %w", filepath.Base(path), err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return f, fmt.Errorf("parse seed file: %w", err)
	}
	normalized := make(map[string]Entry, len(f.Strategies))
	for id, e := range f.Strategies {
		normalized[config.NormalizeStrategyID(id)] = e
	}
	f.Strategies = normalized
	return f, nil
}

func validate(raw []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("seed.json", strings.NewReader(seedSchema)); err != nil {
		return err
	}
	schema, err := compiler.Compile("seed.json")
	if err != nil {
		return err
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return nil
	}
	buf, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("yaml to json: %w", err)
	}
	var value any
	if err := json.Unmarshal(buf, &value); err != nil {
		return err
	}
	return schema.Validate(value)
}

// Report 汇总一次 Seed 的结果。
type Report struct {
	LedgersCreated []string
	PeriodsSet     map[string]string
}

// Seeder 只补齐缺失的记录，已存在的账本与周期不会被覆盖。
type Seeder struct {
	store        store.Store
	history      market.HistoryProvider
	file         File
	initialCash  decimal.Decimal
	initialDelta decimal.Decimal
	now          func() time.Time
}

func NewSeeder(st store.Store, history market.HistoryProvider, file File, sim config.SimulationConfig) *Seeder {
	return &Seeder{
		store:        st,
		history:      history,
		file:         file,
		initialCash:  config.Dec(sim.InitialCash),
		initialDelta: config.Dec(sim.InitialTimeDelta),
		now:          time.Now,
	}
}

// Seed 为 ids 中每个策略确保账本、积分与 ideal period 存在，并初始化 TimeDelta。
// 没有配置 window 的策略用 SelectPeriod 在样本标的上挑选周期，每个样本标的只计算一次。
func (s *Seeder) Seed(ctx context.Context, ids []string) (Report, error) {
	report := Report{PeriodsSet: make(map[string]string)}
	if err := s.store.TimeDelta().Ensure(ctx, s.initialDelta); err != nil {
		return report, storeErr("ensure time delta", err)
	}
	selected := make(map[string]string)
	for _, raw := range ids {
		id := config.NormalizeStrategyID(raw)
		if id == "" {
			continue
		}
		entry := s.file.entry(id)
		cash := s.initialCash
		if entry.InitialCash > 0 {
			cash = config.Dec(entry.InitialCash)
		}
		created, err := s.store.Ledgers().Create(ctx, types.Ledger{
			StrategyID:     id,
			Cash:           cash,
			PortfolioValue: cash,
			Holdings:       map[string]types.Holding{},
			UpdatedAt:      s.now(),
		})
		if err != nil {
			return report, storeErr("create ledger "+id, err)
		}
		if created {
			report.LedgersCreated = append(report.LedgersCreated, id)
		}
		if err := s.store.Points().Ensure(ctx, id, decimal.Zero); err != nil {
			return report, storeErr("ensure points "+id, err)
		}
		_, err = s.store.IdealPeriods().Get(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return report, storeErr("read ideal period "+id, err)
		}
		window := strings.ToLower(strings.TrimSpace(entry.Window))
		if window == "" {
			window = s.selectPeriod(ctx, entry.SampleInstrument, selected)
		}
		if err := s.store.IdealPeriods().Upsert(ctx, types.IdealPeriodRecord{StrategyID: id, Window: window}); err != nil {
			return report, storeErr("write ideal period "+id, err)
		}
		report.PeriodsSet[id] = window
	}
	seedLog.Infof("seeded %d strategies: %d new ledgers, %d new ideal periods", len(ids), len(report.LedgersCreated), len(report.PeriodsSet))
	return report, nil
}

func (s *Seeder) selectPeriod(ctx context.Context, sample string, cache map[string]string) string {
	sample = strings.ToUpper(strings.TrimSpace(sample))
	if w, ok := cache[sample]; ok {
		return w
	}
	w := strategy.FallbackPeriod
	if sample != "" && s.history != nil {
		w = strategy.SelectPeriod(ctx, s.history, sample, strategy.DefaultPeriods)
	}
	cache[sample] = w
	return w
}

func storeErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", types.ErrStoreUnavailable, what, err)
}
