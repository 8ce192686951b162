package coefficient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"quorum/internal/logger"
	"quorum/internal/store"
	"quorum/internal/types"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var curveLog = logger.Named("coefficient")

const curveSchema = `{
  "type": "object",
  "required": ["coefficients"],
  "additionalProperties": false,
  "properties": {
    "description": {"type": "string"},
    "coefficients": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["rank", "weight"],
        "additionalProperties": false,
        "properties": {
          "rank": {"type": "integer", "minimum": 1},
          "weight": {"type": "number", "minimum": 0}
        }
      }
    }
  }
}`

// Point 是曲线上的一个点。
type Point struct {
	Rank   int     `yaml:"rank"`
	Weight float64 `yaml:"weight"`
}

// FileConfig 映射系数曲线文件。
type FileConfig struct {
	Description  string  `yaml:"description"`
	Coefficients []Point `yaml:"coefficients"`
}

// CurveSnapshot 是当前生效的曲线。
type CurveSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Records  []types.CoefficientRecord
}

// ChangeListener 在曲线重载并写库后触发。
type ChangeListener func(CurveSnapshot)

// Curve 管理可调的名次→权重曲线文件，每次加载后同步到 rank_coefficients。
type Curve struct {
	path   string
	store  store.Store
	schema *jsonschema.Schema
	v      *viper.Viper

	mu        sync.RWMutex
	snapshot  CurveSnapshot
	listeners []ChangeListener
}

// NewCurve 读取并校验曲线文件，写入存储。
func NewCurve(ctx context.Context, path string, st store.Store) (*Curve, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("coefficient curve requires path")
	}
	schema, err := compileSchema(curveSchema)
	if err != nil {
		return nil, fmt.Errorf("compile coefficient schema: %w", err)
	}
	c := &Curve{path: path, store: st, schema: schema}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Watch 监听文件变化并自动重载；重载失败时保留上一版曲线。
func (c *Curve) Watch(ctx context.Context) error {
	v := viper.New()
	v.SetConfigFile(c.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read coefficient curve failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		if err := c.Reload(ctx); err != nil {
			curveLog.Errorf("coefficient curve reload failed (%s): %v", evt.Op, err)
			return
		}
		c.notifyListeners()
	})
	v.WatchConfig()
	c.v = v
	return nil
}

// OnChange 注册重载回调。
func (c *Curve) OnChange(fn ChangeListener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Curve) Snapshot() CurveSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSnapshot(c.snapshot)
}

// Reload 重新读取文件，校验通过后在一个事务中替换系数表。
func (c *Curve) Reload(ctx context.Context) error {
	records, err := c.read()
	if err != nil {
		return err
	}
	err = store.WithinTx(ctx, c.store, func(uow store.UnitOfWork) error {
		return uow.Coefficients().Replace(ctx, records)
	})
	if err != nil {
		return fmt.Errorf("%w: sync coefficients: %v", types.ErrStoreUnavailable, err)
	}
	c.mu.Lock()
	c.snapshot = CurveSnapshot{
		Version:  c.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Records:  records,
	}
	c.mu.Unlock()
	curveLog.Infof("coefficient curve loaded %d ranks from %s", len(records), filepath.Base(c.path))
	return nil
}

func (c *Curve) read() ([]types.CoefficientRecord, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read coefficient curve failed: %w", err)
	}
	if err := validateDocument(c.schema, raw); err != nil {
		return nil, fmt.Errorf("coefficient curve %s: %w", filepath.Base(c.path), err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse coefficient curve failed: %w", err)
	}
	return normalizeCurve(cfg.Coefficients)
}

// normalizeCurve 按名次排序并要求名次唯一、权重单调不增。
func normalizeCurve(points []Point) ([]types.CoefficientRecord, error) {
	sorted := append([]Point(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })
	out := make([]types.CoefficientRecord, 0, len(sorted))
	for i, p := range sorted {
		if i > 0 {
			prev := sorted[i-1]
			if p.Rank == prev.Rank {
				return nil, fmt.Errorf("duplicate rank %d", p.Rank)
			}
			if p.Weight > prev.Weight {
				return nil, fmt.Errorf("weight for rank %d (%v) exceeds rank %d (%v)", p.Rank, p.Weight, prev.Rank, prev.Weight)
			}
		}
		out = append(out, types.CoefficientRecord{Rank: p.Rank, Weight: decimal.NewFromFloat(p.Weight)})
	}
	return out, nil
}

func (c *Curve) notifyListeners() {
	c.mu.RLock()
	snap := cloneSnapshot(c.snapshot)
	listeners := append([]ChangeListener(nil), c.listeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer safeRecover("coefficient listener")
			cb(snap)
		}(fn)
	}
}

func cloneSnapshot(src CurveSnapshot) CurveSnapshot {
	dst := src
	dst.Records = append([]types.CoefficientRecord(nil), src.Records...)
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		curveLog.Errorf("%s panic: %v", tag, r)
	}
}

func compileSchema(doc string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("curve.json", strings.NewReader(doc)); err != nil {
		return nil, err
	}
	return compiler.Compile("curve.json")
}

// validateDocument 把 YAML 转成 JSON 值再做 schema 校验。
func validateDocument(schema *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
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
