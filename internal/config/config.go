package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath 是指定配置文件路径的环境变量。
const (
	EnvConfigPath     = "QUORUM_CONFIG"
	DefaultConfigPath = "configs/config.yaml"
)

// 凭据允许通过环境变量覆盖，避免写入配置文件。
var secretEnvBindings = map[string]string{
	"market.alpaca.api_key":     "QUORUM_ALPACA_API_KEY",
	"market.alpaca.api_secret":  "QUORUM_ALPACA_API_SECRET",
	"market.polygon.api_key":    "QUORUM_POLYGON_API_KEY",
	"notify.telegram.bot_token": "QUORUM_TELEGRAM_BOT_TOKEN",
	"notify.telegram.chat_id":   "QUORUM_TELEGRAM_CHAT_ID",
}

// PathFromEnv 返回配置文件路径，未设置时使用默认值。
func PathFromEnv() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load 读取主配置及其 include 链（被包含文件先合并，主文件最后覆盖），
// 叠加环境变量中的凭据，再补默认值并校验。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	r := includeResolver{done: map[string]bool{}, active: map[string]bool{}}
	if err := r.walk(abs); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range r.order {
		part := viper.New()
		part.SetConfigFile(file)
		if err := part.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
		if err := v.MergeConfigMap(part.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging config file failed (%s): %w", file, err)
		}
	}
	for key, env := range secretEnvBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding env %s failed: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	keys := make(keySet)
	markKeys("", v.AllSettings(), keys)
	cfg.applyDefaults(keys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// includeResolver 深度优先展开 include，按合并顺序收集文件并检测环。
type includeResolver struct {
	order  []string
	done   map[string]bool
	active map[string]bool
}

func (r *includeResolver) walk(path string) error {
	path = filepath.Clean(path)
	if r.active[path] {
		return fmt.Errorf("include cycle detected: %s", path)
	}
	if r.done[path] {
		return nil
	}
	includes, err := readIncludes(path)
	if err != nil {
		return fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	r.active[path] = true
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := r.walk(inc); err != nil {
			return err
		}
	}
	delete(r.active, path)
	r.done[path] = true
	r.order = append(r.order, path)
	return nil
}

// readIncludes 只解析文件顶层的 include 字段，接受字符串或字符串数组。
func readIncludes(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Include yaml.Node `yaml:"include"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	node := doc.Include
	var items []string
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		items = []string{node.Value}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("include only supports strings")
			}
			items = append(items, item.Value)
		}
	default:
		return nil, fmt.Errorf("include must be a string or string array")
	}
	out := items[:0]
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

// markKeys 记录配置中出现过的全部叶子路径，显式写出的零值不会被默认值覆盖。
func markKeys(prefix string, node any, dest keySet) {
	switch val := node.(type) {
	case map[string]any:
		for k, child := range val {
			markKeys(joinKey(prefix, k), child, dest)
		}
	case map[any]any:
		for k, child := range val {
			if s, ok := k.(string); ok {
				markKeys(joinKey(prefix, s), child, dest)
			}
		}
	default:
		dest.mark(prefix)
	}
}

func joinKey(prefix, key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if prefix == "" || key == "" {
		return prefix + key
	}
	return prefix + "." + key
}
