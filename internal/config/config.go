// Package config 加载局部死代码消除的会话配置
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/tangzhangming/localdce/internal/ir"
	"github.com/tangzhangming/localdce/internal/purity"
)

// 常量定义
const (
	ConfigFileName = "localdce.toml" // 配置文件名
)

// Config 会话配置
type Config struct {
	// MayAllocateRegisters 规范化时是否允许插入新的寄存器赋值
	MayAllocateRegisters bool `toml:"may_allocate_registers"`

	Purity    PurityConfig   `toml:"purity"`
	Overrides OverrideConfig `toml:"overrides"`
	Log       LogConfig      `toml:"log"`
	Batch     BatchConfig    `toml:"batch"`
}

// PurityConfig 纯方法配置
type PurityConfig struct {
	// Methods 没有可观察副作用的方法，形如 "Ljava/lang/Math;.abs:(I)I"
	Methods []string `toml:"methods"`
}

// OverrideConfig 覆写关系配置
type OverrideConfig struct {
	// Open 可能被未知代码覆写的方法
	Open []string `toml:"open"`

	// Graph 方法 -> 直接覆写它的方法
	Graph map[string][]string `toml:"graph"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `toml:"level"` // debug/info/warn/error
	File  string `toml:"file"`  // 为空时输出到 stderr
}

// BatchConfig 批处理配置
type BatchConfig struct {
	Workers       int `toml:"workers"`        // 0 表示使用 CPU 数量
	MaxIterations int `toml:"max_iterations"` // 每个方法最多运行的轮数，0 表示一轮
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
	}
}

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse 解析配置内容，未出现的键保持默认值
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置，返回所有问题
func (c *Config) Validate() error {
	var errs error
	checkRef := func(where, s string) {
		if !methodRef(s).Valid() {
			errs = multierr.Append(errs, fmt.Errorf("%s: 无效的方法引用 %q", where, s))
		}
	}

	for _, m := range c.Purity.Methods {
		checkRef("purity.methods", m)
	}
	for _, m := range c.Overrides.Open {
		checkRef("overrides.open", m)
	}
	for _, base := range sortedKeys(c.Overrides.Graph) {
		checkRef("overrides.graph", base)
		for _, o := range c.Overrides.Graph[base] {
			checkRef("overrides.graph."+base, o)
		}
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("log.level: 未知的日志级别 %q", c.Log.Level))
	}
	if c.Batch.Workers < 0 {
		errs = multierr.Append(errs, fmt.Errorf("batch.workers: 不能为负数 (%d)", c.Batch.Workers))
	}
	if c.Batch.MaxIterations < 0 {
		errs = multierr.Append(errs, fmt.Errorf("batch.max_iterations: 不能为负数 (%d)", c.Batch.MaxIterations))
	}
	return errs
}

// Save 保存配置到文件
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// PureSet 返回纯方法集合
func (c *Config) PureSet() purity.MethodSet {
	s := purity.NewMethodSet()
	for _, m := range c.Purity.Methods {
		s.Add(methodRef(m))
	}
	return s
}

// OverrideGraph 返回覆写图；没有配置任何覆写关系时返回 nil
func (c *Config) OverrideGraph() *purity.OverrideGraph {
	if len(c.Overrides.Graph) == 0 && len(c.Overrides.Open) == 0 {
		return nil
	}
	g := purity.NewOverrideGraph()
	for base, overriders := range c.Overrides.Graph {
		for _, o := range overriders {
			g.AddOverride(methodRef(base), methodRef(o))
		}
	}
	for _, m := range c.Overrides.Open {
		g.MarkOpen(methodRef(m))
	}
	return g
}

// Workers 返回实际使用的工作协程数量
func (c *Config) Workers() int {
	if c.Batch.Workers > 0 {
		return c.Batch.Workers
	}
	return runtime.NumCPU()
}

// methodRef 去掉首尾空白，校验与构建使用同一形式
func methodRef(s string) ir.MethodRef {
	return ir.MethodRef(strings.TrimSpace(s))
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FindConfigFile 从指定路径向上查找配置文件
// 返回配置文件的完整路径，如果找不到则返回空字符串
func FindConfigFile(startPath string) string {
	info, err := os.Stat(startPath)
	if err != nil {
		return ""
	}

	dir := startPath
	if !info.IsDir() {
		dir = filepath.Dir(startPath)
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
