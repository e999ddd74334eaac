// Package dce 实现方法内（局部）死代码消除
//
// 基于逆向活跃性分析删除结果从不被使用且没有副作用的指令，
// 删除入口不可达的块，并规范化 new-instance 与构造调用之间的寄存器别名。
// 调用的副作用由 purity.Oracle 判定。
package dce

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tangzhangming/localdce/internal/ir"
	"github.com/tangzhangming/localdce/internal/purity"
)

// LocalDce 局部死代码消除
//
// 一个实例不能被多个 goroutine 同时使用；统计在实例内累计。
// 纯方法集合与覆写图只读，可以被多个实例共享。
type LocalDce struct {
	oracle               *purity.Oracle
	mayAllocateRegisters bool
	logger               *zap.Logger
	stats                Stats
}

// Option 配置项
type Option func(*LocalDce)

// WithMayAllocateRegisters 允许在规范化时插入新的寄存器赋值
func WithMayAllocateRegisters(v bool) Option {
	return func(d *LocalDce) {
		d.mayAllocateRegisters = v
	}
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(d *LocalDce) {
		if l != nil {
			d.logger = l
		}
	}
}

// New 创建局部死代码消除，overrides 为 nil 时虚调用只看声明目标
func New(pure purity.MethodSet, overrides *purity.OverrideGraph, opts ...Option) *LocalDce {
	d := &LocalDce{
		oracle: purity.NewOracle(pure, overrides),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name 返回 pass 名称
func (d *LocalDce) Name() string {
	return "local-dce"
}

// Run 对方法运行一次，返回是否修改了方法体
func (d *LocalDce) Run(m *ir.Method) (bool, error) {
	if m == nil || m.CFG == nil {
		return false, nil
	}
	return d.dce(m.CFG, string(m.Ref))
}

// Stats 返回累计统计
func (d *LocalDce) Stats() Stats {
	return d.stats
}

// DceMethod 对方法体做死代码消除
func (d *LocalDce) DceMethod(m *ir.Method) error {
	if m == nil || m.CFG == nil {
		return nil
	}
	_, err := d.dce(m.CFG, string(m.Ref))
	return err
}

// Dce 对控制流图做死代码消除
func (d *LocalDce) Dce(cfg *ir.CFG) error {
	_, err := d.dce(cfg, "")
	return err
}

// dce 执行完整流程，返回是否修改了图
func (d *LocalDce) dce(cfg *ir.CFG, name string) (bool, error) {
	if err := ir.Verify(cfg); err != nil {
		return false, fmt.Errorf("local dce %s: %w", name, err)
	}

	var stats Stats
	blocks := len(cfg.Blocks)
	stats.UnreachableInstructions += cfg.RemoveUnreachableBlocks()
	exceptionOnly := d.removeDeadInstructions(cfg, &stats)
	stats.UnreachableInstructions += cfg.RemoveUnreachableBlocks()

	normalized := d.normalizeNewInstances(cfg, &stats)
	if normalized {
		exceptionOnly = d.removeDeadInstructions(cfg, &stats)
		stats.UnreachableInstructions += cfg.RemoveUnreachableBlocks()
	}
	stats.NpeInstructions += exceptionOnly

	changed := normalized ||
		stats.DeadInstructions > 0 ||
		stats.UnreachableInstructions > 0 ||
		len(cfg.Blocks) != blocks

	d.stats.Merge(stats)
	d.logger.Debug("local dce done",
		zap.String("method", name),
		zap.Int("dead", stats.DeadInstructions),
		zap.Int("unreachable", stats.UnreachableInstructions),
		zap.Int("npe", stats.NpeInstructions),
		zap.Int("aliased", stats.AliasedNewInstances),
		zap.Int("normalized", stats.NormalizedNewInstances),
		zap.Bool("changed", changed))
	return changed, nil
}

// removeDeadInstructions 删除一轮死指令，返回仅因异常语义保留的指令数
func (d *LocalDce) removeDeadInstructions(cfg *ir.CFG, stats *Stats) int {
	a := newAnalysis(d.oracle, cfg, cfg.PostOrder(), AllSuccs, nil)
	a.solve()
	rec := a.collect()

	for _, dead := range rec.dead {
		idx := dead.position()
		if idx < 0 {
			continue
		}
		if needsNullCheck(dead.Block, idx, dead.Inst) {
			cfg.ReplaceInstruction(dead.Block, idx, ir.NewCheckNull(dead.Inst.Receiver()))
			stats.NpeInstructions++
		} else {
			cfg.RemoveInstruction(dead.Block, idx)
		}
		stats.DeadInstructions++
	}
	return rec.exceptionOnly
}

// GetDeadInstructions 计算死指令但不修改图
//
// blocks 决定求解顺序，通常是后序；succs 为 nil 时使用块的全部后继边。
// mayBeRequired 返回 true 的指令一律视为必需。结果按 blocks 的顺序排列，
// 块内按位置从大到小排列。
func (d *LocalDce) GetDeadInstructions(cfg *ir.CFG, blocks []*ir.Block, succs SuccsFunc, mayBeRequired RequiredFunc) ([]DeadInstruction, error) {
	a, err := d.analyze(cfg, blocks, succs, mayBeRequired)
	if err != nil {
		return nil, err
	}
	return a.collect().dead, nil
}

// Liveness 求解活跃性，参数含义同 GetDeadInstructions
func (d *LocalDce) Liveness(cfg *ir.CFG, blocks []*ir.Block, succs SuccsFunc, mayBeRequired RequiredFunc) (*Liveness, error) {
	a, err := d.analyze(cfg, blocks, succs, mayBeRequired)
	if err != nil {
		return nil, err
	}
	return a.live, nil
}

func (d *LocalDce) analyze(cfg *ir.CFG, blocks []*ir.Block, succs SuccsFunc, mayBeRequired RequiredFunc) (*analysis, error) {
	if err := ir.Verify(cfg); err != nil {
		return nil, fmt.Errorf("local dce: %w", err)
	}
	if blocks == nil {
		blocks = cfg.PostOrder()
	}
	a := newAnalysis(d.oracle, cfg, blocks, succs, mayBeRequired)
	a.solve()
	return a, nil
}
