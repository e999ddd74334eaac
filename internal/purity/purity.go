// Package purity 判断方法调用是否可以视为没有可观察副作用
//
// 纯方法集合与覆写图在一次编译会话内构建一次，之后只读，
// 可以在多个并发的分析之间共享。
package purity

import (
	"sort"

	"github.com/tangzhangming/localdce/internal/ir"
)

// ============================================================================
// 纯方法集合
// ============================================================================

// MethodSet 纯方法集合
//
// 集合中的方法除接收者为空时抛出 NPE 外，不产生任何可观察的副作用。
type MethodSet map[ir.MethodRef]struct{}

// NewMethodSet 创建纯方法集合
func NewMethodSet(refs ...ir.MethodRef) MethodSet {
	s := make(MethodSet, len(refs))
	for _, r := range refs {
		s[r] = struct{}{}
	}
	return s
}

// Add 添加方法
func (s MethodSet) Add(ref ir.MethodRef) {
	s[ref] = struct{}{}
}

// Contains 判断方法是否在集合中
func (s MethodSet) Contains(ref ir.MethodRef) bool {
	_, ok := s[ref]
	return ok
}

// ============================================================================
// 覆写图
// ============================================================================

// OverrideGraph 虚方法到其覆写方法的映射
type OverrideGraph struct {
	overriders map[ir.MethodRef][]ir.MethodRef
	open       map[ir.MethodRef]bool // 覆写集合不完全已知
}

// NewOverrideGraph 创建覆写图
func NewOverrideGraph() *OverrideGraph {
	return &OverrideGraph{
		overriders: make(map[ir.MethodRef][]ir.MethodRef),
		open:       make(map[ir.MethodRef]bool),
	}
}

// AddOverride 记录 overrider 直接覆写 base
func (g *OverrideGraph) AddOverride(base, overrider ir.MethodRef) {
	for _, o := range g.overriders[base] {
		if o == overrider {
			return
		}
	}
	g.overriders[base] = append(g.overriders[base], overrider)
}

// MarkOpen 标记方法可能被图外的代码覆写
func (g *OverrideGraph) MarkOpen(ref ir.MethodRef) {
	g.open[ref] = true
}

// Overriders 返回所有可能在运行时替代 ref 被调用的方法（传递闭包，已排序）
func (g *OverrideGraph) Overriders(ref ir.MethodRef) []ir.MethodRef {
	seen := map[ir.MethodRef]bool{ref: true}
	var out []ir.MethodRef
	stack := []ir.MethodRef{ref}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, o := range g.overriders[cur] {
			if seen[o] {
				continue
			}
			seen[o] = true
			out = append(out, o)
			stack = append(stack, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsOpen 判断 ref 或其任一覆写方法是否可能被未知代码覆写
func (g *OverrideGraph) IsOpen(ref ir.MethodRef) bool {
	if g.open[ref] {
		return true
	}
	for _, o := range g.Overriders(ref) {
		if g.open[o] {
			return true
		}
	}
	return false
}

// ============================================================================
// 纯度判定
// ============================================================================

// Oracle 纯度判定器
type Oracle struct {
	pure      MethodSet
	overrides *OverrideGraph // 可为 nil，表示不扩展虚调用纯度
}

// NewOracle 创建纯度判定器
func NewOracle(pure MethodSet, overrides *OverrideGraph) *Oracle {
	if pure == nil {
		pure = MethodSet{}
	}
	return &Oracle{pure: pure, overrides: overrides}
}

// IsSideEffectFree 判断调用指令是否没有可观察副作用
func (o *Oracle) IsSideEffectFree(inst *ir.Instruction) bool {
	if !inst.Op.IsInvoke() || !o.pure.Contains(inst.Method) {
		return false
	}
	if !inst.Op.IsVirtualInvoke() || o.overrides == nil {
		return true
	}
	if o.overrides.IsOpen(inst.Method) {
		return false
	}
	for _, m := range o.overrides.Overriders(inst.Method) {
		if !o.pure.Contains(m) {
			return false
		}
	}
	return true
}

// HasOverrideGraph 是否配置了覆写图
func (o *Oracle) HasOverrideGraph() bool {
	return o.overrides != nil
}
