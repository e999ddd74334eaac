package ir

import (
	"fmt"
	"strings"
)

// ============================================================================
// 边
// ============================================================================

// EdgeKind 控制流边类型
type EdgeKind int

const (
	EdgeGoto   EdgeKind = iota // 顺序执行或无条件跳转
	EdgeBranch                 // 条件分支 / switch 分支
	EdgeThrow                  // 抛出到异常处理块
	EdgeGhost                  // 合成边（连接到虚拟出口）
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeGoto:
		return "goto"
	case EdgeBranch:
		return "branch"
	case EdgeThrow:
		return "throw"
	case EdgeGhost:
		return "ghost"
	default:
		return fmt.Sprintf("edge(%d)", int(k))
	}
}

// ParseEdgeKind 按名称解析边类型
func ParseEdgeKind(s string) (EdgeKind, bool) {
	switch s {
	case "goto":
		return EdgeGoto, true
	case "branch":
		return EdgeBranch, true
	case "throw":
		return EdgeThrow, true
	case "ghost":
		return EdgeGhost, true
	}
	return 0, false
}

// Edge 控制流边
type Edge struct {
	Kind   EdgeKind
	Src    *Block
	Target *Block
}

// ============================================================================
// 基本块
// ============================================================================

// Block 基本块
type Block struct {
	ID    int
	Insts []*Instruction
	Succs []*Edge
	Preds []*Edge
	Catch bool // 异常处理入口
}

// Append 追加指令
func (b *Block) Append(insts ...*Instruction) {
	b.Insts = append(b.Insts, insts...)
}

// ThrowsToCatch 块是否有抛出边到达异常处理块
func (b *Block) ThrowsToCatch() bool {
	for _, e := range b.Succs {
		if e.Kind == EdgeThrow && e.Target.Catch {
			return true
		}
	}
	return false
}

// IndexOf 返回指令在块内的位置，不存在返回 -1
func (b *Block) IndexOf(inst *Instruction) int {
	for i, x := range b.Insts {
		if x == inst {
			return i
		}
	}
	return -1
}

// BranchTargetsSame 块的 goto/branch 边是否都指向同一个块
func (b *Block) BranchTargetsSame() bool {
	var target *Block
	for _, e := range b.Succs {
		if e.Kind != EdgeGoto && e.Kind != EdgeBranch {
			continue
		}
		if target == nil {
			target = e.Target
		} else if target != e.Target {
			return false
		}
	}
	return true
}

// ============================================================================
// 控制流图
// ============================================================================

// CFG 控制流图
type CFG struct {
	Entry     *Block
	Blocks    []*Block
	Registers int // 寄存器数量，分析期间不变
	blockID   int
}

// NewCFG 创建控制流图
func NewCFG(registers int) *CFG {
	return &CFG{
		Blocks:    make([]*Block, 0),
		Registers: registers,
	}
}

// NewBlock 创建新的基本块，第一个块作为入口
func (cfg *CFG) NewBlock() *Block {
	b := &Block{ID: cfg.blockID}
	cfg.blockID++
	cfg.Blocks = append(cfg.Blocks, b)
	if cfg.Entry == nil {
		cfg.Entry = b
	}
	return b
}

// AddEdge 添加边
func (cfg *CFG) AddEdge(src, target *Block, kind EdgeKind) *Edge {
	e := &Edge{Kind: kind, Src: src, Target: target}
	src.Succs = append(src.Succs, e)
	target.Preds = append(target.Preds, e)
	return e
}

// RemoveEdge 删除边
func (cfg *CFG) RemoveEdge(e *Edge) {
	e.Src.Succs = removeEdge(e.Src.Succs, e)
	e.Target.Preds = removeEdge(e.Target.Preds, e)
}

func removeEdge(edges []*Edge, e *Edge) []*Edge {
	out := edges[:0]
	for _, x := range edges {
		if x != e {
			out = append(out, x)
		}
	}
	return out
}

// Block 按 ID 查找块
func (cfg *CFG) Block(id int) *Block {
	for _, b := range cfg.Blocks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// NumInstructions 返回指令总数
func (cfg *CFG) NumInstructions() int {
	n := 0
	for _, b := range cfg.Blocks {
		n += len(b.Insts)
	}
	return n
}

// ============================================================================
// 遍历
// ============================================================================

type blockAndIndex struct {
	b     *Block
	index int // 已访问的后继边数量
}

// PostOrder 返回从入口可达的块的后序
func (cfg *CFG) PostOrder() []*Block {
	if cfg.Entry == nil {
		return nil
	}
	seen := make(map[*Block]bool, len(cfg.Blocks))
	order := make([]*Block, 0, len(cfg.Blocks))

	s := make([]blockAndIndex, 0, 32)
	s = append(s, blockAndIndex{b: cfg.Entry})
	seen[cfg.Entry] = true
	for len(s) > 0 {
		tos := len(s) - 1
		x := s[tos]
		b := x.b
		if i := x.index; i < len(b.Succs) {
			s[tos].index++
			next := b.Succs[i].Target
			if !seen[next] {
				seen[next] = true
				s = append(s, blockAndIndex{b: next})
			}
			continue
		}
		s = s[:tos]
		order = append(order, b)
	}
	return order
}

// ReachableBlocks 返回从入口可达的块集合
func (cfg *CFG) ReachableBlocks() map[*Block]bool {
	reachable := make(map[*Block]bool, len(cfg.Blocks))
	if cfg.Entry == nil {
		return reachable
	}
	reachable[cfg.Entry] = true
	p := make([]*Block, 0, 64)
	p = append(p, cfg.Entry)
	for len(p) > 0 {
		b := p[len(p)-1]
		p = p[:len(p)-1]
		for _, e := range b.Succs {
			if !reachable[e.Target] {
				reachable[e.Target] = true
				p = append(p, e.Target)
			}
		}
	}
	return reachable
}

// ============================================================================
// 原地修改
// ============================================================================

// RemoveUnreachableBlocks 删除入口不可达的块，返回被删除的指令数
func (cfg *CFG) RemoveUnreachableBlocks() int {
	reachable := cfg.ReachableBlocks()
	removed := 0
	kept := make([]*Block, 0, len(cfg.Blocks))
	for _, b := range cfg.Blocks {
		if reachable[b] {
			kept = append(kept, b)
			continue
		}
		removed += len(b.Insts)
		for _, e := range append([]*Edge(nil), b.Succs...) {
			cfg.RemoveEdge(e)
		}
		for _, e := range append([]*Edge(nil), b.Preds...) {
			cfg.RemoveEdge(e)
		}
	}
	cfg.Blocks = kept
	return removed
}

// RemoveInstruction 删除块内位置 idx 的指令
//
// 删除条件分支时其分支边一并删除；若没有剩余的 goto 边，
// 则把原分支目标改为 goto 边。
func (cfg *CFG) RemoveInstruction(b *Block, idx int) {
	inst := b.Insts[idx]
	b.Insts = append(b.Insts[:idx], b.Insts[idx+1:]...)
	if !inst.Op.IsBranch() {
		return
	}

	var target *Block
	hasGoto := false
	for _, e := range append([]*Edge(nil), b.Succs...) {
		switch e.Kind {
		case EdgeBranch:
			target = e.Target
			cfg.RemoveEdge(e)
		case EdgeGoto:
			hasGoto = true
		}
	}
	if !hasGoto && target != nil {
		cfg.AddEdge(b, target, EdgeGoto)
	}
}

// ReplaceInstruction 替换块内位置 idx 的指令
func (cfg *CFG) ReplaceInstruction(b *Block, idx int, inst *Instruction) {
	b.Insts[idx] = inst
}

// InsertBefore 在位置 idx 之前插入指令
func (cfg *CFG) InsertBefore(b *Block, idx int, insts ...*Instruction) {
	tail := append([]*Instruction(nil), b.Insts[idx:]...)
	b.Insts = append(append(b.Insts[:idx], insts...), tail...)
}

// InsertAfter 在位置 idx 之后插入指令
func (cfg *CFG) InsertAfter(b *Block, idx int, insts ...*Instruction) {
	cfg.InsertBefore(b, idx+1, insts...)
}

// ============================================================================
// 打印
// ============================================================================

// String 返回控制流图的文本形式
func (cfg *CFG) String() string {
	var sb strings.Builder
	for _, b := range cfg.Blocks {
		fmt.Fprintf(&sb, "B%d:", b.ID)
		if b == cfg.Entry {
			sb.WriteString(" (entry)")
		}
		if b.Catch {
			sb.WriteString(" (catch)")
		}
		sb.WriteString("\n")
		for i, inst := range b.Insts {
			fmt.Fprintf(&sb, "%4d: %s\n", i, inst.String())
		}
		for _, e := range b.Succs {
			fmt.Fprintf(&sb, "      -> B%d %s\n", e.Target.ID, e.Kind)
		}
	}
	return sb.String()
}

// ============================================================================
// 方法体
// ============================================================================

// Method 方法体
type Method struct {
	Ref MethodRef
	CFG *CFG
}
