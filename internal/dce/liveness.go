package dce

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/tangzhangming/localdce/internal/ir"
	"github.com/tangzhangming/localdce/internal/purity"
)

// ============================================================================
// 活跃性分析
// ============================================================================
//
// 标准的逆向数据流分析：
//   - 每个块维护一个位向量，位 num_regs 表示调用的待取结果
//   - 按后序遍历块，块出口状态是所有后继入口状态的并集
//   - 逆序遍历块内指令：必需指令的源寄存器活跃，目标寄存器被杀死
//   - 任一块的入口状态变化则再做一轮，状态只增不减，必然收敛
//   - try 区域内的每个位置都把异常处理块的入口活跃集合视为活跃
//     （只有可能抛出的指令才会跳到 catch，这里是保守近似）

// SuccsFunc 返回块在本次分析中使用的后继边
type SuccsFunc func(b *ir.Block) []*ir.Edge

// RequiredFunc 调用方附加的必需判定，返回 true 的指令总被保留
type RequiredFunc func(b *ir.Block, inst *ir.Instruction) bool

// AllSuccs 使用块的全部后继边
func AllSuccs(b *ir.Block) []*ir.Edge {
	return b.Succs
}

// Liveness 活跃性分析结果
type Liveness struct {
	numRegs int
	in      map[*ir.Block]*bitset.BitSet
	out     map[*ir.Block]*bitset.BitSet
	sweeps  int
}

// LiveIn 返回块入口的活跃寄存器，未参与分析的块返回 nil
func (l *Liveness) LiveIn(b *ir.Block) *bitset.BitSet {
	return l.in[b]
}

// LiveOut 返回块出口的活跃寄存器
func (l *Liveness) LiveOut(b *ir.Block) *bitset.BitSet {
	return l.out[b]
}

// Sweeps 返回到达不动点所用的遍历轮数（含最后一轮无变化的遍历）
func (l *Liveness) Sweeps() int {
	return l.sweeps
}

// ResultSlot 返回待取结果槽的位号
func (l *Liveness) ResultSlot() uint {
	return uint(l.numRegs)
}

// reason 指令被保留的原因
type reason int

const (
	reasonNone   reason = iota
	reasonEffect        // 固有副作用或非纯调用
	reasonLive          // 结果被使用
	reasonThrow         // try 区域内可能抛出
	reasonCaller        // 调用方判定
)

// analysis 一次活跃性求解
type analysis struct {
	oracle        *purity.Oracle
	blocks        []*ir.Block
	succs         SuccsFunc
	mayBeRequired RequiredFunc
	width         uint
	live          *Liveness
	catchLive     map[*ir.Block]*bitset.BitSet
	guarded       map[*ir.Block]bool

	// trace 每个块每轮结束时调用（测试用）
	trace func(b *ir.Block, in *bitset.BitSet)
}

func newAnalysis(oracle *purity.Oracle, cfg *ir.CFG, blocks []*ir.Block, succs SuccsFunc, mayBeRequired RequiredFunc) *analysis {
	if succs == nil {
		succs = AllSuccs
	}
	a := &analysis{
		oracle:        oracle,
		blocks:        blocks,
		succs:         succs,
		mayBeRequired: mayBeRequired,
		width:         uint(cfg.Registers + 1),
		live: &Liveness{
			numRegs: cfg.Registers,
			in:      make(map[*ir.Block]*bitset.BitSet, len(blocks)),
			out:     make(map[*ir.Block]*bitset.BitSet, len(blocks)),
		},
		catchLive: make(map[*ir.Block]*bitset.BitSet, len(blocks)),
		guarded:   make(map[*ir.Block]bool, len(blocks)),
	}
	for _, b := range blocks {
		for _, e := range succs(b) {
			if e.Kind == ir.EdgeThrow && e.Target.Catch {
				a.guarded[b] = true
				break
			}
		}
	}
	return a
}

func (a *analysis) resultSlot() uint {
	return a.width - 1
}

// solve 迭代直到不动点
func (a *analysis) solve() {
	for _, b := range a.blocks {
		a.live.in[b] = bitset.New(a.width)
		a.live.out[b] = bitset.New(a.width)
		a.catchLive[b] = bitset.New(a.width)
	}

	for {
		a.live.sweeps++
		changed := false
		for _, b := range a.blocks {
			live := a.computeOut(b)
			a.walk(b, live, a.catchLive[b], nil)
			if a.trace != nil {
				a.trace(b, live)
			}
			if !live.Equal(a.live.in[b]) {
				a.live.in[b] = live
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// computeOut 计算块出口状态及其 catch 活跃集合
func (a *analysis) computeOut(b *ir.Block) *bitset.BitSet {
	out := bitset.New(a.width)
	catchLive := bitset.New(a.width)
	for _, e := range a.succs(b) {
		in, ok := a.live.in[e.Target]
		if !ok {
			continue
		}
		out.InPlaceUnion(in)
		if e.Kind == ir.EdgeThrow && e.Target.Catch {
			catchLive.InPlaceUnion(in)
		}
	}
	a.live.out[b] = out.Clone()
	a.catchLive[b] = catchLive
	return out
}

// plainOut 只看非抛出边的出口状态
func (a *analysis) plainOut(b *ir.Block) *bitset.BitSet {
	out := bitset.New(a.width)
	for _, e := range a.succs(b) {
		if e.Kind == ir.EdgeThrow {
			continue
		}
		if in, ok := a.live.in[e.Target]; ok {
			out.InPlaceUnion(in)
		}
	}
	return out
}

// walk 逆序遍历块内指令，live 从出口状态更新为入口状态
func (a *analysis) walk(b *ir.Block, live, catchLive *bitset.BitSet, rec *collector) {
	for i := len(b.Insts) - 1; i >= 0; i-- {
		inst := b.Insts[i]
		required, why := a.classify(b, inst, live)
		if rec != nil {
			rec.visit(b, i, inst, required, why)
			a.transfer(b, i, inst, required, rec.plain)
		}
		a.transfer(b, i, inst, required, live)
		live.InPlaceUnion(catchLive)
	}
}

// transfer 单条指令的传递函数
func (a *analysis) transfer(b *ir.Block, i int, inst *ir.Instruction, required bool, live *bitset.BitSet) {
	if inst.HasDest() {
		live.Clear(uint(inst.Dest))
	}
	if inst.Op.WritesResult() {
		live.Clear(a.resultSlot())
	}
	if required {
		for _, s := range inst.Srcs {
			live.Set(uint(s))
		}
		if inst.Op.ReadsResult() {
			live.Set(a.resultSlot())
		}
		return
	}
	// 被删除的实例调用会换成对接收者的空指针检查
	if needsNullCheck(b, i, inst) {
		live.Set(uint(inst.Receiver()))
	}
}

// liveAfter 返回位置 idx 的指令执行之后的活跃寄存器
func (a *analysis) liveAfter(b *ir.Block, idx int) *bitset.BitSet {
	live := a.live.out[b].Clone()
	catchLive := a.catchLive[b]
	for i := len(b.Insts) - 1; i > idx; i-- {
		inst := b.Insts[i]
		required, _ := a.classify(b, inst, live)
		a.transfer(b, i, inst, required, live)
		live.InPlaceUnion(catchLive)
	}
	return live
}

// collect 在不动点上收集死指令
func (a *analysis) collect() *collector {
	rec := &collector{}
	for _, b := range a.blocks {
		rec.plain = a.plainOut(b)
		a.walk(b, a.live.out[b].Clone(), a.catchLive[b], rec)
	}
	return rec
}

// ============================================================================
// 死指令收集
// ============================================================================

// DeadInstruction 死指令位置
type DeadInstruction struct {
	Block *ir.Block
	Index int
	Inst  *ir.Instruction
}

// position 返回指令当前的位置，已不在块中返回 -1
func (d DeadInstruction) position() int {
	if d.Index >= 0 && d.Index < len(d.Block.Insts) && d.Block.Insts[d.Index] == d.Inst {
		return d.Index
	}
	return d.Block.IndexOf(d.Inst)
}

type collector struct {
	plain         *bitset.BitSet // 不含异常路径的活跃集合
	dead          []DeadInstruction
	exceptionOnly int
}

func (c *collector) visit(b *ir.Block, i int, inst *ir.Instruction, required bool, why reason) {
	switch {
	case !required:
		c.dead = append(c.dead, DeadInstruction{Block: b, Index: i, Inst: inst})
	case why == reasonThrow:
		c.exceptionOnly++
	case why == reasonLive && inst.HasDest() && !c.plain.Test(uint(inst.Dest)):
		c.exceptionOnly++
	}
}
