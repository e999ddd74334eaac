package dce

import (
	"sort"

	"go.uber.org/zap"

	"github.com/tangzhangming/localdce/internal/ir"
)

// ============================================================================
// new-instance 规范化
// ============================================================================
//
// 让构造调用的接收者寄存器就是分配指令的目标寄存器：
//
//	r0 = new-instance LFoo;          r1 = new-instance LFoo;
//	r1 = move-object r0      =>      invoke-direct LFoo;.<init>:()V r1
//	invoke-direct LFoo;.<init>:()V r1
//
// 分配被移动到构造调用之前，中间的别名传送被删除。
// 构造之后仍被使用的其他别名会在构造调用后重新赋值，
// 这需要允许分配寄存器。

// newInstanceSite 一处可规范化的分配/构造对
type newInstanceSite struct {
	block   *ir.Block
	alloc   int   // 分配指令位置
	ctor    int   // 构造调用位置
	chain   []int // 别名传送指令位置
	aliases []int // 构造调用处持有该对象的寄存器
}

// normalizeNewInstances 规范化所有安全的分配，返回是否修改了图
func (d *LocalDce) normalizeNewInstances(cfg *ir.CFG, stats *Stats) bool {
	seen := make(map[*ir.Instruction]bool)
	changed := false
	for {
		a := newAnalysis(d.oracle, cfg, cfg.PostOrder(), AllSuccs, nil)
		a.solve()
		site, moves := d.nextNewInstanceSite(a, seen, stats)
		if site == nil {
			return changed
		}
		d.rewriteNewInstance(cfg, site, moves)
		stats.NormalizedNewInstances++
		changed = true
	}
}

// nextNewInstanceSite 找到下一处可以安全改写的构造调用
//
// 返回的 moves 是构造之后需要从接收者重新赋值的寄存器。
func (d *LocalDce) nextNewInstanceSite(a *analysis, seen map[*ir.Instruction]bool, stats *Stats) (*newInstanceSite, []int) {
	for _, b := range a.blocks {
		for k, inst := range b.Insts {
			if seen[inst] || !isConstructorCall(inst) {
				continue
			}
			seen[inst] = true

			site := findNewInstance(b, k)
			if site == nil {
				continue
			}
			recv := inst.Receiver()
			if b.Insts[site.alloc].Dest == recv {
				continue
			}
			stats.AliasedNewInstances++

			moves, ok := d.checkNewInstanceSite(a, site)
			if !ok {
				d.logger.Debug("skip aliased new-instance",
					zap.Int("block", b.ID), zap.Int("index", k))
				continue
			}
			return site, moves
		}
	}
	return nil, nil
}

func isConstructorCall(inst *ir.Instruction) bool {
	return inst.Op == ir.OpInvokeDirect && inst.Method.IsConstructor() && inst.HasReceiver()
}

// findNewInstance 沿 move-object 链向前找到构造调用接收者的分配指令
func findNewInstance(b *ir.Block, k int) *newInstanceSite {
	ctor := b.Insts[k]
	cur := ctor.Receiver()
	alloc := -1
	for j := k - 1; j >= 0 && alloc < 0; j-- {
		inst := b.Insts[j]
		if inst.Dest != cur {
			continue
		}
		switch {
		case inst.Op == ir.OpMoveObject:
			cur = inst.Srcs[0]
		case inst.Op == ir.OpNewInstance && inst.Type == ctor.Method.Class():
			alloc = j
		default:
			return nil
		}
	}
	if alloc < 0 {
		return nil
	}

	site := &newInstanceSite{block: b, alloc: alloc, ctor: k}
	holds := map[int]bool{b.Insts[alloc].Dest: true}
	for j := alloc + 1; j < k; j++ {
		inst := b.Insts[j]
		if inst.Op == ir.OpMoveObject && holds[inst.Srcs[0]] {
			holds[inst.Dest] = true
			site.chain = append(site.chain, j)
			continue
		}
		// 分配与构造之间不能观察到对象，也不能抛出
		if inst.Op.HasSideEffects() || inst.Op.MayThrow() || inst.Op.IsInvoke() {
			return nil
		}
		for _, s := range inst.Srcs {
			if holds[s] {
				return nil
			}
		}
		if inst.HasDest() {
			delete(holds, inst.Dest)
		}
	}
	if !holds[ctor.Receiver()] {
		return nil
	}
	for _, s := range ctor.Srcs[1:] {
		if holds[s] {
			return nil
		}
	}
	for r := range holds {
		site.aliases = append(site.aliases, r)
	}
	sort.Ints(site.aliases)
	return site
}

// checkNewInstanceSite 检查活跃性约束，返回需要重新赋值的别名
func (d *LocalDce) checkNewInstanceSite(a *analysis, site *newInstanceSite) ([]int, bool) {
	b := site.block
	recv := b.Insts[site.ctor].Receiver()
	catchLive := a.catchLive[b]
	after := a.liveAfter(b, site.ctor)

	// 分配原本在这些写入之前抛出，改写后异常处理块会看到写入后的值
	if catchLive != nil {
		for j := site.alloc + 1; j < site.ctor; j++ {
			if inst := b.Insts[j]; inst.HasDest() && catchLive.Test(uint(inst.Dest)) {
				return nil, false
			}
		}
	}

	var moves []int
	for _, r := range site.aliases {
		if r == recv {
			continue
		}
		// 构造抛出时异常处理块会看到未初始化的别名
		if catchLive != nil && catchLive.Test(uint(r)) {
			return nil, false
		}
		if after.Test(uint(r)) {
			moves = append(moves, r)
		}
	}
	if len(moves) > 0 && !d.mayAllocateRegisters {
		return nil, false
	}
	return moves, true
}

// rewriteNewInstance 执行改写
func (d *LocalDce) rewriteNewInstance(cfg *ir.CFG, site *newInstanceSite, moves []int) {
	b := site.block
	ctor := b.Insts[site.ctor]
	recv := ctor.Receiver()

	if len(moves) > 0 {
		insts := make([]*ir.Instruction, len(moves))
		for i, r := range moves {
			insts[i] = ir.NewMove(ir.OpMoveObject, r, recv)
		}
		cfg.InsertAfter(b, site.ctor, insts...)
	}

	alloc := b.Insts[site.alloc].Clone()
	alloc.Dest = recv
	cfg.InsertBefore(b, site.ctor, alloc)

	remove := append([]int{site.alloc}, site.chain...)
	sort.Sort(sort.Reverse(sort.IntSlice(remove)))
	for _, idx := range remove {
		cfg.RemoveInstruction(b, idx)
	}

	d.logger.Debug("normalized new-instance",
		zap.Int("block", b.ID),
		zap.String("type", alloc.Type),
		zap.Int("receiver", recv),
		zap.Int("moves", len(moves)))
}
