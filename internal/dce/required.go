package dce

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/tangzhangming/localdce/internal/ir"
)

// ============================================================================
// 必需性判定
// ============================================================================

// classify 判断指令在出口状态 live 下是否必须保留
//
// 判定顺序：
//  1. 调用：非纯、结果被使用或位于 try 区域时必需
//  2. 条件分支/switch：目标不全相同时必需
//  3. 其他固有副作用指令总是必需
//  4. 目标寄存器（或待取结果）活跃时必需
//  5. try 区域内可能抛出的指令必需
func (a *analysis) classify(b *ir.Block, inst *ir.Instruction, live *bitset.BitSet) (bool, reason) {
	required, why := a.isRequired(b, inst, live)
	if !required && a.mayBeRequired != nil && a.mayBeRequired(b, inst) {
		return true, reasonCaller
	}
	return required, why
}

func (a *analysis) isRequired(b *ir.Block, inst *ir.Instruction, live *bitset.BitSet) (bool, reason) {
	op := inst.Op
	switch {
	case op.IsInvoke():
		if !a.oracle.IsSideEffectFree(inst) {
			return true, reasonEffect
		}
		if live.Test(a.resultSlot()) {
			return true, reasonLive
		}
		if a.guarded[b] {
			return true, reasonThrow
		}
		return false, reasonNone
	case op.IsBranch():
		if b.BranchTargetsSame() {
			return false, reasonNone
		}
		return true, reasonEffect
	case op.HasSideEffects():
		return true, reasonEffect
	}

	if inst.HasDest() && live.Test(uint(inst.Dest)) {
		return true, reasonLive
	}
	if op.WritesResult() && live.Test(a.resultSlot()) {
		return true, reasonLive
	}
	if op.MayThrow() && a.guarded[b] {
		return true, reasonThrow
	}
	return false, reasonNone
}

// needsNullCheck 死的实例调用删除后是否要保留对接收者的空指针检查
func needsNullCheck(b *ir.Block, i int, inst *ir.Instruction) bool {
	return inst.HasReceiver() && !knownNonNull(b, i, inst.Receiver())
}

// knownNonNull 判断寄存器 r 在位置 i 处是否确定非空
//
// 只看同一块内的最近一次定义：new-instance、new-array 和
// move-exception 的结果不可能为空。
func knownNonNull(b *ir.Block, i int, r int) bool {
	for j := i - 1; j >= 0; j-- {
		inst := b.Insts[j]
		if inst.Dest != r {
			continue
		}
		switch inst.Op {
		case ir.OpNewInstance, ir.OpNewArray, ir.OpMoveException:
			return true
		}
		return false
	}
	return false
}
