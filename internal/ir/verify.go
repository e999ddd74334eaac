package ir

import (
	"fmt"
)

// 验证错误码
const (
	V0001 = "V0001" // 缺少入口块
	V0002 = "V0002" // 寄存器越界
	V0003 = "V0003" // 目标寄存器与操作码不符
	V0004 = "V0004" // 调用缺少方法引用或接收者
	V0005 = "V0005" // 边不属于当前图
	V0006 = "V0006" // 异常处理块没有抛出边到达
	V0007 = "V0007" // 抛出边指向非异常处理块
	V0008 = "V0008" // 未知操作码
	V0009 = "V0009" // 寄存器数量非法
)

// VerificationError 控制流图验证错误
type VerificationError struct {
	Code    string // 错误码
	Block   int    // 块 ID，-1 表示整个图
	Index   int    // 指令位置，-1 表示块级错误
	Message string // 错误消息
}

func (e *VerificationError) Error() string {
	switch {
	case e.Block < 0:
		return fmt.Sprintf("控制流图验证错误 [%s]: %s", e.Code, e.Message)
	case e.Index < 0:
		return fmt.Sprintf("控制流图验证错误 [%s] (B%d): %s", e.Code, e.Block, e.Message)
	default:
		return fmt.Sprintf("控制流图验证错误 [%s] (B%d:%d): %s", e.Code, e.Block, e.Index, e.Message)
	}
}

// Verify 检查控制流图是否满足分析的前置条件
func Verify(cfg *CFG) error {
	if cfg.Registers < 0 {
		return &VerificationError{Code: V0009, Block: -1, Index: -1,
			Message: fmt.Sprintf("寄存器数量为负: %d", cfg.Registers)}
	}
	if cfg.Entry == nil {
		return &VerificationError{Code: V0001, Block: -1, Index: -1, Message: "缺少入口块"}
	}

	member := make(map[*Block]bool, len(cfg.Blocks))
	for _, b := range cfg.Blocks {
		member[b] = true
	}
	if !member[cfg.Entry] {
		return &VerificationError{Code: V0001, Block: cfg.Entry.ID, Index: -1, Message: "入口块不在图中"}
	}

	for _, b := range cfg.Blocks {
		for i, inst := range b.Insts {
			if err := verifyInstruction(cfg, b, i, inst); err != nil {
				return err
			}
		}
		for _, e := range b.Succs {
			if e.Src != b || !member[e.Target] {
				return &VerificationError{Code: V0005, Block: b.ID, Index: -1, Message: "后继边不属于当前图"}
			}
			if e.Kind == EdgeThrow && !e.Target.Catch {
				return &VerificationError{Code: V0007, Block: b.ID, Index: -1,
					Message: fmt.Sprintf("抛出边指向非异常处理块 B%d", e.Target.ID)}
			}
		}
	}

	reachable := cfg.ReachableBlocks()
	for _, b := range cfg.Blocks {
		if !b.Catch || !reachable[b] {
			continue
		}
		guarded := false
		for _, e := range b.Preds {
			if e.Kind == EdgeThrow && reachable[e.Src] {
				guarded = true
				break
			}
		}
		if !guarded {
			return &VerificationError{Code: V0006, Block: b.ID, Index: -1, Message: "异常处理块没有可达的抛出边"}
		}
	}
	return nil
}

func verifyInstruction(cfg *CFG, b *Block, i int, inst *Instruction) error {
	fail := func(code, format string, args ...interface{}) error {
		return &VerificationError{Code: code, Block: b.ID, Index: i, Message: fmt.Sprintf(format, args...)}
	}

	if !inst.Op.valid() {
		return fail(V0008, "未知操作码 %d", int(inst.Op))
	}
	if inst.Op.HasDest() != inst.HasDest() {
		return fail(V0003, "%s 的目标寄存器不符", inst.Op)
	}
	if inst.HasDest() && (inst.Dest < 0 || inst.Dest >= cfg.Registers) {
		return fail(V0002, "目标寄存器 r%d 越界 (寄存器数量 %d)", inst.Dest, cfg.Registers)
	}
	for _, s := range inst.Srcs {
		if s < 0 || s >= cfg.Registers {
			return fail(V0002, "源寄存器 r%d 越界 (寄存器数量 %d)", s, cfg.Registers)
		}
	}
	if inst.Op.IsInvoke() {
		if inst.Method == "" {
			return fail(V0004, "%s 缺少方法引用", inst.Op)
		}
		if inst.Op.Invoke() != InvokeStatic && len(inst.Srcs) == 0 {
			return fail(V0004, "%s 缺少接收者", inst.Op)
		}
	}
	return nil
}
