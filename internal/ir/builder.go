package ir

// ============================================================================
// 控制流图构建器
// ============================================================================

// Builder 控制流图构建器
type Builder struct {
	cfg     *CFG
	current *Block
}

// NewBuilder 创建构建器，入口块即为当前块
func NewBuilder(registers int) *Builder {
	cfg := NewCFG(registers)
	return &Builder{cfg: cfg, current: cfg.NewBlock()}
}

// Block 创建新块（不切换当前块）
func (b *Builder) Block() *Block {
	return b.cfg.NewBlock()
}

// CatchBlock 创建异常处理块
func (b *Builder) CatchBlock() *Block {
	blk := b.cfg.NewBlock()
	blk.Catch = true
	return blk
}

// SetBlock 切换当前块
func (b *Builder) SetBlock(blk *Block) *Builder {
	b.current = blk
	return b
}

// Current 返回当前块
func (b *Builder) Current() *Block {
	return b.current
}

// Emit 向当前块发射指令
func (b *Builder) Emit(insts ...*Instruction) *Builder {
	b.current.Append(insts...)
	return b
}

// EmitConst 发射常量加载
func (b *Builder) EmitConst(dest int, v int64) *Builder {
	return b.Emit(NewConst(dest, v))
}

// EmitOp 发射普通运算
func (b *Builder) EmitOp(op Opcode, dest int, srcs ...int) *Builder {
	return b.Emit(NewInstruction(op, dest, srcs...))
}

// EmitInvoke 发射方法调用
func (b *Builder) EmitInvoke(op Opcode, method MethodRef, srcs ...int) *Builder {
	return b.Emit(NewInvoke(op, method, srcs...))
}

// EmitNewInstance 发射对象分配
func (b *Builder) EmitNewInstance(dest int, typ string) *Builder {
	return b.Emit(NewNewInstance(dest, typ))
}

// EmitReturn 发射返回
func (b *Builder) EmitReturn(src int) *Builder {
	return b.Emit(NewInstruction(OpReturn, NoReg, src))
}

// Goto 添加当前块到 target 的 goto 边
func (b *Builder) Goto(target *Block) *Builder {
	b.cfg.AddEdge(b.current, target, EdgeGoto)
	return b
}

// Branch 添加当前块到 target 的分支边
func (b *Builder) Branch(target *Block) *Builder {
	b.cfg.AddEdge(b.current, target, EdgeBranch)
	return b
}

// Throw 添加当前块到异常处理块的抛出边
func (b *Builder) Throw(handler *Block) *Builder {
	b.cfg.AddEdge(b.current, handler, EdgeThrow)
	return b
}

// CFG 返回构建结果
func (b *Builder) CFG() *CFG {
	return b.cfg
}
