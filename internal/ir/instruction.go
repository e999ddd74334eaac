package ir

import (
	"fmt"
	"strings"
)

// ============================================================================
// 方法引用
// ============================================================================

// MethodRef 方法引用，形如 "LFoo;.bar:(I)V"
type MethodRef string

// Class 返回声明类
func (m MethodRef) Class() string {
	s := string(m)
	if i := strings.Index(s, ";."); i >= 0 {
		return s[:i+1]
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return ""
}

// Name 返回方法名
func (m MethodRef) Name() string {
	s := string(m)
	start := len(m.Class())
	if start < len(s) && s[start] == '.' {
		start++
	}
	end := strings.IndexByte(s[start:], ':')
	if end < 0 {
		return s[start:]
	}
	return s[start : start+end]
}

// Proto 返回方法签名部分
func (m MethodRef) Proto() string {
	s := string(m)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// IsConstructor 是否是实例构造方法
func (m MethodRef) IsConstructor() bool {
	return m.Name() == "<init>"
}

// Valid 检查引用格式是否完整
func (m MethodRef) Valid() bool {
	return m.Class() != "" && m.Name() != "" && strings.HasPrefix(m.Proto(), "(")
}

// ============================================================================
// 指令
// ============================================================================

// NoReg 表示没有目标寄存器
const NoReg = -1

// Instruction 寄存器字节码指令
type Instruction struct {
	Op      Opcode    // 操作码
	Dest    int       // 目标寄存器，NoReg 表示无
	Srcs    []int     // 源寄存器
	Literal int64     // 常量值 (用于 const)
	Type    string    // 类型引用 (new-instance/check-cast 等)
	Field   string    // 字段引用 (iget/iput/sget/sput)
	Method  MethodRef // 被调方法 (invoke-*)
}

// NewInstruction 创建指令
func NewInstruction(op Opcode, dest int, srcs ...int) *Instruction {
	return &Instruction{Op: op, Dest: dest, Srcs: srcs}
}

// NewConst 创建常量加载
func NewConst(dest int, v int64) *Instruction {
	return &Instruction{Op: OpConst, Dest: dest, Literal: v}
}

// NewMove 创建寄存器传送
func NewMove(op Opcode, dest, src int) *Instruction {
	return &Instruction{Op: op, Dest: dest, Srcs: []int{src}}
}

// NewNewInstance 创建对象分配
func NewNewInstance(dest int, typ string) *Instruction {
	return &Instruction{Op: OpNewInstance, Dest: dest, Type: typ}
}

// NewInvoke 创建方法调用
func NewInvoke(op Opcode, method MethodRef, srcs ...int) *Instruction {
	return &Instruction{Op: op, Dest: NoReg, Srcs: srcs, Method: method}
}

// NewCheckNull 创建空指针检查
func NewCheckNull(reg int) *Instruction {
	return &Instruction{Op: OpCheckNull, Dest: NoReg, Srcs: []int{reg}}
}

// HasDest 是否定义了目标寄存器
func (inst *Instruction) HasDest() bool {
	return inst.Dest != NoReg
}

// HasReceiver 是否是带接收者的实例调用
func (inst *Instruction) HasReceiver() bool {
	k := inst.Op.Invoke()
	return k != InvokeNone && k != InvokeStatic && len(inst.Srcs) > 0
}

// Receiver 返回实例调用的接收者寄存器
func (inst *Instruction) Receiver() int {
	if !inst.HasReceiver() {
		return NoReg
	}
	return inst.Srcs[0]
}

// Reads 判断指令是否读取寄存器 r
func (inst *Instruction) Reads(r int) bool {
	for _, s := range inst.Srcs {
		if s == r {
			return true
		}
	}
	return false
}

// Clone 复制指令
func (inst *Instruction) Clone() *Instruction {
	c := *inst
	c.Srcs = append([]int(nil), inst.Srcs...)
	return &c
}

// String 返回指令的文本形式
func (inst *Instruction) String() string {
	var sb strings.Builder
	if inst.HasDest() {
		fmt.Fprintf(&sb, "r%d = ", inst.Dest)
	}
	sb.WriteString(inst.Op.String())

	if inst.Method != "" {
		sb.WriteString(" ")
		sb.WriteString(string(inst.Method))
	}
	typeFirst := inst.Op == OpNewInstance || inst.Op == OpFilledNewArray
	if typeFirst && inst.Type != "" {
		sb.WriteString(" ")
		sb.WriteString(inst.Type)
	}
	for _, s := range inst.Srcs {
		fmt.Fprintf(&sb, " r%d", s)
	}
	if inst.Op == OpConst {
		fmt.Fprintf(&sb, " %d", inst.Literal)
	}
	if !typeFirst && inst.Type != "" {
		sb.WriteString(" ")
		sb.WriteString(inst.Type)
	}
	if inst.Field != "" {
		sb.WriteString(" ")
		sb.WriteString(inst.Field)
	}
	return sb.String()
}
