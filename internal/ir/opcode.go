package ir

import "fmt"

// ============================================================================
// 操作码定义
// ============================================================================

// Opcode 寄存器字节码操作码
type Opcode int

const (
	OpNop Opcode = iota

	// 常量与传送
	OpConst
	OpMove
	OpMoveObject
	OpMoveResult
	OpMoveException

	// 算术运算
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpNeg
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpCmp

	// 对象与数组
	OpNewInstance
	OpNewArray
	OpFilledNewArray
	OpCheckCast
	OpInstanceOf
	OpArrayLength
	OpIget
	OpIput
	OpSget
	OpSput
	OpAget
	OpAput

	// 同步
	OpMonitorEnter
	OpMonitorExit

	// 方法调用
	OpInvokeStatic
	OpInvokeDirect
	OpInvokeVirtual
	OpInvokeSuper
	OpInvokeInterface

	// 控制流
	OpIfEq
	OpIfNe
	OpIfLt
	OpIfGe
	OpIfEqz
	OpIfNez
	OpSwitch
	OpReturn
	OpReturnVoid
	OpThrow

	// 空指针检查（删除纯方法调用后保留 NPE 语义）
	OpCheckNull

	numOpcodes
)

// InvokeKind 调用分派方式
type InvokeKind int

const (
	InvokeNone InvokeKind = iota
	InvokeStatic
	InvokeDirect
	InvokeVirtual
	InvokeSuper
	InvokeInterface
)

// opInfo 操作码的固有属性
type opInfo struct {
	name         string
	dest         bool // 写目标寄存器
	sideEffect   bool // 除定义寄存器外的固有副作用
	mayThrow     bool // 可能抛出异常
	branch       bool // 条件分支或 switch
	terminator   bool // return/throw
	invoke       InvokeKind
	writesResult bool // 写待取结果槽
	readsResult  bool // 读待取结果槽
}

var opTable = [numOpcodes]opInfo{
	OpNop:            {name: "nop"},
	OpConst:          {name: "const", dest: true},
	OpMove:           {name: "move", dest: true},
	OpMoveObject:     {name: "move-object", dest: true},
	OpMoveResult:     {name: "move-result", dest: true, readsResult: true},
	OpMoveException:  {name: "move-exception", dest: true},
	OpAdd:            {name: "add", dest: true},
	OpSub:            {name: "sub", dest: true},
	OpMul:            {name: "mul", dest: true},
	OpDiv:            {name: "div", dest: true, mayThrow: true},
	OpRem:            {name: "rem", dest: true, mayThrow: true},
	OpNeg:            {name: "neg", dest: true},
	OpAnd:            {name: "and", dest: true},
	OpOr:             {name: "or", dest: true},
	OpXor:            {name: "xor", dest: true},
	OpShl:            {name: "shl", dest: true},
	OpShr:            {name: "shr", dest: true},
	OpCmp:            {name: "cmp", dest: true},
	OpNewInstance:    {name: "new-instance", dest: true, mayThrow: true},
	OpNewArray:       {name: "new-array", dest: true, mayThrow: true},
	OpFilledNewArray: {name: "filled-new-array", mayThrow: true, writesResult: true},
	OpCheckCast:      {name: "check-cast", dest: true, mayThrow: true},
	OpInstanceOf:     {name: "instance-of", dest: true},
	OpArrayLength:    {name: "array-length", dest: true, mayThrow: true},
	OpIget:           {name: "iget", dest: true, mayThrow: true},
	OpIput:           {name: "iput", sideEffect: true, mayThrow: true},
	OpSget:           {name: "sget", dest: true},
	OpSput:           {name: "sput", sideEffect: true},
	OpAget:           {name: "aget", dest: true, mayThrow: true},
	OpAput:           {name: "aput", sideEffect: true, mayThrow: true},
	OpMonitorEnter:   {name: "monitor-enter", sideEffect: true, mayThrow: true},
	OpMonitorExit:    {name: "monitor-exit", sideEffect: true, mayThrow: true},

	OpInvokeStatic:    {name: "invoke-static", sideEffect: true, mayThrow: true, invoke: InvokeStatic, writesResult: true},
	OpInvokeDirect:    {name: "invoke-direct", sideEffect: true, mayThrow: true, invoke: InvokeDirect, writesResult: true},
	OpInvokeVirtual:   {name: "invoke-virtual", sideEffect: true, mayThrow: true, invoke: InvokeVirtual, writesResult: true},
	OpInvokeSuper:     {name: "invoke-super", sideEffect: true, mayThrow: true, invoke: InvokeSuper, writesResult: true},
	OpInvokeInterface: {name: "invoke-interface", sideEffect: true, mayThrow: true, invoke: InvokeInterface, writesResult: true},

	OpIfEq:       {name: "if-eq", sideEffect: true, branch: true},
	OpIfNe:       {name: "if-ne", sideEffect: true, branch: true},
	OpIfLt:       {name: "if-lt", sideEffect: true, branch: true},
	OpIfGe:       {name: "if-ge", sideEffect: true, branch: true},
	OpIfEqz:      {name: "if-eqz", sideEffect: true, branch: true},
	OpIfNez:      {name: "if-nez", sideEffect: true, branch: true},
	OpSwitch:     {name: "switch", sideEffect: true, branch: true},
	OpReturn:     {name: "return", sideEffect: true, terminator: true},
	OpReturnVoid: {name: "return-void", sideEffect: true, terminator: true},
	OpThrow:      {name: "throw", sideEffect: true, mayThrow: true, terminator: true},
	OpCheckNull:  {name: "check-null", sideEffect: true, mayThrow: true},
}

var opByName map[string]Opcode

func init() {
	opByName = make(map[string]Opcode, numOpcodes)
	for op := Opcode(0); op < numOpcodes; op++ {
		opByName[opTable[op].name] = op
	}
}

// LookupOpcode 按名称查找操作码
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opByName[name]
	return op, ok
}

func (op Opcode) valid() bool {
	return op >= 0 && op < numOpcodes
}

// String 返回操作码的文本形式
func (op Opcode) String() string {
	if !op.valid() {
		return fmt.Sprintf("UNKNOWN(%d)", int(op))
	}
	return opTable[op].name
}

// HasDest 操作码是否写目标寄存器
func (op Opcode) HasDest() bool { return op.valid() && opTable[op].dest }

// HasSideEffects 是否有除定义寄存器以外的固有副作用
func (op Opcode) HasSideEffects() bool { return op.valid() && opTable[op].sideEffect }

// MayThrow 是否可能抛出异常
func (op Opcode) MayThrow() bool { return op.valid() && opTable[op].mayThrow }

// IsBranch 是否是条件分支或 switch
func (op Opcode) IsBranch() bool { return op.valid() && opTable[op].branch }

// IsTerminator 是否是 return/throw
func (op Opcode) IsTerminator() bool { return op.valid() && opTable[op].terminator }

// Invoke 返回调用分派方式，非调用指令返回 InvokeNone
func (op Opcode) Invoke() InvokeKind {
	if !op.valid() {
		return InvokeNone
	}
	return opTable[op].invoke
}

// IsInvoke 是否是方法调用
func (op Opcode) IsInvoke() bool { return op.Invoke() != InvokeNone }

// IsVirtualInvoke 是否是运行时动态分派的调用
func (op Opcode) IsVirtualInvoke() bool {
	k := op.Invoke()
	return k == InvokeVirtual || k == InvokeInterface
}

// WritesResult 是否写待取结果槽
func (op Opcode) WritesResult() bool { return op.valid() && opTable[op].writesResult }

// ReadsResult 是否读待取结果槽
func (op Opcode) ReadsResult() bool { return op.valid() && opTable[op].readsResult }

// IsMove 是否是寄存器间传送
func (op Opcode) IsMove() bool { return op == OpMove || op == OpMoveObject }
