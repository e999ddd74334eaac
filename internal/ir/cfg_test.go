package ir

import (
	"errors"
	"testing"
)

// TestMethodRefParts 测试方法引用解析
func TestMethodRefParts(t *testing.T) {
	tests := []struct {
		ref   MethodRef
		class string
		name  string
		proto string
		valid bool
	}{
		{"LFoo;.bar:(I)V", "LFoo;", "bar", "(I)V", true},
		{"LFoo;.<init>:()V", "LFoo;", "<init>", "()V", true},
		{"Ljava/lang/Math;.abs:(I)I", "Ljava/lang/Math;", "abs", "(I)I", true},
		{"LFoo;.bar", "LFoo;", "bar", "", false},
		{"bar", "", "bar", "", false},
	}

	for _, tt := range tests {
		if got := tt.ref.Class(); got != tt.class {
			t.Errorf("%s: class = %q, want %q", tt.ref, got, tt.class)
		}
		if got := tt.ref.Name(); got != tt.name {
			t.Errorf("%s: name = %q, want %q", tt.ref, got, tt.name)
		}
		if got := tt.ref.Proto(); got != tt.proto {
			t.Errorf("%s: proto = %q, want %q", tt.ref, got, tt.proto)
		}
		if got := tt.ref.Valid(); got != tt.valid {
			t.Errorf("%s: valid = %v, want %v", tt.ref, got, tt.valid)
		}
	}
	if !MethodRef("LFoo;.<init>:()V").IsConstructor() {
		t.Error("<init> should be a constructor")
	}
}

// TestOpcodeProperties 测试操作码属性表
func TestOpcodeProperties(t *testing.T) {
	if !OpInvokeVirtual.IsVirtualInvoke() || !OpInvokeInterface.IsVirtualInvoke() {
		t.Error("virtual and interface invokes dispatch dynamically")
	}
	if OpInvokeSuper.IsVirtualInvoke() || OpInvokeStatic.IsVirtualInvoke() {
		t.Error("super and static invokes have exact targets")
	}
	if !OpInvokeStatic.WritesResult() || !OpMoveResult.ReadsResult() {
		t.Error("result slot flags are wrong")
	}
	if OpAdd.HasSideEffects() || !OpIput.HasSideEffects() {
		t.Error("side effect flags are wrong")
	}
	if !OpNewInstance.MayThrow() || OpConst.MayThrow() {
		t.Error("may-throw flags are wrong")
	}
	for op := Opcode(0); op < numOpcodes; op++ {
		got, ok := LookupOpcode(op.String())
		if !ok || got != op {
			t.Errorf("LookupOpcode(%q) = %v, %v", op.String(), got, ok)
		}
	}
}

// TestPostOrder 测试后序遍历
func TestPostOrder(t *testing.T) {
	// B0 -> B1 -> B3, B0 -> B2 -> B3, B4 不可达
	b := NewBuilder(1)
	b0 := b.Current()
	b1, b2, b3 := b.Block(), b.Block(), b.Block()
	b4 := b.Block()
	b.SetBlock(b0).Goto(b1).Branch(b2)
	b.SetBlock(b1).Goto(b3)
	b.SetBlock(b2).Goto(b3)
	b.SetBlock(b4).Goto(b3)

	order := b.CFG().PostOrder()
	if len(order) != 4 {
		t.Fatalf("expected 4 reachable blocks, got %d", len(order))
	}
	if order[len(order)-1] != b0 {
		t.Errorf("entry should be last in postorder, got B%d", order[len(order)-1].ID)
	}
	if order[0] != b3 {
		t.Errorf("B3 should be first in postorder, got B%d", order[0].ID)
	}
	for _, blk := range order {
		if blk == b4 {
			t.Error("unreachable block in postorder")
		}
	}
}

// TestRemoveUnreachableBlocks 测试删除不可达块
func TestRemoveUnreachableBlocks(t *testing.T) {
	b := NewBuilder(1)
	b0 := b.Current()
	b1 := b.Block()
	dead := b.Block()
	b.SetBlock(b0).EmitConst(0, 1).Goto(b1)
	b.SetBlock(b1).EmitReturn(0)
	b.SetBlock(dead).EmitConst(0, 2).EmitConst(0, 3).Goto(b1)

	cfg := b.CFG()
	if n := cfg.RemoveUnreachableBlocks(); n != 2 {
		t.Errorf("expected 2 removed instructions, got %d", n)
	}
	if len(cfg.Blocks) != 2 {
		t.Errorf("expected 2 blocks, got %d", len(cfg.Blocks))
	}
	if len(b1.Preds) != 1 {
		t.Errorf("expected 1 predecessor of B1, got %d", len(b1.Preds))
	}
}

// TestRemoveBranchInstruction 测试删除条件分支
func TestRemoveBranchInstruction(t *testing.T) {
	b := NewBuilder(1)
	b0 := b.Current()
	b1 := b.Block()
	b.SetBlock(b0).EmitConst(0, 1).EmitOp(OpIfEqz, NoReg, 0).Branch(b1)
	b.SetBlock(b1).EmitReturn(0)

	cfg := b.CFG()
	cfg.RemoveInstruction(b0, 1)

	if len(b0.Insts) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(b0.Insts))
	}
	if len(b0.Succs) != 1 || b0.Succs[0].Kind != EdgeGoto || b0.Succs[0].Target != b1 {
		t.Errorf("branch edge should become a goto to B1: %v", cfg)
	}
}

// TestInsertInstructions 测试插入指令
func TestInsertInstructions(t *testing.T) {
	b := NewBuilder(2)
	b.EmitConst(0, 1).EmitReturn(0)
	cfg := b.CFG()
	blk := cfg.Entry

	cfg.InsertBefore(blk, 1, NewMove(OpMove, 1, 0))
	cfg.InsertAfter(blk, 0, NewConst(1, 7))

	want := []string{"r0 = const 1", "r1 = const 7", "r1 = move r0", "return r0"}
	if len(blk.Insts) != len(want) {
		t.Fatalf("expected %d instructions, got %d", len(want), len(blk.Insts))
	}
	for i, w := range want {
		if got := blk.Insts[i].String(); got != w {
			t.Errorf("inst %d = %q, want %q", i, got, w)
		}
	}
}

// TestVerify 测试前置条件检查
func TestVerify(t *testing.T) {
	tests := []struct {
		name  string
		build func() *CFG
		code  string
	}{
		{
			name: "ok",
			build: func() *CFG {
				b := NewBuilder(1)
				b.EmitConst(0, 1).EmitReturn(0)
				return b.CFG()
			},
		},
		{
			name: "register out of range",
			build: func() *CFG {
				b := NewBuilder(1)
				b.EmitConst(0, 1).EmitOp(OpAdd, 1, 0, 0)
				return b.CFG()
			},
			code: V0002,
		},
		{
			name: "dest on return",
			build: func() *CFG {
				b := NewBuilder(1)
				b.EmitOp(OpReturn, 0, 0)
				return b.CFG()
			},
			code: V0003,
		},
		{
			name: "invoke without method",
			build: func() *CFG {
				b := NewBuilder(1)
				b.EmitInvoke(OpInvokeStatic, "")
				return b.CFG()
			},
			code: V0004,
		},
		{
			name: "unguarded catch block",
			build: func() *CFG {
				b := NewBuilder(1)
				handler := b.CatchBlock()
				b.EmitConst(0, 1).Goto(handler)
				b.SetBlock(handler).EmitReturn(0)
				return b.CFG()
			},
			code: V0006,
		},
		{
			name: "throw edge to plain block",
			build: func() *CFG {
				b := NewBuilder(1)
				other := b.Block()
				b.EmitConst(0, 1).Throw(other)
				b.SetBlock(other).EmitReturn(0)
				return b.CFG()
			},
			code: V0007,
		},
		{
			name:  "no entry",
			build: func() *CFG { return NewCFG(1) },
			code:  V0001,
		},
	}

	for _, tt := range tests {
		err := Verify(tt.build())
		if tt.code == "" {
			if err != nil {
				t.Errorf("%s: unexpected error: %v", tt.name, err)
			}
			continue
		}
		var verr *VerificationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: expected VerificationError, got %v", tt.name, err)
			continue
		}
		if verr.Code != tt.code {
			t.Errorf("%s: code = %s, want %s", tt.name, verr.Code, tt.code)
		}
	}
}
