package irtext

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/tangzhangming/localdce/internal/ir"
)

// TestParseInstruction 测试指令解析
func TestParseInstruction(t *testing.T) {
	tests := []struct {
		input string
		op    ir.Opcode
		dest  int
		srcs  []int
	}{
		{"r1 = add r0 r0", ir.OpAdd, 1, []int{0, 0}},
		{"r0 = const -3", ir.OpConst, 0, nil},
		{"r2 = new-instance LFoo;", ir.OpNewInstance, 2, nil},
		{"invoke-virtual LFoo;.size:()I r2", ir.OpInvokeVirtual, ir.NoReg, []int{2}},
		{"iput r1 r2 LFoo;.count:I", ir.OpIput, ir.NoReg, []int{1, 2}},
		{"  return-void  ", ir.OpReturnVoid, ir.NoReg, nil},
		{"filled-new-array [I r0 r1", ir.OpFilledNewArray, ir.NoReg, []int{0, 1}},
	}

	for _, tt := range tests {
		inst, err := ParseInstruction(tt.input)
		if err != nil {
			t.Errorf("%q: %v", tt.input, err)
			continue
		}
		if inst.Op != tt.op || inst.Dest != tt.dest {
			t.Errorf("%q: got %s dest %d", tt.input, inst.Op, inst.Dest)
		}
		if len(inst.Srcs) != len(tt.srcs) {
			t.Errorf("%q: srcs = %v, want %v", tt.input, inst.Srcs, tt.srcs)
			continue
		}
		for i := range tt.srcs {
			if inst.Srcs[i] != tt.srcs[i] {
				t.Errorf("%q: srcs = %v, want %v", tt.input, inst.Srcs, tt.srcs)
			}
		}
		if got := inst.String(); got != strings.TrimSpace(tt.input) {
			t.Errorf("%q: String() = %q", tt.input, got)
		}
	}
}

// TestParseInstructionOperands 测试操作数分类
func TestParseInstructionOperands(t *testing.T) {
	inst, err := ParseInstruction("iget r0 r1 LFoo;.count:I")
	if err == nil {
		t.Fatalf("iget without dest should fail, got %s", inst)
	}

	inst, err = ParseInstruction("r0 = iget r1 LFoo;.count:I")
	if err != nil {
		t.Fatal(err)
	}
	if inst.Field != "LFoo;.count:I" || inst.Method != "" || inst.Type != "" {
		t.Errorf("field operand misclassified: %+v", inst)
	}

	inst, err = ParseInstruction("r0 = check-cast r1 LFoo;")
	if err != nil {
		t.Fatal(err)
	}
	if inst.Type != "LFoo;" {
		t.Errorf("type = %q", inst.Type)
	}

	inst, err = ParseInstruction("r0 = const 42")
	if err != nil {
		t.Fatal(err)
	}
	if inst.Literal != 42 {
		t.Errorf("literal = %d", inst.Literal)
	}
}

// TestParseInstructionErrors 测试解析错误
func TestParseInstructionErrors(t *testing.T) {
	inputs := []string{
		"",
		"r0 = frobnicate r1",
		"add r0 r1",
		"r0 = return r1",
		"r0 = const",
		"invoke-static r0",
		"r0 = new-instance",
		"r0 = const 1 2",
	}
	for _, in := range inputs {
		_, err := ParseInstruction(in)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("%q: expected ParseError, got %v", in, err)
		}
	}
}

const sampleMethods = `
methods:
  - name: LFoo;.bar:()I
    registers: 3
    blocks:
      - id: 0
        insts:
          - r0 = const 5
          - r1 = add r0 r0
          - invoke-static LLog;.print:(I)V r0
        edges:
          - {kind: goto, to: 1}
          - {kind: throw, to: 2}
      - id: 1
        insts: [return r0]
      - id: 2
        catch: true
        insts:
          - r2 = move-exception
          - return r0
  - name: LFoo;.empty:()V
    registers: 0
    blocks:
      - id: 7
        insts: [return-void]
`

// TestLoadMethods 测试 YAML 加载
func TestLoadMethods(t *testing.T) {
	methods, err := LoadMethods(strings.NewReader(sampleMethods))
	if err != nil {
		t.Fatal(err)
	}
	if len(methods) != 2 {
		t.Fatalf("expected 2 methods, got %d", len(methods))
	}

	m := methods[0]
	if m.Ref != "LFoo;.bar:()I" || m.CFG.Registers != 3 {
		t.Errorf("method = %s registers %d", m.Ref, m.CFG.Registers)
	}
	entry := m.CFG.Entry
	if len(entry.Insts) != 3 || len(entry.Succs) != 2 {
		t.Fatalf("entry = %v", m.CFG)
	}
	handler := entry.Succs[1].Target
	if entry.Succs[1].Kind != ir.EdgeThrow || !handler.Catch {
		t.Errorf("second edge should throw to a catch block: %v", m.CFG)
	}
	if err := ir.Verify(m.CFG); err != nil {
		t.Errorf("loaded graph should verify: %v", err)
	}

	if got := FormatMethod(methods[1]); !strings.HasPrefix(got, "method LFoo;.empty:()V (registers 0)\n") {
		t.Errorf("FormatMethod = %q", got)
	}
}

// TestLoadMethodsErrors 测试加载错误的合并与行号
func TestLoadMethodsErrors(t *testing.T) {
	input := `
methods:
  - name: LBad;.a:()V
    registers: 1
    blocks:
      - id: 0
        insts:
          - r0 = const 1
          - r0 = nonsense
  - name: LBad;.b:()V
    registers: 1
    blocks:
      - id: 0
        edges: [{kind: goto, to: 9}]
  - name: LGood;.c:()V
    registers: 0
    blocks:
      - id: 0
        insts: [return-void]
`
	methods, err := LoadMethods(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected errors")
	}
	if len(methods) != 1 || methods[0].Ref != "LGood;.c:()V" {
		t.Errorf("only the good method should load, got %d", len(methods))
	}

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Method != "LBad;.a:()V" || pe.Line != 9 {
		t.Errorf("error location = %s line %d", pe.Method, pe.Line)
	}
	if !strings.Contains(err.Error(), "LBad;.b:()V") {
		t.Errorf("second error missing: %v", err)
	}
}

// TestMarshalMethods 测试写回后可以重新加载
func TestMarshalMethods(t *testing.T) {
	methods, err := LoadMethods(strings.NewReader(sampleMethods))
	if err != nil {
		t.Fatal(err)
	}
	data, err := MarshalMethods(methods)
	if err != nil {
		t.Fatal(err)
	}
	again, err := LoadMethods(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reload: %v\n%s", err, data)
	}
	for i := range methods {
		if FormatMethod(methods[i]) != FormatMethod(again[i]) {
			t.Errorf("method %d differs after reload:\n%s\nvs\n%s", i, FormatMethod(methods[i]), FormatMethod(again[i]))
		}
	}
}
