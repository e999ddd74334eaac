package purity

import (
	"testing"

	"github.com/tangzhangming/localdce/internal/ir"
)

const (
	baseRun  = ir.MethodRef("LBase;.run:()I")
	implRun  = ir.MethodRef("LImpl;.run:()I")
	deepRun  = ir.MethodRef("LDeep;.run:()I")
	mathAbs  = ir.MethodRef("Ljava/lang/Math;.abs:(I)I")
	printOut = ir.MethodRef("LLog;.print:(I)V")
)

// TestStaticPurity 测试非虚调用的纯度判定
func TestStaticPurity(t *testing.T) {
	o := NewOracle(NewMethodSet(mathAbs), nil)

	if !o.IsSideEffectFree(ir.NewInvoke(ir.OpInvokeStatic, mathAbs, 0)) {
		t.Error("call to a pure static method should be side-effect free")
	}
	if o.IsSideEffectFree(ir.NewInvoke(ir.OpInvokeStatic, printOut, 0)) {
		t.Error("call to an unknown method must not be side-effect free")
	}
	if o.IsSideEffectFree(ir.NewConst(0, 1)) {
		t.Error("non-invoke instructions are never certified")
	}
}

// TestVirtualPurityPropagation 测试覆写集合对虚调用纯度的影响
func TestVirtualPurityPropagation(t *testing.T) {
	graph := NewOverrideGraph()
	graph.AddOverride(baseRun, implRun)
	graph.AddOverride(implRun, deepRun)

	call := ir.NewInvoke(ir.OpInvokeVirtual, baseRun, 0)

	allPure := NewOracle(NewMethodSet(baseRun, implRun, deepRun), graph)
	if !allPure.IsSideEffectFree(call) {
		t.Error("virtual call should be pure when every overrider is pure")
	}

	oneImpure := NewOracle(NewMethodSet(baseRun, implRun), graph)
	if oneImpure.IsSideEffectFree(call) {
		t.Error("a single impure transitive overrider must make the call required")
	}

	// invoke-super 的目标是确定的，不受覆写影响
	super := ir.NewInvoke(ir.OpInvokeSuper, baseRun, 0)
	if !oneImpure.IsSideEffectFree(super) {
		t.Error("invoke-super should only consult the declared target")
	}

	// 没有覆写图时只看声明目标
	noGraph := NewOracle(NewMethodSet(baseRun), nil)
	if !noGraph.IsSideEffectFree(call) {
		t.Error("without an override graph the declared target decides")
	}
}

// TestOpenOverrides 测试覆写集合不完全已知的方法
func TestOpenOverrides(t *testing.T) {
	graph := NewOverrideGraph()
	graph.AddOverride(baseRun, implRun)
	graph.MarkOpen(implRun)

	o := NewOracle(NewMethodSet(baseRun, implRun), graph)
	if o.IsSideEffectFree(ir.NewInvoke(ir.OpInvokeInterface, baseRun, 0)) {
		t.Error("unknown overriders must make the call impure")
	}
}

// TestOverridersCycle 测试覆写图中的环不会导致死循环
func TestOverridersCycle(t *testing.T) {
	graph := NewOverrideGraph()
	graph.AddOverride(baseRun, implRun)
	graph.AddOverride(implRun, baseRun)
	graph.AddOverride(implRun, implRun)

	got := graph.Overriders(baseRun)
	if len(got) != 1 || got[0] != implRun {
		t.Errorf("Overriders = %v, want [%s]", got, implRun)
	}
}
