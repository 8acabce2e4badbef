package mir

import (
	"dexjit/internal/bytecode"
	"dexjit/internal/meta"
)

// Boundary describes how an instruction ends a block.
type Boundary struct {
	// Target is the branch destination, valid when HasTarget is set.
	Target    uint32
	HasTarget bool
	// IsInvoke is set for invokes and for returns and throw, which leave
	// the compiled region the same way.
	IsInvoke bool
	// Callee is the statically resolved invoke target, if any.
	Callee *meta.Method
	// Redirect is set when Callee has bytecode, so the caller can chain
	// straight to Callee.Addr. A native callee leaves it unset.
	Redirect bool
}

// Classify reports whether insn at offset ends a block in caller.
func Classify(caller *meta.Method, insn bytecode.Instruction, offset uint32) (Boundary, bool) {
	if insn.Pseudo != 0 {
		return Boundary{}, false
	}
	switch insn.Op {
	case bytecode.OpReturnVoid, bytecode.OpReturn, bytecode.OpReturnWide, bytecode.OpReturnObject,
		bytecode.OpThrow,
		bytecode.OpInvokeVirtual, bytecode.OpInvokeVirtualRange,
		bytecode.OpInvokeInterface, bytecode.OpInvokeInterfaceRange,
		bytecode.OpInvokeVirtualQuick, bytecode.OpInvokeVirtualQuickRange:
		return Boundary{IsInvoke: true}, true

	case bytecode.OpInvokeSuper, bytecode.OpInvokeSuperRange:
		var callee *meta.Method
		if resolved := dex(caller).ResolvedMethod(insn.VB); resolved != nil {
			callee = superClass(caller).VirtualMethod(resolved.VTableIndex)
		}
		return invoke(callee), true

	case bytecode.OpInvokeSuperQuick, bytecode.OpInvokeSuperQuickRange:
		return invoke(superClass(caller).VirtualMethod(int(insn.VB))), true

	case bytecode.OpInvokeStatic, bytecode.OpInvokeStaticRange,
		bytecode.OpInvokeDirect, bytecode.OpInvokeDirectRange,
		bytecode.OpInvokeDirectEmpty:
		return invoke(dex(caller).ResolvedMethod(insn.VB)), true

	case bytecode.OpGoto, bytecode.OpGoto16, bytecode.OpGoto32,
		bytecode.OpIfEq, bytecode.OpIfNe, bytecode.OpIfLt, bytecode.OpIfGe, bytecode.OpIfGt, bytecode.OpIfLe,
		bytecode.OpIfEqz, bytecode.OpIfNez, bytecode.OpIfLtz, bytecode.OpIfGez, bytecode.OpIfGtz, bytecode.OpIfLez:
		disp, ok := insn.BranchOffset()
		if !ok {
			return Boundary{}, false
		}
		return Boundary{Target: offset + uint32(disp), HasTarget: true}, true
	}
	return Boundary{}, false
}

// IsUnconditionalExit reports whether control never falls out of insn:
// the four returns and the three gotos.
func IsUnconditionalExit(insn bytecode.Instruction) bool {
	if insn.Pseudo != 0 {
		return false
	}
	switch insn.Op {
	case bytecode.OpReturnVoid, bytecode.OpReturn, bytecode.OpReturnWide, bytecode.OpReturnObject,
		bytecode.OpGoto, bytecode.OpGoto16, bytecode.OpGoto32:
		return true
	}
	return false
}

func invoke(callee *meta.Method) Boundary {
	return Boundary{
		IsInvoke: true,
		Callee:   callee,
		Redirect: callee != nil && !callee.Native,
	}
}

func dex(m *meta.Method) *meta.DexFile {
	if m == nil || m.Class == nil {
		return nil
	}
	return m.Class.Dex
}

func superClass(m *meta.Method) *meta.Class {
	if m == nil || m.Class == nil {
		return nil
	}
	return m.Class.Super
}
