// Package interp executes internal/ir's register/block form directly
// (spec.md §4.I "IR interpreter"), the compile-time stack machine the
// driver uses for evaluating Icarus programs without a separate native
// back end. It is grounded on the teacher's register-file virtual
// machine, internal/vmregister/vm.go — a per-frame register file, a
// call-frame stack, and a big opcode switch dispatching in a fetch
// loop — simplified from that file's flat bytecode-plus-JIT design down
// to the block-and-terminator shape internal/ir actually has: instead
// of a program counter stepping through a flat instruction array, the
// fetch loop here steps through one Block's Commands and then follows
// its Exit to the next block (spec.md §4.I's own state-machine
// description, "Enter → ExecuteBlock → {CommandStep}* → BlockExit").
//
// Memory model: addresses resolve to interpreter-level value cells
// (one per scalar, or one per array/struct/tuple element) rather than
// raw architecture bytes. This interpreter evaluates programs, it does
// not need to reproduce the target ABI's exact byte layout — ir's own
// Architecture.SizeOf is still authoritative for the one place actual
// byte counts matter (S.bytes, folded at build time by internal/
// irbuilder). See DESIGN.md for the reasoning.
package interp

import (
	"fmt"
	"math"

	"icarusc/internal/errs"
	"icarusc/internal/ir"
	"icarusc/internal/types"
)

// Value is whatever an interpreter register or memory cell can hold:
// int32/int64/float32/float64/bool/rune/string (read-only data),
// ir.Addr (a Stack/Heap/ReadOnly address), or nil (void/uninitialized).
type Value interface{}

// Foreign is a registered FFI thunk. Call looks it up by callee name
// only and passes the arguments through unchanged; the callee's arity
// and signature are not checked against the thunk.
type Foreign func(args []Value) Value

// Memory is a bump-allocated cell arena backing Stack and Heap
// addresses. Cells are Go values, not bytes; see the package doc.
type memory struct {
	cells []Value
}

func (m *memory) reserve(n int) int64 {
	off := int64(len(m.cells))
	for i := 0; i < n; i++ {
		m.cells = append(m.cells, nil)
	}
	return off
}

func (m *memory) at(off int64) *Value { return &m.cells[off] }

// Interp runs a compiled module's functions. One Interp can run many
// calls; Stack/Heap persist across top-level calls the way a real
// process's heap would (spec.md §5: "the read-only data buffer are
// append-only during compilation; readers see the state at module-
// compile completion" — the same append-only discipline applies here
// to the interpreter's own heap).
type Interp struct {
	funcs map[string]*ir.Func
	ro    *ir.ReadOnlyData
	arch  types.Architecture

	stack memory
	heap  memory

	foreign map[string]Foreign

	maxCallDepth int
	depth        int
}

// New builds an interpreter over every function in mod, with ffi as
// the closed set of foreign-function thunks available to Call (spec.md
// §4.I: "Foreign symbols are loaded by name via the host dynamic-link
// facility" — ffi stands in for that facility since this interpreter
// runs in-process rather than dynamically linking).
func New(mod *ir.Module, arch types.Architecture, ffi map[string]Foreign) *Interp {
	funcs := make(map[string]*ir.Func, len(mod.Funcs))
	for _, f := range mod.Funcs {
		funcs[f.Name] = f
	}
	if ffi == nil {
		ffi = map[string]Foreign{}
	}
	return &Interp{funcs: funcs, ro: mod.ReadOnly, arch: arch, foreign: ffi, maxCallDepth: 4096}
}

// frame is one function activation: its register file and the current
// and previous block indices phi lookups need (spec.md §4.I "Phi*
// selects the value corresponding to frame.prev_block").
type frame struct {
	f       *ir.Func
	regs    []Value
	cur     int
	prev    int
	retSlot Value
}

// Call looks up fn by name and runs it to completion, spec.md §4.I's
// "Enter → ExecuteBlock → {CommandStep}* → BlockExit" state machine.
// Returns the function's SetReturn value, or nil for a void function.
func (in *Interp) Call(name string, args []Value) (Value, error) {
	f, ok := in.funcs[name]
	if ok {
		return in.callIR(f, args)
	}
	if fn, ok := in.foreign[name]; ok {
		return fn(args), nil
	}
	cause := fmt.Errorf("%q is neither a compiled function nor a registered foreign binding", name)
	return nil, errs.NewFatal(fmt.Sprintf("call to undefined function %q", name), cause)
}

func (in *Interp) callIR(f *ir.Func, args []Value) (v Value, err error) {
	in.depth++
	defer func() { in.depth-- }()
	if in.depth > in.maxCallDepth {
		frameBytes := uint64(in.arch.PtrBytes) * uint64(len(in.stack.cells)+len(in.heap.cells))
		cause := fmt.Errorf("depth %d exceeds max call depth %d with %s of stack/heap cells reserved",
			in.depth, in.maxCallDepth, errs.FormatBytes(frameBytes))
		return nil, errs.NewFatal("call stack overflow", cause)
	}

	fr := &frame{f: f, regs: make([]Value, f.NumRegs), cur: f.Entry, prev: -1}
	for i, a := range args {
		if i < f.ArgCount {
			fr.regs[i] = a
		}
	}

	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(*errs.Fatal); ok {
				err = fe
				return
			}
			var cause error
			if re, ok := r.(error); ok {
				cause = re
			} else {
				cause = fmt.Errorf("%v", r)
			}
			err = errs.NewFatal(fmt.Sprintf("interpreter panic: %v", r), cause)
		}
	}()

	for {
		blk := f.Blocks[fr.cur]
		for _, cmd := range blk.Commands {
			in.exec(fr, cmd)
		}
		switch blk.Exit.Kind {
		case ir.ExitUnconditional:
			fr.prev, fr.cur = fr.cur, blk.Exit.Target
		case ir.ExitConditional:
			cond, _ := in.resolve(fr, blk.Exit.CondReg).(bool)
			next := blk.Exit.FalseTarget
			if cond {
				next = blk.Exit.TrueTarget
			}
			fr.prev, fr.cur = fr.cur, next
		case ir.ExitBlockSeq:
			idx, ok := toInt(in.resolve(fr, blk.Exit.SeqReg))
			if !ok || idx < 0 || int(idx) >= len(blk.Exit.Table) {
				cause := fmt.Errorf("index %v out of range for a %d-entry jump table", idx, len(blk.Exit.Table))
				return nil, errs.NewFatal("block-sequence jump index out of range", cause)
			}
			fr.prev, fr.cur = fr.cur, blk.Exit.Table[idx]
		case ir.ExitReturn:
			return fr.retSlot, nil
		default:
			return nil, errs.NewFatal("unreachable block exit kind", nil)
		}
	}
}

// resolve reads an ir.Value: the register file for a register operand,
// or a literal constant (ReadOnlyData strings are resolved here too).
func (in *Interp) resolve(fr *frame, v ir.Value) Value {
	if v.IsReg {
		return fr.regs[v.Reg]
	}
	if addr, ok := v.Const.(ir.Addr); ok && addr.Kind == ir.AddrReadOnly {
		return addr
	}
	return v.Const
}

func (in *Interp) resolveArgs(fr *frame, cmd ir.Command) []Value {
	out := make([]Value, len(cmd.Args))
	for i, a := range cmd.Args {
		out[i] = in.resolve(fr, a)
	}
	return out
}

func (in *Interp) setResult(fr *frame, cmd ir.Command, v Value) {
	if cmd.HasRes {
		fr.regs[cmd.Result] = v
	}
}

// exec dispatches one command. Arithmetic/comparison/conversion read
// Command.Type to pick the right numeric kind, matching the builder's
// "one opcode per op, width/signedness carried on Type" convention
// (see internal/irbuilder's DESIGN.md entry).
func (in *Interp) exec(fr *frame, cmd ir.Command) {
	switch cmd.Op {
	case ir.OpNop:
		// no-op

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpBAnd, ir.OpBOr, ir.OpBXor:
		args := in.resolveArgs(fr, cmd)
		in.setResult(fr, cmd, arith(cmd.Op, args[0], args[1]))

	case ir.OpNeg:
		args := in.resolveArgs(fr, cmd)
		in.setResult(fr, cmd, negate(args[0]))

	case ir.OpNot, ir.OpBNot:
		args := in.resolveArgs(fr, cmd)
		b, _ := args[0].(bool)
		in.setResult(fr, cmd, !b)

	case ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe, ir.OpEq, ir.OpNe:
		args := in.resolveArgs(fr, cmd)
		in.setResult(fr, cmd, compare(cmd.Op, args[0], args[1]))

	case ir.OpTrunc, ir.OpExtend, ir.OpCast:
		args := in.resolveArgs(fr, cmd)
		in.setResult(fr, cmd, convert(cmd.Type, args[0]))

	case ir.OpAlloca:
		t, _ := cmd.Type.(*types.Type)
		n := in.cellsFor(t)
		off := in.stack.reserve(n)
		in.setResult(fr, cmd, ir.Addr{Kind: ir.AddrStack, Offset: off})

	case ir.OpLoad:
		args := in.resolveArgs(fr, cmd)
		in.setResult(fr, cmd, in.load(args[0]))

	case ir.OpStore:
		args := in.resolveArgs(fr, cmd)
		in.store(args[0], args[1])

	case ir.OpField:
		args := in.resolveArgs(fr, cmd)
		idx, _ := toInt(args[1])
		in.setResult(fr, cmd, offsetAddr(args[0], idx))

	case ir.OpPtrIncr:
		args := in.resolveArgs(fr, cmd)
		idx, _ := toInt(args[1])
		in.setResult(fr, cmd, offsetAddr(args[0], idx))

	case ir.OpArrayLength, ir.OpArrayData:
		panic(errs.NewFatal(fmt.Sprintf("NOT_YET: %s (dynamic arrays are not lowered by internal/irbuilder yet)", cmd.Op),
			fmt.Errorf("opcode %s has no interpreter implementation", cmd.Op)))

	case ir.OpCall:
		in.execCall(fr, cmd)

	case ir.OpSetReturn:
		args := in.resolveArgs(fr, cmd)
		fr.retSlot = args[0]

	case ir.OpPhi:
		for _, e := range cmd.PhiIncoming {
			if e.Pred == fr.prev {
				in.setResult(fr, cmd, in.resolve(fr, e.Value))
				return
			}
		}
		panic(errs.NewFatal(fmt.Sprintf("UNREACHABLE: phi has no incoming edge for predecessor block %d", fr.prev), nil))

	case ir.OpPrint:
		args := in.resolveArgs(fr, cmd)
		fmt.Println(in.display(args[0]))

	case ir.OpFree:
		args := in.resolveArgs(fr, cmd)
		if addr, ok := args[0].(ir.Addr); ok && addr.Kind == ir.AddrHeap {
			*in.heap.at(addr.Offset) = nil
		}
		// A Stack address frees automatically when its frame returns;
		// freeing one early is a no-op here, matching this interpreter's
		// cell-arena model rather than a real allocator.

	case ir.OpCreateStruct, ir.OpAddField, ir.OpFinalizeStruct,
		ir.OpCreateEnum, ir.OpAddEnumerator, ir.OpFinalizeEnum,
		ir.OpCreateFlags, ir.OpFinalizeFlags,
		ir.OpCreateTuple, ir.OpCreateVariant,
		ir.OpContextualize:
		panic(errs.NewFatal(fmt.Sprintf("NOT_YET: %s (compile-time type construction is not emitted by internal/irbuilder yet)", cmd.Op),
			fmt.Errorf("opcode %s has no interpreter implementation", cmd.Op)))

	default:
		panic(errs.NewFatal(fmt.Sprintf("UNREACHABLE: unhandled opcode %s", cmd.Op), nil))
	}
}

func (in *Interp) execCall(fr *frame, cmd ir.Command) {
	if len(cmd.Args) == 0 {
		panic(errs.NewFatal("UNREACHABLE: call with no callee operand", nil))
	}
	nameVal := in.resolve(fr, cmd.Args[0])
	name, ok := nameVal.(string)
	if !ok {
		panic(errs.NewFatal(fmt.Sprintf("UNREACHABLE: call callee operand is %T, want a function name", nameVal), nil))
	}
	args := make([]Value, len(cmd.Args)-1)
	for i, a := range cmd.Args[1:] {
		args[i] = in.resolve(fr, a)
	}
	ret, err := in.Call(name, args)
	if err != nil {
		panic(err)
	}
	in.setResult(fr, cmd, ret)
}

// cellsFor is how many cells Alloca(T) reserves: one per scalar, one
// per element/field for the composite kinds a stack slot can directly
// hold (spec.md §4.I "Alloca(T) bumps the stack pointer... reserves T's
// bytes" — reinterpreted here as reserving T's cells, see package doc).
func (in *Interp) cellsFor(t *types.Type) int {
	if t == nil {
		return 1
	}
	switch t.Kind {
	case types.KArray:
		n := 1
		if t.ArrLen != nil {
			n = int(*t.ArrLen)
		}
		if n < 1 {
			n = 1
		}
		return n
	case types.KStruct:
		if t.Struct != nil {
			return max1(len(t.Struct.Fields))
		}
		return 1
	case types.KTuple:
		return max1(len(t.Entries))
	default:
		return 1
	}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func (in *Interp) cell(addr ir.Addr) *Value {
	switch addr.Kind {
	case ir.AddrStack:
		return in.stack.at(addr.Offset)
	case ir.AddrHeap:
		return in.heap.at(addr.Offset)
	default:
		panic(errs.NewFatal("cannot write through a read-only address", nil))
	}
}

func (in *Interp) load(v Value) Value {
	addr, ok := v.(ir.Addr)
	if !ok {
		panic(errs.NewFatal(fmt.Sprintf("UNREACHABLE: load operand is %T, want an address", v),
			fmt.Errorf("value %v of type %T is not an ir.Addr", v, v)))
	}
	if addr.Kind == ir.AddrReadOnly {
		return string(in.ro.ReadInterned(addr.Offset))
	}
	return *in.cell(addr)
}

func (in *Interp) store(dst, val Value) {
	addr, ok := dst.(ir.Addr)
	if !ok {
		panic(errs.NewFatal(fmt.Sprintf("UNREACHABLE: store destination is %T, want an address", dst),
			fmt.Errorf("value %v of type %T is not an ir.Addr", dst, dst)))
	}
	*in.cell(addr) = val
}

// offsetAddr advances a Stack/Heap address by idx cells (Field and
// PtrIncr share this: both are "the i-th cell past base" once layout
// is cell-granular rather than byte-granular).
func offsetAddr(base Value, idx int64) Value {
	addr, ok := base.(ir.Addr)
	if !ok {
		panic(errs.NewFatal(fmt.Sprintf("UNREACHABLE: field/index base is %T, want an address", base), nil))
	}
	addr.Offset += idx
	return addr
}

func toInt(v Value) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

func (in *Interp) display(v Value) string {
	if s, ok := v.(ir.Addr); ok && s.Kind == ir.AddrReadOnly {
		return string(in.ro.ReadInterned(s.Offset))
	}
	return fmt.Sprintf("%v", v)
}

// arith evaluates an arithmetic/bitwise binary opcode. Operands are
// expected to already be same-kind, same-width Go values: the type
// checker's binopType rejects any source expression that would violate
// that before irbuilder ever emits the command.
func arith(op ir.Opcode, a, b Value) Value {
	if fa, ok := toFloat(a); ok {
		fb, _ := toFloat(b)
		switch op {
		case ir.OpAdd:
			return fa + fb
		case ir.OpSub:
			return fa - fb
		case ir.OpMul:
			return fa * fb
		case ir.OpDiv:
			return fa / fb
		case ir.OpMod:
			return math.Mod(fa, fb)
		}
	}
	ia, _ := toInt(a)
	ib, _ := toInt(b)
	var r int64
	switch op {
	case ir.OpAdd:
		r = ia + ib
	case ir.OpSub:
		r = ia - ib
	case ir.OpMul:
		r = ia * ib
	case ir.OpDiv:
		if ib == 0 {
			panic(errs.NewFatal("integer division by zero", nil))
		}
		r = ia / ib
	case ir.OpMod:
		if ib == 0 {
			panic(errs.NewFatal("integer modulo by zero", nil))
		}
		r = ia % ib
	case ir.OpBAnd:
		r = ia & ib
	case ir.OpBOr:
		r = ia | ib
	case ir.OpBXor:
		r = ia ^ ib
	}
	return reboxLike(a, r)
}

func negate(v Value) Value {
	if f, ok := toFloat(v); ok {
		if _, isF32 := v.(float32); isF32 {
			return float32(-f)
		}
		return -f
	}
	i, _ := toInt(v)
	return reboxLike(v, -i)
}

// reboxLike returns r re-typed to match sample's Go type, since Go's
// arithmetic above is always done in int64/float64 but a register's
// declared width (int32, uint32, ...) must round-trip through it.
func reboxLike(sample Value, r int64) Value {
	switch sample.(type) {
	case int32:
		return int32(r)
	case uint32:
		return uint32(r)
	case uint64:
		return uint64(r)
	default:
		return r
	}
}

func toFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func compare(op ir.Opcode, a, b Value) bool {
	if fa, ok := toFloat(a); ok {
		fb, _ := toFloat(b)
		return compareOrdered(op, fa, fb)
	}
	if ia, ok := toInt(a); ok {
		ib, _ := toInt(b)
		return compareOrdered(op, ia, ib)
	}
	switch op {
	case ir.OpEq:
		return a == b
	case ir.OpNe:
		return a != b
	default:
		panic(errs.NewFatal(fmt.Sprintf("UNREACHABLE: ordered comparison on non-numeric operand %T", a), nil))
	}
}

type ordered interface{ ~int64 | ~float64 }

func compareOrdered[T ordered](op ir.Opcode, a, b T) bool {
	switch op {
	case ir.OpLt:
		return a < b
	case ir.OpLe:
		return a <= b
	case ir.OpGt:
		return a > b
	case ir.OpGe:
		return a >= b
	case ir.OpEq:
		return a == b
	case ir.OpNe:
		return a != b
	default:
		panic(errs.NewFatal("UNREACHABLE: non-comparison opcode reached compareOrdered", nil))
	}
}

// convert implements Trunc/Extend/Cast by routing through the target
// type's primitive kind, mirroring internal/irbuilder's lowerCast
// choice of opcode (integer widening/narrowing vs everything else).
func convert(typ interface{}, v Value) Value {
	t, _ := typ.(*types.Type)
	if t == nil || t.Kind != types.KPrimitive {
		return v
	}
	switch t.Prim {
	case types.I32:
		i, _ := toInt(v)
		return int32(i)
	case types.I64:
		i, _ := toInt(v)
		return int64(i)
	case types.U32:
		i, _ := toInt(v)
		return uint32(i)
	case types.U64:
		i, _ := toInt(v)
		return uint64(i)
	case types.F32:
		if f, ok := toFloat(v); ok {
			return float32(f)
		}
		i, _ := toInt(v)
		return float32(i)
	case types.F64:
		if f, ok := toFloat(v); ok {
			return f
		}
		i, _ := toInt(v)
		return float64(i)
	case types.Bool:
		i, _ := toInt(v)
		return i != 0
	default:
		return v
	}
}
