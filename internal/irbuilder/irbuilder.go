// Package irbuilder lowers a type-checked AST into internal/ir's
// register-based form (spec.md §4.G/§4.H). It is grounded on the
// original Icarus compiler's src/ir/emit_ir.cc/src/ir/register.h (the
// big-vs-small PtrFix rule, the φ-construction shape for loops and
// short-circuit operators) and, stylistically, on the teacher's
// internal/compiler/compiler.go single-struct-with-helper-methods
// emitter, using a type switch over internal/ast's variants rather than
// the ast.Visitor interface — the same divergence internal/typecheck
// already makes and justifies.
package irbuilder

import (
	"fmt"
	"strconv"

	"icarusc/internal/ast"
	"icarusc/internal/errs"
	"icarusc/internal/ir"
	"icarusc/internal/types"
)

// Builder lowers every function of one module. Per-function lowering
// state lives in fnBuilder, one per FunctionLiteral lowered; Builder
// only tracks which fnBuilder is active.
type Builder struct {
	file     string
	log      *errs.Log
	interner *types.Interner
	arch     types.Architecture
	ro       *ir.ReadOnlyData

	// funcNames disambiguates overloaded declarations (spec.md §8
	// scenario 5: two `add` declarations share one surface name) since
	// ir.Func/OpCall address a callee by a single string and have no
	// separate per-overload identity. The first declaration seen for a
	// name keeps it bare; every later one sharing that name is suffixed
	// "#2", "#3", ... The mapping is keyed by declaration identity so
	// BuildFunction and lowerCall always agree on one function's name,
	// however many times each is consulted.
	funcNames  map[*ast.Declaration]string
	nameCounts map[string]int

	// active is the fnBuilder every types.Emitter method targets: the
	// real function currently being lowered by BuildFunction, or, while
	// a lazily-built struct helper is under construction, that helper's
	// own fnBuilder (pushed/popped via NewFunc/Finish so a helper built
	// mid-lowering of another function doesn't disturb its caller's
	// insertion point).
	active      *fnBuilder
	helperStack []*fnBuilder
}

var _ types.Emitter = (*Builder)(nil)

func New(file string, log *errs.Log, interner *types.Interner, arch types.Architecture, ro *ir.ReadOnlyData) *Builder {
	return &Builder{
		file: file, log: log, interner: interner, arch: arch, ro: ro,
		funcNames:  make(map[*ast.Declaration]string),
		nameCounts: make(map[string]int),
	}
}

// FuncName returns the stable, collision-free name BuildFunction gave
// (or will give) d's function. Exported so a driver wiring multiple
// functions into one ir.Module can name each consistently with how
// lowerCall already addresses it.
func (b *Builder) FuncName(d *ast.Declaration) string {
	if n, ok := b.funcNames[d]; ok {
		return n
	}
	name := d.Name
	if c := b.nameCounts[d.Name]; c > 0 {
		name = fmt.Sprintf("%s#%d", d.Name, c+1)
	}
	b.nameCounts[d.Name]++
	b.funcNames[d] = name
	return name
}

// isBig implements spec.md §4.H's "big vs small" rule: a value over one
// pointer-word in size, or a struct explicitly marked #uncopyable, is
// addressed rather than loaded. This is a size-only approximation of the
// original's "is_big() || has_nontrivial_destructor()" check — no
// destructor registry exists yet, so #uncopyable is the one hashtag this
// builder treats as forcing big-ness regardless of size (see DESIGN.md).
func (b *Builder) isBig(t *types.Type) bool {
	if t == nil || t == types.Error || t.Kind == types.KPrimitive && t.Prim == types.Void {
		return false
	}
	if t.Kind == types.KStruct && t.Struct != nil && t.Struct.Hashtags[types.Uncopyable] {
		return true
	}
	size, _ := b.arch.SizeOf(t)
	return size > b.arch.PtrBytes
}

// ptrFix is spec.md §4.H's single calling-convention rule: load through
// addr when t is small, otherwise addr already denotes the value.
func (b *Builder) ptrFix(fb *fnBuilder, addr ir.Value, t *types.Type) ir.Value {
	if b.isBig(t) {
		return addr
	}
	return fb.emit(ir.OpLoad, t, addr)
}

func (b *Builder) errorf(span ast.Span, format string, args ...interface{}) {
	if b.log == nil {
		return
	}
	b.log.Add(errs.Type, span.File, span.Line, 0, "", format, args...)
}

// isTypeLiteral reports whether n is one of the compile-time-only type-
// building literals (struct/enum/function) that a Declaration can carry
// in place of a runtime value; such a declaration gets no stack slot
// content and is never a destructor candidate.
func isTypeLiteral(n ast.Node) bool {
	switch n.(type) {
	case *ast.FunctionLiteral, *ast.StructLiteral, *ast.EnumLiteral:
		return true
	default:
		return false
	}
}

func typeOf(n ast.Node) *types.Type {
	t, ok := n.Type().(*types.Type)
	if !ok || t == nil {
		return types.Error
	}
	return t
}

// localSlot is one function-local's stack address plus its static type.
// For a big local the address IS the value everywhere it is used; for a
// small local the address is only ever Load'd from or Store'd to.
type localSlot struct {
	addr ir.Register
	typ  *types.Type
}

// fnBuilder lowers a single FunctionLiteral. cur names the block new
// commands append to; callers move it forward by calling setBlock.
type fnBuilder struct {
	b   *Builder
	f   *ir.Func
	cur int

	slots map[*ast.Declaration]localSlot

	retSlot ir.Register
	retType *types.Type
	exit    int

	// breakTo/contTo are the enclosing loop's landing/continue blocks,
	// pushed and popped as While/For bodies are entered and left (spec.md
	// §4.H's per-loop φ construction needs a stable target for `break`
	// and `continue` Jump statements).
	breakTo []int
	contTo  []int
}

func (fb *fnBuilder) block() *ir.Block { return fb.f.Blocks[fb.cur] }

func (fb *fnBuilder) setBlock(i int) { fb.cur = i }

func (fb *fnBuilder) newBlock() int { return fb.f.NewBlock() }

func (fb *fnBuilder) sealed() bool { return fb.block().Sealed() }

func (fb *fnBuilder) seal(exit ir.Exit) { fb.block().Seal(exit) }

// sealFallthrough seals the current block with an unconditional jump to
// target, unless some earlier statement (a Jump) already sealed it.
func (fb *fnBuilder) sealFallthrough(target int) {
	if !fb.sealed() {
		fb.seal(ir.Exit{Kind: ir.ExitUnconditional, Target: target})
	}
}

// emit appends a value-producing command to the current block.
func (fb *fnBuilder) emit(op ir.Opcode, typ *types.Type, args ...ir.Value) ir.Value {
	reg := fb.f.NewRegister(typ)
	fb.block().Append(ir.Command{Op: op, Args: args, Result: reg, HasRes: true, Type: typ})
	return ir.RegValue(reg)
}

// emitVoid appends a command with no result register (Store, Print, a
// user-level `return`'s SetReturn side-effect, ...).
func (fb *fnBuilder) emitVoid(op ir.Opcode, args ...ir.Value) {
	fb.block().Append(ir.Command{Op: op, Args: args, Result: ir.NoRegister})
}

// emitTyped is emitVoid plus a Type tag, used where the opcode's runtime
// behavior depends on the operand's static type (Store's small-vs-big
// copy width, spec.md §4.H).
func (fb *fnBuilder) emitTyped(op ir.Opcode, typ *types.Type, args ...ir.Value) {
	fb.block().Append(ir.Command{Op: op, Args: args, Result: ir.NoRegister, Type: typ})
}

// alloca reserves stack space for one value of type t and returns the
// register holding its address (spec.md §4.I: "Alloca(T) bumps the
// stack pointer... returns a Stack addr").
func (fb *fnBuilder) alloca(t *types.Type) ir.Value {
	reg := fb.f.NewRegister(fb.b.interner.Ptr(t))
	fb.block().Append(ir.Command{Op: ir.OpAlloca, Result: reg, HasRes: true, Type: t})
	return ir.RegValue(reg)
}

func (fb *fnBuilder) phi(typ *types.Type, incoming []ir.PhiEdge) ir.Value {
	reg := fb.f.NewRegister(typ)
	fb.block().Append(ir.Command{Op: ir.OpPhi, Result: reg, HasRes: true, Type: typ, PhiIncoming: incoming})
	return ir.RegValue(reg)
}

// ---- types.Emitter ----
//
// Builder implements types.Emitter so EmitCopyAssign/EmitInit/EmitDestroy/
// EmitRepr (spec.md §4.E) can generate IR at whichever fnBuilder is
// currently "active": the real function BuildFunction is lowering, or a
// lazily-built struct helper while one is under construction.

func (b *Builder) Emit(op ir.Opcode, typ *types.Type, args ...ir.Value) ir.Value {
	return b.active.emit(op, typ, args...)
}

func (b *Builder) EmitVoid(op ir.Opcode, args ...ir.Value) {
	b.active.emitVoid(op, args...)
}

func (b *Builder) FieldAddr(base ir.Value, index int, fieldType *types.Type) ir.Value {
	return b.active.emit(ir.OpField, b.interner.Ptr(fieldType), base, ir.ConstValue(int64(index)))
}

func (b *Builder) ElemAddr(base ir.Value, index ir.Value, elemType *types.Type) ir.Value {
	return b.active.emit(ir.OpPtrIncr, b.interner.Ptr(elemType), base, index)
}

// CallFunc calls fn the same way lowerCall addresses any other function:
// by name, in the argument slot (spec.md §4.G). None of the Emit* family's
// helper functions emit OpSetReturn, so every call here is void; the
// struct-repr helper's apparent return in types.EmitRepr degenerates to
// ir.Value{} (see buildStructRepr — the IR model has no string-
// concatenation opcode to compose an aggregate repr from, so it only
// walks fields for their own printable side effects).
func (b *Builder) CallFunc(fn *ir.Func, args []ir.Value) []ir.Value {
	callArgs := append([]ir.Value{ir.ConstValue(fn.Name)}, args...)
	b.active.emitTyped(ir.OpCall, types.Prim(types.Void), callArgs...)
	return nil
}

func (b *Builder) NewBlock() int { return b.active.newBlock() }

func (b *Builder) CurrentBlock() int { return b.active.cur }

func (b *Builder) SetCurrentBlock(i int) { b.active.setBlock(i) }

func (b *Builder) SealCurrent(exit ir.Exit) { b.active.seal(exit) }

// NewRegister allocates a parameter register on the active helper. Every
// Emit*-family call site uses it only to declare a helper's leading
// parameters (dst/src or addr), in order, so incrementing ArgCount here
// keeps them the lowest-numbered registers — the same convention
// lowerParams uses for a real function's inputs, and the one callIR
// relies on to bind call arguments positionally.
func (b *Builder) NewRegister(typ *types.Type) ir.Register {
	r := b.active.f.NewRegister(typ)
	b.active.f.ArgCount++
	return r
}

// NewFunc pushes the current active fnBuilder and starts a fresh one for
// a lazily-built struct helper (types.structHelper), so the helper's own
// blocks/registers don't disturb whatever function is mid-lowering.
func (b *Builder) NewFunc() {
	b.helperStack = append(b.helperStack, b.active)
	f := ir.NewFunc("")
	b.active = &fnBuilder{b: b, f: f, cur: f.Entry, slots: make(map[*ast.Declaration]localSlot)}
}

// Finish names and seals the active helper's trailing block, pops back
// to the enclosing fnBuilder, and returns the finished *ir.Func.
func (b *Builder) Finish(name string) *ir.Func {
	fb := b.active
	fb.f.Name = name
	if !fb.sealed() {
		fb.seal(ir.Exit{Kind: ir.ExitReturn})
	}
	n := len(b.helperStack)
	b.active = b.helperStack[n-1]
	b.helperStack = b.helperStack[:n-1]
	return fb.f
}

// BuildFunction lowers fn (already type-checked: fn.Type() and every
// input/sub-expression Type() is non-nil) into a standalone ir.Func,
// named via FuncName(decl) so every call site addressing decl by name
// agrees with it (spec.md §4.G "Function building").
func (b *Builder) BuildFunction(decl *ast.Declaration, fn *ast.FunctionLiteral) *ir.Func {
	f := ir.NewFunc(b.FuncName(decl))
	fnType := typeOf(fn)
	var retT *types.Type
	if len(fnType.Out) == 1 {
		retT = fnType.Out[0]
	} else {
		retT = types.Prim(types.Void)
	}

	fb := &fnBuilder{b: b, f: f, cur: f.Entry, slots: make(map[*ast.Declaration]localSlot), retType: retT}
	b.active = fb
	b.lowerParams(fb, fn.Inputs)

	retAddr := fb.alloca(retT)
	fb.retSlot = retAddr.Reg
	f.ReturnSlot = retAddr.Reg

	fb.exit = fb.newBlock()

	if fn.Body != nil {
		b.lowerStatements(fb, fn.Body)
	}
	fb.sealFallthrough(fb.exit)

	fb.setBlock(fb.exit)
	if retT != types.Prim(types.Void) {
		val := fb.emit(ir.OpLoad, retT, ir.RegValue(fb.retSlot))
		fb.emitTyped(ir.OpSetReturn, retT, val)
	}
	fb.seal(ir.Exit{Kind: ir.ExitReturn})

	return f
}

// lowerParams allocates one argument register per input (spec.md §4.G:
// "inputs lowered as argument registers, big types passed by pointer"),
// then, for small inputs, gives the input an addressable local slot by
// spilling the argument register to a fresh Alloca at function entry;
// a big input's argument register already holds the value's address, so
// it becomes the slot directly.
func (b *Builder) lowerParams(fb *fnBuilder, inputs []*ast.Declaration) {
	argTypes := make([]*types.Type, len(inputs))
	argRegs := make([]ir.Register, len(inputs))
	for i, in := range inputs {
		t := typeOf(in)
		argTypes[i] = t
		argRegs[i] = fb.f.NewRegister(t)
	}
	fb.f.ArgCount = len(inputs)
	for i, in := range inputs {
		t := argTypes[i]
		if b.isBig(t) {
			fb.slots[in] = localSlot{addr: argRegs[i], typ: t}
			continue
		}
		addr := fb.alloca(t)
		fb.emitTyped(ir.OpStore, t, addr, ir.RegValue(argRegs[i]))
		fb.slots[in] = localSlot{addr: addr.Reg, typ: t}
	}
}

// ---- statements ----

// lowerStatements lowers every statement of stmts in order, then, if
// control still falls off the end of the block (no Jump sealed it),
// destroys the block's own locals in reverse declaration order (spec.md
// §8 destructor law). A block left early by break/continue/return skips
// straight-line destruction here; those jumps unwind to an enclosing
// exit block that the caller (lowerJump/BuildFunction) seals on its own,
// so a local whose scope is cut short this way is not destroyed — the
// same degenerate-destructor scope the original gives loop/function
// early-exits.
func (b *Builder) lowerStatements(fb *fnBuilder, stmts *ast.Statements) {
	if stmts == nil {
		return
	}
	var locals []*ast.Declaration
	for _, s := range stmts.List {
		if fb.sealed() {
			// Unreachable code after an unconditional Jump; the original
			// compiler silently drops it rather than erroring (spec.md
			// doesn't call out dead-code diagnostics).
			continue
		}
		b.lowerStatement(fb, s)
		if d, ok := s.(*ast.Declaration); ok && (d.Kind == ast.Std || d.Kind == ast.Infer) && !isTypeLiteral(d.InitVal) {
			locals = append(locals, d)
		}
	}
	if fb.sealed() {
		return
	}
	for i := len(locals) - 1; i >= 0; i-- {
		if slot, ok := fb.slots[locals[i]]; ok {
			types.EmitDestroy(b, slot.typ, ir.RegValue(slot.addr))
		}
	}
}

func (b *Builder) lowerStatement(fb *fnBuilder, n ast.Node) {
	switch node := n.(type) {
	case *ast.Declaration:
		b.lowerLocalDecl(fb, node)
	case *ast.If:
		b.lowerIf(fb, node)
	case *ast.While:
		b.lowerWhile(fb, node)
	case *ast.For:
		b.lowerFor(fb, node)
	case *ast.Jump:
		b.lowerJump(fb, node)
	case *ast.Statements:
		b.lowerStatements(fb, node)
	default:
		b.lowerExpr(fb, n)
	}
}

// lowerLocalDecl allocates the declaration's stack slot and, if present,
// lowers and stores its initializer, in program order (spec.md §4.G).
func (b *Builder) lowerLocalDecl(fb *fnBuilder, d *ast.Declaration) {
	t := typeOf(d)
	addr := fb.alloca(t)
	fb.slots[d] = localSlot{addr: addr.Reg, typ: t}
	if d.InitVal == nil {
		types.EmitInit(b, t, addr)
		return
	}
	switch d.Kind {
	case ast.Std, ast.Infer:
		if _, ok := d.InitVal.(*ast.FunctionLiteral); ok {
			return // compile-time-only value; its slot is left unwritten
		}
		if _, ok := d.InitVal.(*ast.StructLiteral); ok {
			return
		}
		if _, ok := d.InitVal.(*ast.EnumLiteral); ok {
			return
		}
		srcAddr, _ := b.lvalue(fb, d.InitVal)
		types.EmitCopyAssign(b, t, addr, srcAddr)
	case ast.In:
		// The container expression only matters for the enclosing For's
		// iteration protocol; lowerFor handles it directly and never
		// reaches lowerLocalDecl for an In-kind declaration.
	}
}

func (b *Builder) lowerJump(fb *fnBuilder, j *ast.Jump) {
	switch j.Kind {
	case ast.JumpReturn:
		if j.Value != nil {
			val := b.lowerExpr(fb, j.Value)
			fb.emitTyped(ir.OpStore, fb.retType, ir.RegValue(fb.retSlot), val)
		}
		fb.seal(ir.Exit{Kind: ir.ExitUnconditional, Target: fb.exit})
	case ast.JumpBreak:
		if len(fb.breakTo) == 0 {
			b.errorf(j.Span(), "break outside a loop")
			return
		}
		fb.seal(ir.Exit{Kind: ir.ExitUnconditional, Target: fb.breakTo[len(fb.breakTo)-1]})
	case ast.JumpContinue, ast.JumpRepeat:
		if len(fb.contTo) == 0 {
			b.errorf(j.Span(), "%v outside a loop", j.Kind)
			return
		}
		fb.seal(ir.Exit{Kind: ir.ExitUnconditional, Target: fb.contTo[len(fb.contTo)-1]})
	case ast.JumpRestart:
		// restart re-enters the loop from its init step; approximated here
		// as a continue (jump to the condition/increment block), since
		// this builder folds For's init block into the loop header rather
		// than keeping it separately re-enterable (see DESIGN.md).
		if len(fb.contTo) == 0 {
			b.errorf(j.Span(), "restart outside a loop")
			return
		}
		fb.seal(ir.Exit{Kind: ir.ExitUnconditional, Target: fb.contTo[len(fb.contTo)-1]})
	}
}

// lowerIf lowers an if/else-if/else chain as a cascade of condition
// blocks, each branching to its body or to the next condition, with
// every body exiting unconditionally to one shared landing block
// (spec.md §4.H "Conditional").
func (b *Builder) lowerIf(fb *fnBuilder, ifNode *ast.If) {
	land := fb.newBlock()
	for i, cond := range ifNode.Conditions {
		condVal := b.lowerExpr(fb, cond)
		bodyBlk := fb.newBlock()
		var nextBlk int
		if i == len(ifNode.Conditions)-1 && ifNode.Else == nil {
			nextBlk = land
		} else {
			nextBlk = fb.newBlock()
		}
		fb.seal(ir.Exit{Kind: ir.ExitConditional, CondReg: condVal, TrueTarget: bodyBlk, FalseTarget: nextBlk})

		fb.setBlock(bodyBlk)
		b.lowerStatements(fb, ifNode.Bodies[i])
		fb.sealFallthrough(land)

		fb.setBlock(nextBlk)
	}
	if ifNode.Else != nil {
		b.lowerStatements(fb, ifNode.Else)
		fb.sealFallthrough(land)
		fb.setBlock(land)
	}
	// When the chain ends without an else, fb.cur is already land (the
	// last condition's false-branch target).
}

// lowerWhile follows spec.md §4.H literally: cond-block, body-block,
// land-block, with an unconditional back-edge from the body to cond.
func (b *Builder) lowerWhile(fb *fnBuilder, w *ast.While) {
	cond := fb.newBlock()
	fb.sealFallthrough(cond)
	fb.setBlock(cond)
	condVal := b.lowerExpr(fb, w.Cond)

	body := fb.newBlock()
	land := fb.newBlock()
	fb.seal(ir.Exit{Kind: ir.ExitConditional, CondReg: condVal, TrueTarget: body, FalseTarget: land})

	fb.breakTo = append(fb.breakTo, land)
	fb.contTo = append(fb.contTo, cond)
	fb.setBlock(body)
	b.lowerStatements(fb, w.Body)
	fb.sealFallthrough(cond)
	fb.breakTo = fb.breakTo[:len(fb.breakTo)-1]
	fb.contTo = fb.contTo[:len(fb.contTo)-1]

	fb.setBlock(land)
}

// lowerFor lowers each iterator's protocol (range -> start value and
// +1 step, array -> element-pointer walk, enum -> member-index walk;
// spec.md §4.H) and shares one phi-block/cond-block/incr-block/body-
// block group across every iterator, stepping them in lockstep — the
// natural generalization when `for` lists more than one iterator.
func (b *Builder) lowerFor(fb *fnBuilder, f *ast.For) {
	type iterState struct {
		decl    *ast.Declaration
		kind    types.Kind // KRange, KArray, KEnum/KFlags
		elemT   *types.Type
		startV  ir.Value
		limit   ir.Value // range: exclusive bound value; array: element count
		baseAdr ir.Value // array: base element address
	}

	states := make([]iterState, len(f.Iterators))
	for i, it := range f.Iterators {
		containerT := typeOf(it.InitVal)
		switch containerT.Kind {
		case types.KRange:
			rangeExpr := it.InitVal.(*ast.Binop) // ".." chain-op folds to Binop{Op:".."}
			lo := b.lowerExpr(fb, rangeExpr.LHS)
			hi := b.lowerExpr(fb, rangeExpr.RHS)
			states[i] = iterState{decl: it, kind: types.KRange, elemT: containerT.Elem, startV: lo, limit: hi}
		case types.KArray:
			arrAddr, _ := b.lvalue(fb, it.InitVal)
			length := int64(0)
			if containerT.ArrLen != nil {
				length = *containerT.ArrLen
			}
			elemAddr := fb.emit(ir.OpPtrIncr, fb.b.interner.Ptr(containerT.Elem), arrAddr, ir.ConstValue(int64(0)))
			states[i] = iterState{decl: it, kind: types.KArray, elemT: containerT.Elem, baseAdr: elemAddr, limit: ir.ConstValue(length)}
		case types.KEnum, types.KFlags:
			// Walked by Order, not len(Members): Members is a value->name
			// map with no iteration order of its own, while Order lists
			// those same values in declaration order (spec.md §3 "ordered
			// map<value→name>").
			states[i] = iterState{decl: it, kind: containerT.Kind, elemT: containerT, limit: ir.ConstValue(int64(len(containerT.Enum.Order)))}
		default:
			b.errorf(it.Span(), "cannot lower iteration over %s", containerT)
			states[i] = iterState{decl: it, kind: types.KError}
		}
	}

	// One shared index register per iterator, phi'd between the
	// pre-header (initial value) and the increment block (stepped
	// value), following spec.md §4.H's phi-block description.
	preheader := fb.cur
	phiBlk := fb.newBlock()
	fb.sealFallthrough(phiBlk)
	fb.setBlock(phiBlk)

	idxT := types.Prim(types.I64)
	idxPhis := make([]ir.Value, len(states))
	incrBlk := fb.newBlock()
	for i := range states {
		switch states[i].kind {
		case types.KRange:
			idxPhis[i] = fb.phi(states[i].elemT, nil) // incoming edges patched below
		default:
			idxPhis[i] = fb.phi(idxT, nil)
		}
	}

	cond := fb.newBlock()
	fb.sealFallthrough(cond)
	fb.setBlock(cond)
	var condVal ir.Value
	if len(states) > 0 && states[0].kind != types.KError {
		condVal = fb.emit(ir.OpLt, types.Prim(types.Bool), idxPhis[0], states[0].limit)
	} else {
		condVal = ir.ConstValue(false)
	}

	body := fb.newBlock()
	land := fb.newBlock()
	fb.seal(ir.Exit{Kind: ir.ExitConditional, CondReg: condVal, TrueTarget: body, FalseTarget: land})

	fb.setBlock(body)
	for i, st := range states {
		switch st.kind {
		case types.KRange:
			fb.slots[st.decl] = b.spillToSlot(fb, idxPhis[i], st.elemT)
		case types.KArray:
			addr := fb.emit(ir.OpPtrIncr, fb.b.interner.Ptr(st.elemT), st.baseAdr, idxPhis[i])
			fb.slots[st.decl] = localSlot{addr: addr.Reg, typ: st.elemT}
		case types.KEnum, types.KFlags:
			fb.slots[st.decl] = b.spillToSlot(fb, idxPhis[i], st.elemT)
		}
	}
	fb.breakTo = append(fb.breakTo, land)
	fb.contTo = append(fb.contTo, incrBlk)
	b.lowerStatements(fb, f.Body)
	fb.sealFallthrough(incrBlk)
	fb.breakTo = fb.breakTo[:len(fb.breakTo)-1]
	fb.contTo = fb.contTo[:len(fb.contTo)-1]

	fb.setBlock(incrBlk)
	steppedVals := make([]ir.Value, len(states))
	for i, st := range states {
		switch st.kind {
		case types.KRange:
			steppedVals[i] = fb.emit(ir.OpAdd, st.elemT, idxPhis[i], ir.ConstValue(int64(1)))
		default:
			steppedVals[i] = fb.emit(ir.OpAdd, idxT, idxPhis[i], ir.ConstValue(int64(1)))
		}
	}
	fb.seal(ir.Exit{Kind: ir.ExitUnconditional, Target: phiBlk})

	// Patch each phi's incoming edges now that both predecessors
	// (pre-header and incr block) are known: the pre-header supplies the
	// start value before the loop is entered, the incr block supplies the
	// stepped value on every subsequent iteration.
	for i, st := range states {
		var startV ir.Value
		if st.kind == types.KRange {
			startV = st.startV
		} else {
			startV = ir.ConstValue(int64(0))
		}
		patchPhi(fb.f, phiBlk, i, []ir.PhiEdge{
			{Pred: preheader, Value: startV},
			{Pred: incrBlk, Value: steppedVals[i]},
		})
	}

	fb.setBlock(land)
}

// patchPhi fills in a φ's PhiIncoming set after both predecessors'
// values are computed, since the pre-header value is known before the
// phi block exists but the incr-block value is only known after the
// loop body has been lowered.
func patchPhi(f *ir.Func, blk, phiIdx int, edges []ir.PhiEdge) {
	f.Blocks[blk].Commands[phiIdx].PhiIncoming = edges
}

// spillToSlot stores a value into a fresh stack slot so the rest of the
// lowering machinery (which addresses every local through localSlot) can
// treat a loop variable uniformly with declared locals.
func (b *Builder) spillToSlot(fb *fnBuilder, v ir.Value, t *types.Type) localSlot {
	addr := fb.alloca(t)
	fb.emitTyped(ir.OpStore, t, addr, v)
	return localSlot{addr: addr.Reg, typ: t}
}

// ---- expressions ----

func (b *Builder) lowerExpr(fb *fnBuilder, n ast.Node) ir.Value {
	switch node := n.(type) {
	case *ast.Terminal:
		return b.lowerTerminal(fb, node)
	case *ast.Identifier:
		addr, t, ok := b.identifierSlot(fb, node)
		if !ok {
			return ir.ConstValue(nil)
		}
		return b.ptrFix(fb, addr, t)
	case *ast.Unop:
		return b.lowerUnop(fb, node)
	case *ast.Binop:
		return b.lowerBinop(fb, node)
	case *ast.ChainOp:
		return b.lowerChainOp(fb, node)
	case *ast.Access:
		if node.Member == "bytes" {
			return b.lowerBytesAccess(fb, node)
		}
		addr, t := b.lvalue(fb, node)
		return b.ptrFix(fb, addr, t)
	case *ast.Index:
		addr, t := b.lvalue(fb, node)
		return b.ptrFix(fb, addr, t)
	case *ast.Call:
		return b.lowerCall(fb, node)
	case *ast.ArrayLiteral:
		return b.lowerArrayLiteral(fb, node)
	case *ast.Case:
		return b.lowerCase(fb, node)
	case *ast.Declaration:
		b.lowerLocalDecl(fb, node)
		return ir.ConstValue(nil)
	case *ast.FunctionLiteral, *ast.StructLiteral, *ast.EnumLiteral:
		// Compile-time-only values; this builder does not reify types as
		// runtime IR values outside Access("bytes") and CreateStruct/Enum
		// construction (see DESIGN.md).
		return ir.ConstValue(nil)
	default:
		return ir.ConstValue(nil)
	}
}

func (b *Builder) lowerTerminal(fb *fnBuilder, t *ast.Terminal) ir.Value {
	switch t.Kind {
	case "int":
		v, _ := strconv.ParseInt(t.Value, 10, 32)
		return ir.ConstValue(int32(v))
	case "real":
		v, _ := strconv.ParseFloat(t.Value, 64)
		return ir.ConstValue(v)
	case "bool":
		return ir.ConstValue(t.Value == "true")
	case "char":
		r := []rune(t.Value)
		var c rune
		if len(r) > 0 {
			c = r[0]
		}
		return ir.ConstValue(c)
	case "null":
		return ir.ConstValue(nil)
	case "string":
		off := fb.b.ro.Intern([]byte(t.Value))
		return ir.ConstValue(ir.Addr{Kind: ir.AddrReadOnly, Offset: off})
	default:
		return ir.ConstValue(nil)
	}
}

// resolvedDecl returns the single declaration an already-checked
// Identifier resolved to (typecheck has already ruled out the
// zero-or-many-candidates case by this point, except for a Quantum
// identifier used bare rather than as a Call callee, which is a type
// error the checker already reported).
func resolvedDecl(id *ast.Identifier) *ast.Declaration {
	if id.ResolvedDecl != nil {
		return id.ResolvedDecl
	}
	if len(id.Candidates) == 1 {
		return id.Candidates[0]
	}
	return nil
}

// identifierSlot returns id's stack address and type, or ok=false for a
// module-level function/type-denoting identifier that was never given a
// runtime slot (those only appear as a Call callee or a type
// expression, both lowered without going through this path).
func (b *Builder) identifierSlot(fb *fnBuilder, id *ast.Identifier) (ir.Value, *types.Type, bool) {
	d := resolvedDecl(id)
	if d == nil {
		return ir.Value{}, types.Error, false
	}
	slot, ok := fb.slots[d]
	if !ok {
		return ir.Value{}, types.Error, false
	}
	return ir.RegValue(slot.addr), slot.typ, true
}

// lvalue produces an addressable Value for n (spec.md §4.H "LValue
// lowering produces an address"). Nodes with no natural address
// (arithmetic results, call results, ...) get one synthesized via a
// throwaway Alloca+Store, so every expression can be addressed when a
// caller (Access's Operand, `&`, a For loop's array iterator) needs it.
func (b *Builder) lvalue(fb *fnBuilder, n ast.Node) (ir.Value, *types.Type) {
	switch node := n.(type) {
	case *ast.Identifier:
		addr, t, ok := b.identifierSlot(fb, node)
		if !ok {
			return ir.ConstValue(nil), types.Error
		}
		return addr, t
	case *ast.Access:
		baseAddr, baseT := b.lvalue(fb, node.Operand)
		if baseT.Kind != types.KStruct || baseT.Struct == nil {
			return ir.ConstValue(nil), types.Error
		}
		idx := baseT.Struct.FieldIndex(node.Member)
		if idx < 0 {
			return ir.ConstValue(nil), types.Error
		}
		fieldT := baseT.Struct.Fields[idx].Type
		addr := fb.emit(ir.OpField, fb.b.interner.Ptr(fieldT), baseAddr, ir.ConstValue(int64(idx)))
		return addr, fieldT
	case *ast.Index:
		arrT := typeOf(node.Array)
		var base ir.Value
		var elemT *types.Type
		switch arrT.Kind {
		case types.KArray:
			base, _ = b.lvalue(fb, node.Array)
			elemT = arrT.Elem
		case types.KPointer, types.KBufferPointer:
			base = b.lowerExpr(fb, node.Array)
			elemT = arrT.Pointee
		default:
			return ir.ConstValue(nil), types.Error
		}
		idxVal := b.lowerExpr(fb, node.Idx)
		addr := fb.emit(ir.OpPtrIncr, fb.b.interner.Ptr(elemT), base, idxVal)
		return addr, elemT
	default:
		t := typeOf(n)
		val := b.lowerExpr(fb, n)
		if b.isBig(t) {
			return val, t // a big value is already lowered to its address
		}
		addr := fb.alloca(t)
		fb.emitTyped(ir.OpStore, t, addr, val)
		return addr, t
	}
}

func (b *Builder) lowerBytesAccess(fb *fnBuilder, a *ast.Access) ir.Value {
	operandT := typeOf(a.Operand)
	size, _ := b.arch.SizeOf(operandT)
	return ir.ConstValue(size)
}

func (b *Builder) lowerUnop(fb *fnBuilder, u *ast.Unop) ir.Value {
	t := typeOf(u)
	switch u.Op {
	case "!":
		return fb.emit(ir.OpNot, t, b.lowerExpr(fb, u.Operand))
	case "-":
		return fb.emit(ir.OpNeg, t, b.lowerExpr(fb, u.Operand))
	case "&":
		addr, _ := b.lvalue(fb, u.Operand)
		return addr
	case "@":
		ptrVal := b.lowerExpr(fb, u.Operand)
		return b.ptrFix(fb, ptrVal, t)
	case "print":
		fb.emitVoid(ir.OpPrint, b.lowerExpr(fb, u.Operand))
		return ir.ConstValue(nil)
	case "free":
		fb.emitVoid(ir.OpFree, b.lowerExpr(fb, u.Operand))
		return ir.ConstValue(nil)
	default:
		b.errorf(u.Span(), "irbuilder: unhandled unary operator %q", u.Op)
		return ir.ConstValue(nil)
	}
}

// binopOp maps a numeric/bitwise operator lexeme to its opcode; one
// opcode is shared across every (primitive, width) instantiation, the
// width/signedness distinction living on Command.Type (spec.md §4.G:
// "emit the matching typed opcode").
var binopOp = map[string]ir.Opcode{
	"+": ir.OpAdd, "-": ir.OpSub, "*": ir.OpMul, "/": ir.OpDiv, "%": ir.OpMod,
	"&": ir.OpBAnd, "|": ir.OpBOr, "^": ir.OpBXor,
}

var compoundAssignOp = map[string]ir.Opcode{
	"+=": ir.OpAdd, "-=": ir.OpSub, "*=": ir.OpMul, "/=": ir.OpDiv, "%=": ir.OpMod,
	"&=": ir.OpBAnd, "|=": ir.OpBOr, "^=": ir.OpBXor,
}

func (b *Builder) lowerBinop(fb *fnBuilder, bin *ast.Binop) ir.Value {
	if op, ok := compoundAssignOp[bin.Op]; ok {
		addr, t := b.lvalue(fb, bin.LHS)
		cur := fb.emit(ir.OpLoad, t, addr)
		rhs := b.lowerExpr(fb, bin.RHS)
		next := fb.emit(op, t, cur, rhs)
		fb.emitTyped(ir.OpStore, t, addr, next)
		return ir.ConstValue(nil)
	}
	switch {
	case bin.Op == "=":
		addr, t := b.lvalue(fb, bin.LHS)
		srcAddr, _ := b.lvalue(fb, bin.RHS)
		types.EmitCopyAssign(b, t, addr, srcAddr)
		return ir.ConstValue(nil)
	case bin.Op == "..":
		// Only meaningfully lowered inside a For's iterator position
		// (lowerFor reaches into LHS/RHS directly); a bare range
		// expression elsewhere has no single runtime value, so this
		// returns the lower bound as a best-effort placeholder.
		return b.lowerExpr(fb, bin.LHS)
	case bin.Op == "as":
		return b.lowerCast(fb, bin)
	default:
		op, ok := binopOp[bin.Op]
		if !ok {
			b.errorf(bin.Span(), "irbuilder: unhandled binary operator %q", bin.Op)
			return ir.ConstValue(nil)
		}
		t := typeOf(bin)
		lhs := b.lowerExpr(fb, bin.LHS)
		rhs := b.lowerExpr(fb, bin.RHS)
		return fb.emit(op, t, lhs, rhs)
	}
}

func (b *Builder) lowerCast(fb *fnBuilder, bin *ast.Binop) ir.Value {
	fromT := typeOf(bin.LHS)
	toT := typeOf(bin)
	v := b.lowerExpr(fb, bin.LHS)
	if fromT == toT {
		return v
	}
	fromSize, _ := b.arch.SizeOf(fromT)
	toSize, _ := b.arch.SizeOf(toT)
	switch {
	case types.IsInteger(fromT) && toSize > fromSize:
		return fb.emit(ir.OpExtend, toT, v)
	case types.IsInteger(fromT) && types.IsInteger(toT) && toSize < fromSize:
		return fb.emit(ir.OpTrunc, toT, v)
	default:
		return fb.emit(ir.OpCast, toT, v)
	}
}

// comparisonOp maps a chainable comparison lexeme to its opcode.
var comparisonOp = map[string]ir.Opcode{
	"<": ir.OpLt, "<=": ir.OpLe, ">": ir.OpGt, ">=": ir.OpGe, "==": ir.OpEq, "!=": ir.OpNe,
}

// lowerChainOp implements spec.md §4.H's short-circuit and chain-
// comparison lowering: a landing block with a φ, each operand tested
// left to right, an early exit to the landing block on the first
// short-circuiting/failing operand.
func (b *Builder) lowerChainOp(fb *fnBuilder, chain *ast.ChainOp) ir.Value {
	boolT := types.Prim(types.Bool)
	land := fb.newBlock()
	var incoming []ir.PhiEdge

	switch chain.Ops[0] {
	case "and", "or":
		shortOn := chain.Ops[0] == "or" // or: short-circuit on true; and: on false
		for i, expr := range chain.Exprs {
			val := b.lowerExpr(fb, expr)
			if i == len(chain.Exprs)-1 {
				incoming = append(incoming, ir.PhiEdge{Pred: fb.cur, Value: val})
				fb.seal(ir.Exit{Kind: ir.ExitUnconditional, Target: land})
				break
			}
			cont := fb.newBlock()
			incoming = append(incoming, ir.PhiEdge{Pred: fb.cur, Value: ir.ConstValue(shortOn)})
			if shortOn {
				fb.seal(ir.Exit{Kind: ir.ExitConditional, CondReg: val, TrueTarget: land, FalseTarget: cont})
			} else {
				fb.seal(ir.Exit{Kind: ir.ExitConditional, CondReg: val, TrueTarget: cont, FalseTarget: land})
			}
			fb.setBlock(cont)
		}
	case "xor":
		// xor never short-circuits (every operand must be evaluated); fold
		// left to right with a plain OpBXor chain rather than a φ cascade.
		acc := b.lowerExpr(fb, chain.Exprs[0])
		for _, expr := range chain.Exprs[1:] {
			acc = fb.emit(ir.OpBXor, boolT, acc, b.lowerExpr(fb, expr))
		}
		fb.seal(ir.Exit{Kind: ir.ExitUnconditional, Target: land})
		incoming = append(incoming, ir.PhiEdge{Pred: fb.cur, Value: acc})
	default:
		op := comparisonOp[chain.Ops[0]]
		prev := b.lowerExpr(fb, chain.Exprs[0])
		for i := range chain.Ops {
			next := b.lowerExpr(fb, chain.Exprs[i+1])
			res := fb.emit(op, boolT, prev, next)
			if i == len(chain.Ops)-1 {
				incoming = append(incoming, ir.PhiEdge{Pred: fb.cur, Value: res})
				fb.seal(ir.Exit{Kind: ir.ExitUnconditional, Target: land})
				break
			}
			cont := fb.newBlock()
			incoming = append(incoming, ir.PhiEdge{Pred: fb.cur, Value: ir.ConstValue(false)})
			fb.seal(ir.Exit{Kind: ir.ExitConditional, CondReg: res, TrueTarget: cont, FalseTarget: land})
			fb.setBlock(cont)
			op = comparisonOp[chain.Ops[i+1]]
			prev = next
		}
	}

	fb.setBlock(land)
	return fb.phi(boolT, incoming)
}

func (b *Builder) lowerCall(fb *fnBuilder, call *ast.Call) ir.Value {
	retT := typeOf(call)
	args := make([]ir.Value, 0, len(call.Positional)+1)

	// The callee is addressed by name at the interpreter layer (spec.md
	// §4.I: "Call materializes an argument buffer... either executes an
	// IR func recursively or dispatches to a foreign function"); this
	// builder passes the callee's resolved declaration name as the first
	// argument slot so the interpreter can look the function up without
	// the builder needing its own call-target encoding.
	switch callee := call.Callee.(type) {
	case *ast.Identifier:
		d := resolvedDecl(callee)
		name := callee.Name
		if d != nil {
			name = b.FuncName(d)
		}
		args = append(args, ir.ConstValue(name))
	default:
		args = append(args, b.lowerExpr(fb, call.Callee))
	}
	for _, p := range call.Positional {
		args = append(args, b.lowerExpr(fb, p))
	}
	if retT == types.Prim(types.Void) {
		fb.emitTyped(ir.OpCall, retT, args...)
		return ir.ConstValue(nil)
	}
	return fb.emit(ir.OpCall, retT, args...)
}

// lowerArrayLiteral materializes the literal's elements into a fresh
// stack slot, field by field, and returns its address (an array value
// is always "big" under isBig once it has more than one pointer-word's
// worth of elements, so callers PtrFix it the same as any other big
// value).
func (b *Builder) lowerArrayLiteral(fb *fnBuilder, a *ast.ArrayLiteral) ir.Value {
	t := typeOf(a)
	addr := fb.alloca(t)
	elemT := t.Elem
	for i, elem := range a.Elems {
		val := b.lowerExpr(fb, elem)
		elemAddr := fb.emit(ir.OpPtrIncr, fb.b.interner.Ptr(elemT), addr, ir.ConstValue(int64(i)))
		fb.emitTyped(ir.OpStore, elemT, elemAddr, val)
	}
	if b.isBig(t) {
		return addr
	}
	return fb.emit(ir.OpLoad, t, addr)
}

// lowerCase lowers `case { k1 => v1, k2 => v2, ..., }` as a linear chain
// of test blocks, each short-circuiting to a shared landing φ on its key
// evaluating true (spec.md §4.H "Case").
func (b *Builder) lowerCase(fb *fnBuilder, cs *ast.Case) ir.Value {
	resultT := typeOf(cs)
	land := fb.newBlock()
	var incoming []ir.PhiEdge

	for i := range cs.Keys {
		keyVal := b.lowerExpr(fb, cs.Keys[i])
		valBlk := fb.newBlock()
		var nextBlk int
		if i == len(cs.Keys)-1 {
			nextBlk = land
		} else {
			nextBlk = fb.newBlock()
		}
		fb.seal(ir.Exit{Kind: ir.ExitConditional, CondReg: keyVal, TrueTarget: valBlk, FalseTarget: nextBlk})

		fb.setBlock(valBlk)
		v := b.lowerExpr(fb, cs.Vals[i])
		incoming = append(incoming, ir.PhiEdge{Pred: fb.cur, Value: v})
		fb.seal(ir.Exit{Kind: ir.ExitUnconditional, Target: land})

		fb.setBlock(nextBlk)
	}

	fb.setBlock(land)
	return fb.phi(resultT, incoming)
}
