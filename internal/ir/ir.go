// Package ir defines the register-based SSA-like intermediate
// representation spec.md §3/§4.G describes: functions with explicit
// basic blocks, φ nodes, typed commands, and the three address kinds
// (Stack, Heap, ReadOnly). It is grounded on the teacher's two bytecode
// models — internal/bytecode/opcodes.go's flat OpCode enum and
// internal/vmregister/bytecode.go's register-file instruction shape —
// generalized from a flat instruction stream into basic blocks with
// explicit terminators, and on the original Icarus compiler's
// src/ir/cmd.h Op enum and src/ir/register.h Register/RegisterOr types.
package ir

import "fmt"

// Register names a slot in a function's register file. Argument
// registers are the low-numbered ones (spec.md §3 IR Function).
type Register int

// Opcode is the closed instruction set spec.md §4.I enumerates.
type Opcode int

const (
	OpNop Opcode = iota

	// Arithmetic / comparison, one instantiation per (primitive, width)
	// pair at build time; Type on the Command records which.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpNot
	OpBAnd
	OpBOr
	OpBXor
	OpBNot
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe

	// Conversion
	OpTrunc
	OpExtend
	OpCast

	// Memory
	OpLoad
	OpStore
	OpAlloca
	OpField
	OpPtrIncr
	OpArrayLength
	OpArrayData

	// Calls / returns
	OpCall
	OpSetReturn

	// Structured-type construction (compile-time type building, §4.I)
	OpCreateStruct
	OpAddField
	OpFinalizeStruct
	OpCreateEnum
	OpAddEnumerator
	OpFinalizeEnum
	OpCreateFlags
	OpFinalizeFlags
	OpCreateTuple
	OpCreateVariant

	// φ
	OpPhi

	// Misc
	OpPrint
	OpContextualize
	OpFree
)

func (o Opcode) String() string {
	names := [...]string{
		"nop", "add", "sub", "mul", "div", "mod", "neg", "not",
		"band", "bor", "bxor", "bnot", "lt", "le", "gt", "ge", "eq", "ne",
		"trunc", "extend", "cast",
		"load", "store", "alloca", "field", "ptrincr", "arraylength", "arraydata",
		"call", "setreturn",
		"createstruct", "addfield", "finalizestruct",
		"createenum", "addenumerator", "finalizeenum",
		"createflags", "finalizeflags",
		"createtuple", "createvariant",
		"phi", "print", "contextualize", "free",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// AddrKind is the closed set of interpreter address kinds (spec.md §3 IR
// Address).
type AddrKind int

const (
	AddrStack AddrKind = iota
	AddrHeap
	AddrReadOnly
)

// Addr is a tagged address: a Stack/ReadOnly offset or a Heap pointer.
type Addr struct {
	Kind   AddrKind
	Offset int64 // Stack, ReadOnly
	Heap   uintptr
}

// Value is a register-or-constant argument slot (spec.md §3 IR Value).
// Exactly one of Reg/Const is meaningful, selected by IsReg.
type Value struct {
	IsReg bool
	Reg   Register
	Const interface{}
}

func RegValue(r Register) Value        { return Value{IsReg: true, Reg: r} }
func ConstValue(v interface{}) Value   { return Value{IsReg: false, Const: v} }

func (v Value) String() string {
	if v.IsReg {
		return fmt.Sprintf("r%d", v.Reg)
	}
	return fmt.Sprintf("%v", v.Const)
}

// Command is one typed IR instruction: an opcode, its typed argument
// list, and the register it defines (HasRes == false and Result ==
// NoRegister when the command has no result, e.g. Store).
type Command struct {
	Op     Opcode
	Args   []Value
	Result Register
	HasRes bool
	Type   interface{} // *types.Type; interface{} here to avoid an import cycle (ir has no types dependency)

	// Phi-only: one incoming (predecessor block index, value) pair per
	// predecessor (spec.md §4.H "φ construction").
	PhiIncoming []PhiEdge
}

// PhiEdge is one incoming edge of a φ node.
type PhiEdge struct {
	Pred  int // index into Func.Blocks
	Value Value
}

const NoRegister Register = -1

// ExitKind is the closed set of block terminators (spec.md §3 IR Block).
type ExitKind int

const (
	ExitUnconditional ExitKind = iota
	ExitConditional
	ExitReturn
	ExitBlockSeq
)

// Exit is a block's terminator. Exactly the fields relevant to Kind are
// populated.
type Exit struct {
	Kind        ExitKind
	Target      int   // ExitUnconditional
	CondReg     Value // ExitConditional
	TrueTarget  int   // ExitConditional
	FalseTarget int   // ExitConditional
	SeqReg      Value // ExitBlockSeq: value used to index Table
	Table       []int // ExitBlockSeq: block index per jump-table entry
}

// Block is a straight-line command sequence ending in exactly one
// terminator (spec.md §8 invariant: "exactly one terminator; zero
// terminators elsewhere in the block").
type Block struct {
	Commands []Command
	Exit     Exit
	sealed   bool
}

func (b *Block) Append(cmd Command) {
	if b.sealed {
		panic("ir: append to a block that already has a terminator")
	}
	b.Commands = append(b.Commands, cmd)
}

func (b *Block) Seal(exit Exit) {
	b.Exit = exit
	b.sealed = true
}

func (b *Block) Sealed() bool { return b.sealed }

// Func is an IR function: its entry block index, every block, the
// register-file size, the stack-frame size computed during lowering,
// and the type assigned to each register (spec.md §3 IR Function).
type Func struct {
	ID         string // a stable identifier, stamped by the caller (driver stamps uuid.New())
	Name       string
	Entry      int
	Blocks     []*Block
	NumRegs    int
	FrameSize  int64
	RegType    map[Register]interface{} // *types.Type, same avoid-cycle trick as Command.Type
	ArgCount   int
	ReturnSlot Register // the stack slot the exit block loads and returns (spec.md §4.G)
}

func NewFunc(name string) *Func {
	f := &Func{Name: name, RegType: make(map[Register]interface{})}
	entry := &Block{}
	f.Blocks = append(f.Blocks, entry)
	f.Entry = 0
	return f
}

// NewBlock appends a fresh, unsealed block and returns its index.
func (f *Func) NewBlock() int {
	f.Blocks = append(f.Blocks, &Block{})
	return len(f.Blocks) - 1
}

// NewRegister allocates and returns the next free register, recording
// its type.
func (f *Func) NewRegister(typ interface{}) Register {
	r := Register(f.NumRegs)
	f.NumRegs++
	f.RegType[r] = typ
	return r
}

// Reachable returns the set of block indices reachable from Entry,
// following every terminator kind (spec.md §8: "every block reachable
// from entry").
func (f *Func) Reachable() map[int]bool {
	seen := map[int]bool{}
	var walk func(i int)
	walk = func(i int) {
		if seen[i] || i < 0 || i >= len(f.Blocks) {
			return
		}
		seen[i] = true
		b := f.Blocks[i]
		switch b.Exit.Kind {
		case ExitUnconditional:
			walk(b.Exit.Target)
		case ExitConditional:
			walk(b.Exit.TrueTarget)
			walk(b.Exit.FalseTarget)
		case ExitBlockSeq:
			for _, t := range b.Exit.Table {
				walk(t)
			}
		}
	}
	walk(f.Entry)
	return seen
}

// Predecessors returns the indices of every block that can jump directly
// to block i, used to validate that a φ's incoming set exactly covers
// predecessors(B) (spec.md §8 invariant).
func (f *Func) Predecessors(i int) []int {
	var preds []int
	for j, b := range f.Blocks {
		switch b.Exit.Kind {
		case ExitUnconditional:
			if b.Exit.Target == i {
				preds = append(preds, j)
			}
		case ExitConditional:
			if b.Exit.TrueTarget == i || b.Exit.FalseTarget == i {
				preds = append(preds, j)
			}
		case ExitBlockSeq:
			for _, t := range b.Exit.Table {
				if t == i {
					preds = append(preds, j)
				}
			}
		}
	}
	return preds
}

// Module groups every Func compiled from one source module together
// with process-wide read-only constant data (spec.md §3 lifecycle: "IR
// functions are owned by the module").
type Module struct {
	Name      string
	Funcs     []*Func
	ReadOnly  *ReadOnlyData
}

func NewModule(name string) *Module {
	return &Module{Name: name, ReadOnly: NewReadOnlyData()}
}
