package types

import (
	"testing"

	"icarusc/internal/ir"
)

// recordingEmitter is a minimal Emitter that only records FieldAddr
// index order, enough to pin down buildStructDestroy's traversal order
// without needing a real irbuilder.Builder.
type recordingEmitter struct {
	fieldOrder []int
	blocks     int
	seals      []ir.Exit
	cur        int
}

func (r *recordingEmitter) Emit(op ir.Opcode, typ *Type, args ...ir.Value) ir.Value { return ir.Value{} }
func (r *recordingEmitter) EmitVoid(op ir.Opcode, args ...ir.Value)                 {}

func (r *recordingEmitter) FieldAddr(base ir.Value, index int, fieldType *Type) ir.Value {
	r.fieldOrder = append(r.fieldOrder, index)
	return ir.Value{}
}

func (r *recordingEmitter) ElemAddr(base ir.Value, index ir.Value, elemType *Type) ir.Value {
	return ir.Value{}
}

func (r *recordingEmitter) CallFunc(fn *ir.Func, args []ir.Value) []ir.Value { return nil }

func (r *recordingEmitter) NewBlock() int {
	r.blocks++
	return r.blocks
}

func (r *recordingEmitter) CurrentBlock() int          { return r.cur }
func (r *recordingEmitter) SetCurrentBlock(i int)       { r.cur = i }
func (r *recordingEmitter) SealCurrent(exit ir.Exit)    { r.seals = append(r.seals, exit) }
func (r *recordingEmitter) NewRegister(typ *Type) ir.Register { return 0 }
func (r *recordingEmitter) NewFunc()                          {}
func (r *recordingEmitter) Finish(name string) *ir.Func       { return ir.NewFunc(name) }

// TestBuildStructDestroyReverseFieldOrder pins down spec.md §8's
// destructor law: EmitDestroy(s) calls T_i.EmitDestroy(s.f_i) in reverse
// field-declaration order.
func TestBuildStructDestroyReverseFieldOrder(t *testing.T) {
	info := &StructInfo{
		Name: "Triple",
		Fields: []StructField{
			{Name: "a", Type: Prim(I32)},
			{Name: "b", Type: Prim(I32)},
			{Name: "c", Type: Prim(I32)},
		},
	}
	rec := &recordingEmitter{}
	buildStructDestroy(rec, info)

	want := []int{2, 1, 0}
	if len(rec.fieldOrder) != len(want) {
		t.Fatalf("FieldAddr called %d times, want %d (%v)", len(rec.fieldOrder), len(want), rec.fieldOrder)
	}
	for i, idx := range want {
		if rec.fieldOrder[i] != idx {
			t.Fatalf("field order[%d] = %d, want %d (full order %v)", i, rec.fieldOrder[i], idx, rec.fieldOrder)
		}
	}
}

// TestEmitVariantDispatchBuildsBlockSeq covers emitVariantDispatch's
// CondJump-free dispatch: it must seal the entry block with an
// ExitBlockSeq table naming one fresh block per alternative, tagged by
// the loaded runtime tag, rather than discarding it.
func TestEmitVariantDispatchBuildsBlockSeq(t *testing.T) {
	entries := []*Type{Prim(I32), Prim(Bool)}
	v := &Type{Kind: KVariant, Entries: entries}

	var visited []int
	rec := &recordingEmitter{}
	emitVariantDispatch(rec, v, ir.Value{}, ir.Value{}, func(e Emitter, alt *Type, dst, src ir.Value) {
		visited = append(visited, len(visited))
	})

	if len(visited) != len(entries) {
		t.Fatalf("visited %d alternative bodies, want %d", len(visited), len(entries))
	}

	if len(rec.seals) != 1+len(entries) {
		t.Fatalf("sealed %d blocks, want 1 dispatch block + %d alternative blocks", len(rec.seals), len(entries))
	}
	dispatch := rec.seals[0]
	if dispatch.Kind != ir.ExitBlockSeq {
		t.Fatalf("dispatch block sealed with %v, want ExitBlockSeq", dispatch.Kind)
	}
	if len(dispatch.Table) != len(entries) {
		t.Fatalf("block-seq table has %d entries, want %d", len(dispatch.Table), len(entries))
	}
	for _, s := range rec.seals[1:] {
		if s.Kind != ir.ExitUnconditional {
			t.Fatalf("alternative block sealed with %v, want ExitUnconditional to the landing block", s.Kind)
		}
	}
}
