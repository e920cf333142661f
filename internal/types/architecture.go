package types

// Architecture is the target-machine size/alignment model every IR
// command and interpreter address computation goes through (spec.md
// §4.H "PtrIncr computes element-sized offset via target architecture's
// size/alignment", §4.I "Field(S,i) adds the architecture-dependent
// offset of field i"). Grounded on the original Icarus compiler's
// src/architecture.cc bytes()/alignment() pair, generalized to the
// spec's explicit-width primitive set.
type Architecture struct {
	PtrBytes int64
	PtrAlign int64
}

// Target64 is the only architecture this implementation models: a
// 64-bit target with 8-byte, 8-byte-aligned pointers (spec.md §8
// scenario 6 names "8 under a 4-byte-int alignment" for a 2×int32
// struct, which this model reproduces).
var Target64 = Architecture{PtrBytes: 8, PtrAlign: 8}

// SizeOf returns (size, alignment) in bytes for t.
func (a Architecture) SizeOf(t *Type) (int64, int64) {
	switch t.Kind {
	case KPrimitive:
		return a.primSize(t.Prim)
	case KPointer, KBufferPointer:
		return a.PtrBytes, a.PtrAlign
	case KArray:
		if t.ArrLen == nil {
			// Dynamic-length arrays carry a (pointer, length) pair.
			return 2 * a.PtrBytes, a.PtrAlign
		}
		elemSize, elemAlign := a.SizeOf(t.Elem)
		stride := alignUp(elemSize, elemAlign)
		return *t.ArrLen * stride, elemAlign
	case KFunction:
		return 2 * a.PtrBytes, a.PtrAlign // function value + context pointer
	case KStruct:
		return t.Struct.Bytes(a), a.structAlign(t.Struct)
	case KEnum, KFlags:
		return 8, 8
	case KTuple:
		var size, align int64 = 0, 1
		for _, e := range t.Entries {
			s, al := a.SizeOf(e)
			if al > align {
				align = al
			}
			size = alignUp(size, al) + s
		}
		return alignUp(size, align), align
	case KVariant:
		var size, align int64 = 0, a.PtrBytes // tag word
		for _, alt := range t.Entries {
			s, al := a.SizeOf(alt)
			if s > size {
				size = s
			}
			if al > align {
				align = al
			}
		}
		return size + a.PtrBytes, align
	case KRange:
		elemSize, elemAlign := a.SizeOf(t.Elem)
		return 2 * elemSize, elemAlign
	default:
		return 0, 1
	}
}

func (a Architecture) primSize(p PrimKind) (int64, int64) {
	switch p {
	case Void, EmptyArray:
		return 0, 1
	case Bool, Char, I8, U8:
		return 1, 1
	case I16, U16:
		return 2, 2
	case I32, U32, F32:
		return 4, 4
	case I64, U64, F64, TypeType, NullPtr:
		return 8, 8
	case ByteView:
		return 2 * a.PtrBytes, a.PtrAlign
	case ModuleType:
		return 0, 1
	default:
		return 8, 8
	}
}

func (a Architecture) structAlign(s *StructInfo) int64 {
	var align int64 = 1
	for _, f := range s.Fields {
		_, al := a.SizeOf(f.Type)
		if al > align {
			align = al
		}
	}
	return align
}
