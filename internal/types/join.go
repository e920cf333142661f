package types

// Join returns the least upper bound of a and b (spec.md §4.E), used for
// array-literal element typing and Case result typing. It returns nil
// when a and b are incompatible. Error absorbs: joining anything with
// Error yields Error without an additional diagnostic (spec.md §7).
func Join(a, b *Type) *Type {
	if a == Error || b == Error {
		return Error
	}
	if a == b {
		return a
	}
	if a == nil || b == nil {
		return nil
	}

	if a.Kind == KVariant || b.Kind == KVariant {
		return joinVariant(a, b)
	}

	if a.Kind != b.Kind {
		return nil
	}

	switch a.Kind {
	case KPrimitive:
		return joinPrimitive(a, b)
	case KPointer:
		if e := Join(a.Pointee, b.Pointee); e != nil {
			return a // pointee types must already be identical (interned)
		}
		return nil
	case KArray:
		elem := Join(a.Elem, b.Elem)
		if elem == nil {
			return nil
		}
		if a.ArrLen != nil && b.ArrLen != nil && *a.ArrLen == *b.ArrLen {
			return a
		}
		return nil // differing or dynamic lengths join to a dynamic array only via caller policy
	case KStruct, KEnum, KFlags, KOpaque:
		return nil // nominal: only identical (already handled by a == b above)
	default:
		return nil
	}
}

// joinPrimitive allows widening among numeric kinds of the same
// signedness family (int literal defaults widen to the first concrete
// numeric type they meet); bool/char/void only join with themselves.
func joinPrimitive(a, b *Type) *Type {
	rank := map[PrimKind]int{
		I8: 1, I16: 2, I32: 3, I64: 4,
		U8: 1, U16: 2, U32: 3, U64: 4,
		F32: 5, F64: 6,
	}
	ra, oka := rank[a.Prim]
	rb, okb := rank[b.Prim]
	if !oka || !okb {
		return nil
	}
	sameFamily := isSigned(a.Prim) == isSigned(b.Prim) && isFloat(a.Prim) == isFloat(b.Prim)
	if !sameFamily {
		return nil
	}
	if ra >= rb {
		return a
	}
	return b
}

func isSigned(p PrimKind) bool {
	switch p {
	case I8, I16, I32, I64, F32, F64:
		return true
	default:
		return false
	}
}

func isFloat(p PrimKind) bool { return p == F32 || p == F64 }

// joinVariant merges alternative sets element-wise (spec.md §4.E:
// "Variant types may be joined element-wise").
func joinVariant(a, b *Type) *Type {
	var alts []*Type
	seen := map[*Type]bool{}
	add := func(t *Type) {
		if t.Kind == KVariant {
			for _, alt := range t.Entries {
				if !seen[alt] {
					seen[alt] = true
					alts = append(alts, alt)
				}
			}
			return
		}
		if !seen[t] {
			seen[t] = true
			alts = append(alts, t)
		}
	}
	add(a)
	add(b)
	return &Type{Kind: KVariant, Entries: alts}
}

// IsNumeric reports whether t is one of the integer or floating-point
// primitives (used throughout the checker's per-operator tables).
func IsNumeric(t *Type) bool {
	if t == nil || t.Kind != KPrimitive {
		return false
	}
	switch t.Prim {
	case I8, I16, I32, I64, U8, U16, U32, U64, F32, F64:
		return true
	}
	return false
}

func IsInteger(t *Type) bool {
	return IsNumeric(t) && !isFloat(t.Prim)
}

func IsUnsigned(t *Type) bool {
	if !IsNumeric(t) {
		return false
	}
	switch t.Prim {
	case U8, U16, U32, U64:
		return true
	}
	return false
}
