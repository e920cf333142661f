package types

import "testing"

func TestInterningIsPointerEquality(t *testing.T) {
	in := NewInterner()
	i32 := Prim(I32)
	p1 := in.Ptr(i32)
	p2 := in.Ptr(i32)
	if p1 != p2 {
		t.Fatalf("Ptr(i32) should intern to the same pointer")
	}
	a1 := in.Arr(i32, 3, false)
	a2 := in.Arr(i32, 3, false)
	if a1 != a2 {
		t.Fatalf("Arr(i32,3) should intern to the same pointer")
	}
	a3 := in.Arr(i32, 4, false)
	if a1 == a3 {
		t.Fatalf("Arr(i32,3) and Arr(i32,4) must be distinct")
	}
}

func TestJoinNumericWidening(t *testing.T) {
	if Join(Prim(I32), Prim(I32)) != Prim(I32) {
		t.Fatal("self-join should be identity")
	}
	if got := Join(Prim(I32), Prim(I64)); got != Prim(I64) {
		t.Fatalf("Join(i32,i64) = %v, want i64", got)
	}
	if got := Join(Prim(Bool), Prim(I32)); got != nil {
		t.Fatalf("Join(bool,i32) should be incompatible, got %v", got)
	}
}

func TestJoinErrorAbsorbs(t *testing.T) {
	if Join(Error, Prim(I32)) != Error {
		t.Fatal("Error must absorb in Join")
	}
}

func TestArrayLiteralJoinScenario(t *testing.T) {
	// spec.md §8 scenario 4: [1, 2, 3] has type [3; int32].
	in := NewInterner()
	elemType := Prim(I32)
	for i := 0; i < 2; i++ {
		elemType = Join(elemType, Prim(I32))
	}
	arr := in.Arr(elemType, 3, false)
	if arr.Elem != Prim(I32) || *arr.ArrLen != 3 {
		t.Fatalf("got %v", arr)
	}
}

func TestStructBytesScenario(t *testing.T) {
	// spec.md §8 scenario 6: S ::= struct { x: int32; y: int32 }; S.bytes == 8.
	info := &StructInfo{
		Name: "S",
		Fields: []StructField{
			{Name: "x", Type: Prim(I32)},
			{Name: "y", Type: Prim(I32)},
		},
	}
	if got := info.Bytes(Target64); got != 8 {
		t.Fatalf("S.bytes = %d, want 8", got)
	}
}

func TestGenericStructInstantiationCaching(t *testing.T) {
	calls := 0
	g := NewGenericStructInfo(nil, func(bound []interface{}) *StructInfo {
		calls++
		return &StructInfo{Name: "Box"}
	})
	t1 := g.Instantiate([]interface{}{3})
	t2 := g.Instantiate([]interface{}{3})
	if t1 != t2 {
		t.Fatal("same bound constants must return the same cached instantiation")
	}
	if calls != 1 {
		t.Fatalf("build called %d times, want 1", calls)
	}
	t3 := g.Instantiate([]interface{}{4})
	if t3 == t1 {
		t.Fatal("different bound constants must produce distinct instantiations")
	}
}
