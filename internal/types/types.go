// Package types implements the compiler's type system (spec.md §4.E):
// type objects, interning, equality by pointer identity, the Join
// (least-upper-bound) operation, and the Emit* family of operations that
// generate IR at the current builder insertion point. It is grounded on
// the original Icarus compiler's src/Type.h (the constructor/interning
// shape) and src/type/*.cc (assign.cc, repr.cc, struct.cc for the Emit*
// bodies), translated from the teacher's bytecode-opcode vocabulary
// (internal/bytecode/opcodes.go) into typed ir.Opcode values.
//
// types depends only on internal/ir (for the Emitter callback interface
// and ir.Opcode/ir.Value), never on internal/irbuilder: the builder
// depends on types, not the reverse, exactly as spec.md §9 "Global
// mutable state" asks the intern tables to be modeled as an explicit
// context handle rather than a circular package dependency.
package types

import (
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Kind is the closed set of type constructors (spec.md §3 Type).
type Kind int

const (
	KPrimitive Kind = iota
	KPointer
	KBufferPointer
	KArray
	KFunction
	KTuple
	KVariant
	KStruct
	KEnum
	KFlags
	KRange
	KOpaque
	KInterface
	KGenericStruct
	KQuantum
	KError
	KUnknown
)

// PrimKind enumerates the primitive type set (spec.md §3).
type PrimKind int

const (
	Bool PrimKind = iota
	Char
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
	TypeType // the type of a compile-time type value
	NullPtr
	EmptyArray
	Void
	ByteView
	ModuleType
)

// primNames is the surface syntax spec.md's literal scenarios use
// (§8 scenario 1: "int32", scenario 5: "f64"), not an abbreviated
// internal spelling.
var primNames = [...]string{
	"bool", "char", "int8", "int16", "int32", "int64",
	"uint8", "uint16", "uint32", "uint64",
	"f32", "f64", "type", "nullptr", "empty_array", "void", "byte_view", "module",
}

// Hashtag is a `#name` annotation attached to a struct or field, e.g.
// `#export`, `#uncopyable` (SPEC_FULL.md "property-map-style hashtags").
type Hashtag string

const (
	Export     Hashtag = "export"
	Uncopyable Hashtag = "uncopyable"
)

// Type is the interned type object. Only the fields relevant to Kind are
// populated. Equality is pointer identity (spec.md §3: "Types are
// interned: pointer equality == semantic equality").
type Type struct {
	Kind Kind

	Prim PrimKind // KPrimitive

	Pointee *Type // KPointer, KBufferPointer

	Elem    *Type // KArray, KRange
	ArrLen  *int64 // KArray; nil means dynamic length ("len = ∞")

	In  *Type   // KFunction: Tuple of inputs
	Out []*Type // KFunction

	Entries []*Type // KTuple, KVariant (alternatives)

	Struct *StructInfo // KStruct
	Enum   *EnumInfo   // KEnum, KFlags

	OpaqueModule string // KOpaque

	Generic *GenericStructInfo // KGenericStruct

	QuantumOptions []*Type // KQuantum
}

// IsError satisfies ast.TypeSlot so the checker can stamp ast nodes
// without ast importing types.
func (t *Type) IsError() bool { return t != nil && t.Kind == KError }

func (t *Type) String() string {
	switch t.Kind {
	case KPrimitive:
		return primNames[t.Prim]
	case KPointer:
		return "*" + t.Pointee.String()
	case KBufferPointer:
		return "[*]" + t.Pointee.String()
	case KArray:
		if t.ArrLen == nil {
			return "[;" + t.Elem.String() + "]"
		}
		return fmt.Sprintf("[%d;%s]", *t.ArrLen, t.Elem.String())
	case KFunction:
		return fmt.Sprintf("(%s)->%v", t.In, t.Out)
	case KTuple:
		return fmt.Sprintf("tuple%v", t.Entries)
	case KVariant:
		return fmt.Sprintf("variant%v", t.Entries)
	case KStruct:
		if t.Struct != nil {
			return t.Struct.Name
		}
		return "struct"
	case KEnum:
		if t.Enum != nil {
			return t.Enum.Name
		}
		return "enum"
	case KFlags:
		if t.Enum != nil {
			return t.Enum.Name
		}
		return "flags"
	case KRange:
		return "range(" + t.Elem.String() + ")"
	case KOpaque:
		return "opaque@" + t.OpaqueModule
	case KInterface:
		return "interface"
	case KGenericStruct:
		return "generic-struct"
	case KQuantum:
		return fmt.Sprintf("quantum%v", t.QuantumOptions)
	case KError:
		return "<error>"
	case KUnknown:
		return "<unknown>"
	}
	return "<?>"
}

// Sentinels. Error absorbs in Join and equality checks never match it.
var Error = &Type{Kind: KError}
var Unknown = &Type{Kind: KUnknown}

// Singletons for primitives; these are returned by Prim so that
// Prim(I32) == Prim(I32) by pointer identity.
var primitives = func() map[PrimKind]*Type {
	m := make(map[PrimKind]*Type, len(primNames))
	for i := range primNames {
		m[PrimKind(i)] = &Type{Kind: KPrimitive, Prim: PrimKind(i)}
	}
	return m
}()

func Prim(k PrimKind) *Type { return primitives[k] }

// Interner holds the per-kind canonical tables spec.md §4.E describes
// ("intern via per-kind tables"). Access is serialized under a mutex,
// matching spec.md §5's shared-resource policy for type interning.
type Interner struct {
	mu      sync.Mutex
	ptrs    map[*Type]*Type
	bufPtrs map[*Type]*Type
	arrays  map[arrayKey]*Type
	funcs   map[string]*Type
	tuples  map[string]*Type
	variants map[string]*Type
	structs map[*StructSite]*Type // nominal: keyed by defining-site identity
	enums   map[*StructSite]*Type
	ranges  map[*Type]*Type
}

type arrayKey struct {
	elem *Type
	len  int64
	dyn  bool
}

// StructSite is the identity token a struct or enum literal's defining
// site uses as its nominal intern key (spec.md §3: "Struct/Enum/Flags/
// Opaque are nominal (unique per defining site)"). The scope/typecheck
// layer allocates one StructSite per StructLiteral/EnumLiteral node.
type StructSite struct{ _ byte }

func NewInterner() *Interner {
	return &Interner{
		ptrs:    make(map[*Type]*Type),
		bufPtrs: make(map[*Type]*Type),
		arrays:  make(map[arrayKey]*Type),
		funcs:   make(map[string]*Type),
		tuples:  make(map[string]*Type),
		variants: make(map[string]*Type),
		structs: make(map[*StructSite]*Type),
		enums:   make(map[*StructSite]*Type),
	}
}

// FuncKeys returns the interned function-type keys in sorted order, so a
// caller can walk the table deterministically rather than relying on
// Go's randomized map iteration order.
func (in *Interner) FuncKeys() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	keys := maps.Keys(in.funcs)
	slices.Sort(keys)
	return keys
}

func (in *Interner) Ptr(pointee *Type) *Type {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.ptrs[pointee]; ok {
		return t
	}
	t := &Type{Kind: KPointer, Pointee: pointee}
	in.ptrs[pointee] = t
	return t
}

func (in *Interner) BufferPointer(pointee *Type) *Type {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.bufPtrs[pointee]; ok {
		return t
	}
	t := &Type{Kind: KBufferPointer, Pointee: pointee}
	in.bufPtrs[pointee] = t
	return t
}

// Arr interns a fixed-length array type; pass dyn=true for a dynamic
// ("len = ∞") array, in which case len is ignored.
func (in *Interner) Arr(elem *Type, length int64, dyn bool) *Type {
	in.mu.Lock()
	defer in.mu.Unlock()
	key := arrayKey{elem: elem, len: length, dyn: dyn}
	if t, ok := in.arrays[key]; ok {
		return t
	}
	t := &Type{Kind: KArray, Elem: elem}
	if !dyn {
		l := length
		t.ArrLen = &l
	}
	in.arrays[key] = t
	return t
}

// Range interns a range(elem) type, used for the `..` binop and for a
// For-loop iterating over a bounds range (spec.md §4.H: "range → start
// value").
func (in *Interner) Range(elem *Type) *Type {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.ranges == nil {
		in.ranges = make(map[*Type]*Type)
	}
	if t, ok := in.ranges[elem]; ok {
		return t
	}
	t := &Type{Kind: KRange, Elem: elem}
	in.ranges[elem] = t
	return t
}

func (in *Interner) Func(inputs *Type, outputs []*Type) *Type {
	in.mu.Lock()
	defer in.mu.Unlock()
	key := fmt.Sprintf("%p|%v", inputs, outputs)
	if t, ok := in.funcs[key]; ok {
		return t
	}
	t := &Type{Kind: KFunction, In: inputs, Out: outputs}
	in.funcs[key] = t
	return t
}

func (in *Interner) Tup(entries []*Type) *Type {
	in.mu.Lock()
	defer in.mu.Unlock()
	key := fmt.Sprintf("%v", entries)
	if t, ok := in.tuples[key]; ok {
		return t
	}
	t := &Type{Kind: KTuple, Entries: entries}
	in.tuples[key] = t
	return t
}

func (in *Interner) Var(alts []*Type) *Type {
	in.mu.Lock()
	defer in.mu.Unlock()
	key := fmt.Sprintf("%v", alts)
	if t, ok := in.variants[key]; ok {
		return t
	}
	t := &Type{Kind: KVariant, Entries: alts}
	in.variants[key] = t
	return t
}

// Struct returns the nominal struct type for site, building it on first
// use via build (called at most once per site).
func (in *Interner) Struct(site *StructSite, build func() *StructInfo) *Type {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.structs[site]; ok {
		return t
	}
	t := &Type{Kind: KStruct, Struct: build()}
	in.structs[site] = t
	return t
}

func (in *Interner) Enum(site *StructSite, name string, members map[int64]string, order []int64, isFlags bool) *Type {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.enums[site]; ok {
		return t
	}
	k := KEnum
	if isFlags {
		k = KFlags
	}
	t := &Type{Kind: k, Enum: &EnumInfo{Name: name, Members: members, Order: order}}
	in.enums[site] = t
	return t
}

// StructField is one field of a struct type (spec.md §3: "fields[(name,
// type, init?, hashtags)]").
type StructField struct {
	Name     string
	Type     *Type
	Init     bool // has a default initializer (the initializer IR lives on the builder side)
	Hashtags map[Hashtag]bool
}

// StructInfo is the nominal payload of a KStruct type.
type StructInfo struct {
	Name     string
	Fields   []StructField
	Hashtags map[Hashtag]bool

	helperMu sync.Mutex
	helpers  map[string]interface{} // cached *ir.Func per helper kind, lazily built once
}

func (s *StructInfo) FieldIndex(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Bytes is S's compile-time size in bytes under the given architecture
// alignment rule (spec.md §8 scenario 6). Fields are packed with
// size-and-alignment rules matching the original Icarus
// src/architecture.cc: each field is aligned to its own size (capped by
// ptrAlign), and the struct is padded up to its largest field's
// alignment.
func (s *StructInfo) Bytes(arch Architecture) int64 {
	var offset int64
	var maxAlign int64 = 1
	for _, f := range s.Fields {
		sz, align := arch.SizeOf(f.Type)
		if align > maxAlign {
			maxAlign = align
		}
		offset = alignUp(offset, align)
		offset += sz
	}
	return alignUp(offset, maxAlign)
}

func alignUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}

// EnumInfo is the nominal payload of a KEnum/KFlags type: an ordered
// value→name map (spec.md §3: "Enum(members: ordered map<value→name>)").
// Members is the value→name lookup; Order lists those same values in
// declaration order, since Go map iteration would otherwise scramble it
// (used by lowerFor's enum-iteration walk and anything else that must
// visit members in the order they were declared rather than by value).
type EnumInfo struct {
	Name    string
	Members map[int64]string
	Order   []int64
}

// GenericStructInfo backs KGenericStruct: a struct parameterized by
// compile-time dependent types/constants, instantiated and cached per
// bound-constants tuple (spec.md §3/§9, SPEC_FULL.md supplemented
// feature).
type GenericStructInfo struct {
	DepTypes []*Type // placeholder types standing for each bound parameter

	mu            sync.Mutex
	instantiations map[string]*Type // keyed by the bound-constants tuple's string form
	build         func(bound []interface{}) *StructInfo
}

func NewGenericStructInfo(depTypes []*Type, build func(bound []interface{}) *StructInfo) *GenericStructInfo {
	return &GenericStructInfo{DepTypes: depTypes, instantiations: make(map[string]*Type), build: build}
}

// Instantiate returns the struct type bound to the given compile-time
// constants, caching by the constants tuple to avoid infinite recursion
// on recursive generics (spec.md §9).
func (g *GenericStructInfo) Instantiate(bound []interface{}) *Type {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := fmt.Sprintf("%v", bound)
	if t, ok := g.instantiations[key]; ok {
		return t
	}
	// Reserve the slot before calling build so a recursive generic that
	// instantiates itself with the same bound constants sees the
	// in-progress placeholder rather than recursing forever.
	placeholder := &Type{Kind: KStruct, Struct: &StructInfo{Name: "<instantiating>"}}
	g.instantiations[key] = placeholder
	info := g.build(bound)
	placeholder.Struct = info
	return placeholder
}
