package dwarfload

import (
	"debug/dwarf"
	"fmt"

	"fortio.org/safecast"

	"github.com/roach88/typegraph/internal/ir"
)

// entryReader is the part of *dwarf.Reader the decoder needs.
type entryReader interface {
	Next() (*dwarf.Entry, error)
}

// DW_ATE_* values.
var encodings = map[int64]ir.Encoding{
	0x01: ir.EncodingAddress,
	0x02: ir.EncodingBoolean,
	0x03: ir.EncodingComplexFloat,
	0x04: ir.EncodingFloat,
	0x05: ir.EncodingSigned,
	0x06: ir.EncodingSignedChar,
	0x07: ir.EncodingUnsigned,
	0x08: ir.EncodingUnsignedChar,
	0x10: ir.EncodingUTF,
}

var chainKinds = map[dwarf.Tag]ir.Kind{
	dwarf.TagTypedef:             ir.KindTypedef,
	dwarf.TagConstType:           ir.KindConst,
	dwarf.TagVolatileType:        ir.KindVolatile,
	dwarf.TagRestrictType:        ir.KindRestrict,
	dwarf.TagPointerType:         ir.KindPointer,
	dwarf.TagReferenceType:       ir.KindReference,
	dwarf.TagRvalueReferenceType: ir.KindRvalueReference,
}

var compositeKinds = map[dwarf.Tag]ir.Kind{
	dwarf.TagStructType: ir.KindStruct,
	dwarf.TagUnionType:  ir.KindUnion,
	dwarf.TagClassType:  ir.KindClass,
}

// frame is one open entry with children. node is nil for entries that are
// not types (subprograms, namespaces, lexical blocks).
type frame struct {
	node *ir.Node
}

type decoder struct {
	base  ir.NodeID
	unit  string
	stack []frame
	nodes []*ir.Node
}

// decode walks the entries in order. Children are attached to the nearest
// open type entry: members to composites, enumerators to enumerations,
// subranges to arrays and parameters to subroutine types.
func decode(r entryReader, base ir.NodeID) (*ir.Graph, error) {
	d := &decoder{base: base}
	for {
		e, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("read entry: %w", err)
		}
		if e == nil {
			break
		}
		if e.Tag == 0 {
			if len(d.stack) > 0 {
				d.stack = d.stack[:len(d.stack)-1]
			}
			continue
		}

		node := d.entry(e)
		if node != nil {
			d.nodes = append(d.nodes, node)
		}
		if e.Children {
			d.stack = append(d.stack, frame{node: node})
		}
	}

	g := ir.NewGraph()
	for _, n := range d.nodes {
		if err := g.Add(n); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (d *decoder) id(off dwarf.Offset) ir.NodeID {
	return d.base | ir.NodeID(off)
}

// ref returns the node referenced by attr, or void.
func (d *decoder) ref(e *dwarf.Entry, attr dwarf.Attr) ir.NodeID {
	if off, ok := e.Val(attr).(dwarf.Offset); ok {
		return d.id(off)
	}
	return ir.NoNode
}

func (d *decoder) parent() *ir.Node {
	if len(d.stack) == 0 {
		return nil
	}
	return d.stack[len(d.stack)-1].node
}

// entry decodes one entry. It returns the new node for type entries and nil
// for children folded into their parent or entries that are not types.
func (d *decoder) entry(e *dwarf.Entry) *ir.Node {
	switch e.Tag {
	case dwarf.TagCompileUnit, dwarf.TagPartialUnit:
		d.unit = stringAttr(e, dwarf.AttrName)
		if d.unit == "" {
			d.unit = fmt.Sprintf("unit@%#x", e.Offset)
		}
		return nil

	case dwarf.TagMember, dwarf.TagVariable:
		if c := d.parentComposite(); c != nil {
			c.Members = append(c.Members, d.member(e))
		}
		return nil

	case dwarf.TagEnumerator:
		if p := d.parent(); p != nil {
			if en, ok := p.Body.(*ir.Enumeration); ok {
				en.Enumerators = append(en.Enumerators, ir.Enumerator{
					Name:  stringAttr(e, dwarf.AttrName),
					Value: intAttr(e, dwarf.AttrConstValue),
				})
			}
		}
		return nil

	case dwarf.TagFormalParameter:
		if p := d.parent(); p != nil {
			if sub, ok := p.Body.(*ir.Subroutine); ok {
				sub.Params = append(sub.Params, ir.Param{
					Name: stringAttr(e, dwarf.AttrName),
					Type: d.ref(e, dwarf.AttrType),
				})
			}
		}
		return nil

	case dwarf.TagUnspecifiedParameters:
		if p := d.parent(); p != nil {
			if sub, ok := p.Body.(*ir.Subroutine); ok {
				sub.Variadic = true
			}
		}
		return nil

	case dwarf.TagSubrangeType:
		if p := d.parent(); p != nil {
			if arr, ok := p.Body.(*ir.Array); ok {
				arr.Dims = append(arr.Dims, ir.Dimension{
					Lower: intAttr(e, dwarf.AttrLowerBound),
					Upper: intAttr(e, dwarf.AttrUpperBound),
					Count: intAttr(e, dwarf.AttrCount),
				})
				return nil
			}
		}
		return d.node(e, ir.KindSubrange, &ir.Subrange{
			Base:  d.ref(e, dwarf.AttrType),
			Lower: intAttr(e, dwarf.AttrLowerBound),
			Upper: intAttr(e, dwarf.AttrUpperBound),
			Count: intAttr(e, dwarf.AttrCount),
		})

	case dwarf.TagBaseType:
		enc, ok := encodings[intOr(e, dwarf.AttrEncoding)]
		if !ok {
			enc = ir.EncodingNone
		}
		bitOffset := intOr(e, dwarf.AttrDataBitOffset)
		if bitOffset == 0 {
			bitOffset = intOr(e, dwarf.AttrBitOffset)
		}
		return d.node(e, ir.KindBase, &ir.Base{
			Encoding:  enc,
			ByteSize:  intOr(e, dwarf.AttrByteSize),
			BitSize:   intOr(e, dwarf.AttrBitSize),
			BitOffset: bitOffset,
		})

	case dwarf.TagArrayType:
		arr := &ir.Array{Elem: d.ref(e, dwarf.AttrType)}
		if !e.Children {
			// T[] with no subrange child.
			arr.Dims = []ir.Dimension{{}}
		}
		return d.node(e, ir.KindArray, arr)

	case dwarf.TagEnumerationType:
		return d.node(e, ir.KindEnumeration, &ir.Enumeration{
			Base:        d.ref(e, dwarf.AttrType),
			ByteSize:    intOr(e, dwarf.AttrByteSize),
			Declaration: flagAttr(e, dwarf.AttrDeclaration),
		})

	case dwarf.TagSubroutineType:
		return d.node(e, ir.KindSubroutine, &ir.Subroutine{
			Return: d.ref(e, dwarf.AttrType),
		})

	case dwarf.TagStringType:
		return d.node(e, ir.KindString, &ir.String{
			Length: intAttr(e, dwarf.AttrByteSize),
		})

	case dwarf.TagUnspecifiedType:
		return d.node(e, ir.KindUnspecified, &ir.Unspecified{})
	}

	if kind, ok := chainKinds[e.Tag]; ok {
		return d.node(e, kind, &ir.Chain{
			Target:   d.ref(e, dwarf.AttrType),
			ByteSize: intOr(e, dwarf.AttrByteSize),
		})
	}
	if kind, ok := compositeKinds[e.Tag]; ok {
		return d.node(e, kind, &ir.Composite{
			ByteSize:    intOr(e, dwarf.AttrByteSize),
			Declaration: flagAttr(e, dwarf.AttrDeclaration),
		})
	}
	return nil
}

func (d *decoder) node(e *dwarf.Entry, kind ir.Kind, body ir.Body) *ir.Node {
	return &ir.Node{
		ID:   d.id(e.Offset),
		Kind: kind,
		Name: stringAttr(e, dwarf.AttrName),
		Unit: d.unit,
		Body: body,
	}
}

// parentComposite returns the body of the innermost open entry when it is
// a struct, union or class.
func (d *decoder) parentComposite() *ir.Composite {
	p := d.parent()
	if p == nil {
		return nil
	}
	c, _ := p.Body.(*ir.Composite)
	return c
}

// member decodes a data member. Static members (DW_TAG_variable children,
// or members flagged external/declaration) occupy no storage.
func (d *decoder) member(e *dwarf.Entry) ir.Member {
	m := ir.Member{
		Name:    stringAttr(e, dwarf.AttrName),
		Type:    d.ref(e, dwarf.AttrType),
		BitSize: intOr(e, dwarf.AttrBitSize),
	}
	m.Declaration = e.Tag == dwarf.TagVariable ||
		flagAttr(e, dwarf.AttrExternal) ||
		flagAttr(e, dwarf.AttrDeclaration)
	if m.Declaration {
		return m
	}
	m.Offset = memberOffset(e)
	m.BitOffset = intOr(e, dwarf.AttrDataBitOffset)
	if m.BitOffset == 0 {
		m.BitOffset = intOr(e, dwarf.AttrBitOffset)
	}
	return m
}

// memberOffset reads DW_AT_data_member_location as a constant or as the
// DW_OP_plus_uconst expression older producers emit.
func memberOffset(e *dwarf.Entry) int64 {
	switch v := e.Val(dwarf.AttrDataMemberLoc).(type) {
	case int64:
		return v
	case uint64:
		n, err := safecast.Conv[int64](v)
		if err == nil {
			return n
		}
	case []byte:
		const opPlusUconst = 0x23
		if len(v) > 1 && v[0] == opPlusUconst {
			u, _ := uleb128(v[1:])
			if n, err := safecast.Conv[int64](u); err == nil {
				return n
			}
		}
	}
	return 0
}

func uleb128(b []byte) (uint64, int) {
	var result uint64
	var shift uint
	for i, c := range b {
		result |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return result, i + 1
		}
		shift += 7
		if shift >= 64 {
			break
		}
	}
	return result, len(b)
}

func stringAttr(e *dwarf.Entry, attr dwarf.Attr) string {
	s, _ := e.Val(attr).(string)
	return s
}

func flagAttr(e *dwarf.Entry, attr dwarf.Attr) bool {
	b, _ := e.Val(attr).(bool)
	return b
}

// intAttr returns a constant attribute, or nil when absent or not a
// constant (e.g. a bound given as an expression).
func intAttr(e *dwarf.Entry, attr dwarf.Attr) *int64 {
	switch v := e.Val(attr).(type) {
	case int64:
		return &v
	case uint64:
		if n, err := safecast.Conv[int64](v); err == nil {
			return &n
		}
	}
	return nil
}

func intOr(e *dwarf.Entry, attr dwarf.Attr) int64 {
	if v := intAttr(e, attr); v != nil {
		return *v
	}
	return 0
}
