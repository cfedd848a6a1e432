package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/typegraph/internal/ir"
)

// CompileSource compiles a CUE type-graph description held in memory.
// filename is only used for error positions.
func CompileSource(src, filename string) (*ir.Graph, error) {
	c, err := CompileLabeledSource(src, filename)
	if err != nil {
		return nil, err
	}
	return c.Graph, nil
}

// CompileLabeledSource is CompileSource keeping the label-to-ID mapping.
func CompileLabeledSource(src, filename string) (*Compiled, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	return CompileLabeled(v)
}

// Compiled is a compiled graph together with the labels its nodes were
// declared under.
type Compiled struct {
	Graph *ir.Graph

	labels map[declKey]ir.NodeID
	byName map[string][]ir.NodeID // bare label -> IDs across units
}

// Resolve returns the node declared under ref, written "<unit>:<label>"
// or as a bare label. A bare label must be declared in exactly one unit.
func (c *Compiled) Resolve(ref string) (ir.NodeID, error) {
	if i := strings.LastIndex(ref, ":"); i > 0 {
		if id, ok := c.labels[declKey{unit: ref[:i], label: ref[i+1:]}]; ok {
			return id, nil
		}
	}
	switch ids := c.byName[ref]; len(ids) {
	case 0:
		return ir.NoNode, fmt.Errorf("undefined type reference %q", ref)
	case 1:
		return ids[0], nil
	default:
		return ir.NoNode, fmt.Errorf("ambiguous type reference %q: declared in %d units", ref, len(ids))
	}
}

// Label returns the "<unit>:<label>" a node was declared under.
func (c *Compiled) Label(id ir.NodeID) (string, bool) {
	for k, v := range c.labels {
		if v == id {
			return k.unit + ":" + k.label, true
		}
	}
	return "", false
}

// Labels returns the "<unit>:<label>" of every declared node.
func (c *Compiled) Labels() map[ir.NodeID]string {
	out := make(map[ir.NodeID]string, len(c.labels))
	for k, id := range c.labels {
		out[id] = k.unit + ":" + k.label
	}
	return out
}

// CompileGraph parses a CUE value into a type graph.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value holds one struct per compilation unit, each mapping a label to
// a type description:
//
//	unit: "list.c": types: {
//		"int": {kind: "base", name: "int", encoding: "signed", size: 4}
//		Node: {kind: "struct", name: "Node", size: 16, members: [
//			{name: "next", type: "ptr", offset: 0},
//			{name: "val", type: "int", offset: 8},
//		]}
//		ptr: {kind: "pointer", target: "Node", size: 8}
//	}
//
// Type references name a label of the same unit, or "<unit>:<label>" for a
// label of another unit. An absent or "void" reference is void. Node IDs
// are assigned 1, 2, ... in declaration order across units.
func CompileGraph(v cue.Value) (*ir.Graph, error) {
	c, err := CompileLabeled(v)
	if err != nil {
		return nil, err
	}
	return c.Graph, nil
}

// CompileLabeled is CompileGraph keeping the label-to-ID mapping.
func CompileLabeled(v cue.Value) (*Compiled, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unitsVal := v.LookupPath(cue.ParsePath("unit"))
	if !unitsVal.Exists() {
		return nil, &CompileError{
			Field:   "unit",
			Message: "at least one unit is required",
			Pos:     v.Pos(),
		}
	}

	decls, err := collectDecls(unitsVal)
	if err != nil {
		return nil, err
	}

	c := &graphCompiler{ids: make(map[declKey]ir.NodeID, len(decls))}
	byName := make(map[string][]ir.NodeID)
	for i, d := range decls {
		id := ir.NodeID(i + 1)
		c.ids[d.key] = id
		byName[d.key.label] = append(byName[d.key.label], id)
	}

	g := ir.NewGraph()
	for i, d := range decls {
		n, err := c.compileNode(ir.NodeID(i+1), d)
		if err != nil {
			return nil, err
		}
		if err := g.Add(n); err != nil {
			return nil, &CompileError{
				Field:   d.field(),
				Message: err.Error(),
				Pos:     d.value.Pos(),
			}
		}
	}
	return &Compiled{Graph: g, labels: c.ids, byName: byName}, nil
}

type declKey struct {
	unit, label string
}

// decl is one labelled type description awaiting compilation.
type decl struct {
	key   declKey
	value cue.Value
}

func (d decl) field() string {
	return fmt.Sprintf("unit.%q.types.%s", d.key.unit, d.key.label)
}

// collectDecls lists every type description in declaration order. IDs are
// assigned from this order before any body is parsed, so references may
// point forward.
func collectDecls(unitsVal cue.Value) ([]decl, error) {
	var decls []decl
	units, err := unitsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for units.Next() {
		unit := units.Selector().Unquoted()
		typesVal := units.Value().LookupPath(cue.ParsePath("types"))
		if !typesVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("unit.%q.types", unit),
				Message: "types are required",
				Pos:     units.Value().Pos(),
			}
		}
		types, err := typesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for types.Next() {
			decls = append(decls, decl{
				key:   declKey{unit: unit, label: types.Selector().Unquoted()},
				value: types.Value(),
			})
		}
	}
	if len(decls) == 0 {
		return nil, &CompileError{
			Field:   "unit",
			Message: "no types declared",
			Pos:     unitsVal.Pos(),
		}
	}
	return decls, nil
}

type graphCompiler struct {
	ids map[declKey]ir.NodeID
}

func (c *graphCompiler) compileNode(id ir.NodeID, d decl) (*ir.Node, error) {
	v := d.value
	kindStr, err := requiredString(v, "kind", d.field())
	if err != nil {
		return nil, err
	}
	kind, ok := ir.ParseKind(kindStr)
	if !ok {
		return nil, &CompileError{
			Field:   d.field() + ".kind",
			Message: fmt.Sprintf("unknown type kind %q", kindStr),
			Pos:     v.LookupPath(cue.ParsePath("kind")).Pos(),
		}
	}
	name, err := optionalString(v, "name")
	if err != nil {
		return nil, err
	}

	n := &ir.Node{ID: id, Kind: kind, Name: name, Unit: d.key.unit}
	switch kind.Variant() {
	case ir.VariantBase:
		n.Body, err = c.parseBase(v, d)
	case ir.VariantChain:
		n.Body, err = c.parseChain(v, d)
	case ir.VariantWithDataMembers:
		n.Body, err = c.parseComposite(v, d)
	case ir.VariantArray:
		n.Body, err = c.parseArray(v, d)
	case ir.VariantSubrange:
		n.Body, err = c.parseSubrange(v, d)
	case ir.VariantEnumeration:
		n.Body, err = c.parseEnumeration(v, d)
	case ir.VariantSubprogram:
		n.Body, err = c.parseSubroutine(v, d)
	case ir.VariantString:
		n.Body, err = parseString(v)
	case ir.VariantUnspecified:
		n.Body = &ir.Unspecified{}
	default:
		return nil, &CompileError{
			Field:   d.field() + ".kind",
			Message: fmt.Sprintf("unsupported type kind %q", kindStr),
			Pos:     v.Pos(),
		}
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (c *graphCompiler) parseBase(v cue.Value, d decl) (*ir.Base, error) {
	encStr, err := requiredString(v, "encoding", d.field())
	if err != nil {
		return nil, err
	}
	enc, ok := ir.ParseEncoding(encStr)
	if !ok {
		return nil, &CompileError{
			Field:   d.field() + ".encoding",
			Message: fmt.Sprintf("unknown encoding %q", encStr),
			Pos:     v.LookupPath(cue.ParsePath("encoding")).Pos(),
		}
	}
	b := &ir.Base{Encoding: enc}
	if b.ByteSize, err = intOr(v, "size", 0); err != nil {
		return nil, err
	}
	if b.BitSize, err = intOr(v, "bit_size", 0); err != nil {
		return nil, err
	}
	if b.BitOffset, err = intOr(v, "bit_offset", 0); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *graphCompiler) parseChain(v cue.Value, d decl) (*ir.Chain, error) {
	target, err := c.ref(v, "target", d)
	if err != nil {
		return nil, err
	}
	size, err := intOr(v, "size", 0)
	if err != nil {
		return nil, err
	}
	return &ir.Chain{Target: target, ByteSize: size}, nil
}

func (c *graphCompiler) parseComposite(v cue.Value, d decl) (*ir.Composite, error) {
	comp := &ir.Composite{}
	var err error
	if comp.ByteSize, err = intOr(v, "size", 0); err != nil {
		return nil, err
	}
	if comp.Declaration, err = boolOr(v, "declaration", false); err != nil {
		return nil, err
	}

	membersVal := v.LookupPath(cue.ParsePath("members"))
	if !membersVal.Exists() {
		return comp, nil
	}
	iter, err := membersVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		mv := iter.Value()
		md := decl{key: declKey{unit: d.key.unit, label: fmt.Sprintf("%s.members[%d]", d.key.label, i)}, value: mv}
		var m ir.Member
		if m.Name, err = optionalString(mv, "name"); err != nil {
			return nil, err
		}
		if !mv.LookupPath(cue.ParsePath("type")).Exists() {
			return nil, &CompileError{
				Field:   md.field() + ".type",
				Message: "member type is required",
				Pos:     mv.Pos(),
			}
		}
		if m.Type, err = c.ref(mv, "type", md); err != nil {
			return nil, err
		}
		if m.Offset, err = intOr(mv, "offset", 0); err != nil {
			return nil, err
		}
		if m.BitSize, err = intOr(mv, "bit_size", 0); err != nil {
			return nil, err
		}
		if m.BitOffset, err = intOr(mv, "bit_offset", 0); err != nil {
			return nil, err
		}
		if m.Declaration, err = boolOr(mv, "static", false); err != nil {
			return nil, err
		}
		comp.Members = append(comp.Members, m)
	}
	return comp, nil
}

func (c *graphCompiler) parseArray(v cue.Value, d decl) (*ir.Array, error) {
	elem, err := c.ref(v, "elem", d)
	if err != nil {
		return nil, err
	}
	arr := &ir.Array{Elem: elem}

	dimsVal := v.LookupPath(cue.ParsePath("dims"))
	if !dimsVal.Exists() {
		// T[] with no subrange child.
		arr.Dims = []ir.Dimension{{}}
		return arr, nil
	}
	iter, err := dimsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		lower, upper, count, err := bounds(iter.Value())
		if err != nil {
			return nil, err
		}
		arr.Dims = append(arr.Dims, ir.Dimension{Lower: lower, Upper: upper, Count: count})
	}
	if len(arr.Dims) == 0 {
		arr.Dims = []ir.Dimension{{}}
	}
	return arr, nil
}

func (c *graphCompiler) parseSubrange(v cue.Value, d decl) (*ir.Subrange, error) {
	base, err := c.ref(v, "base", d)
	if err != nil {
		return nil, err
	}
	lower, upper, count, err := bounds(v)
	if err != nil {
		return nil, err
	}
	return &ir.Subrange{Base: base, Lower: lower, Upper: upper, Count: count}, nil
}

func (c *graphCompiler) parseEnumeration(v cue.Value, d decl) (*ir.Enumeration, error) {
	base, err := c.ref(v, "base", d)
	if err != nil {
		return nil, err
	}
	enum := &ir.Enumeration{Base: base}
	if enum.ByteSize, err = intOr(v, "size", 0); err != nil {
		return nil, err
	}
	if enum.Declaration, err = boolOr(v, "declaration", false); err != nil {
		return nil, err
	}

	enumVal := v.LookupPath(cue.ParsePath("enumerators"))
	if !enumVal.Exists() {
		return enum, nil
	}
	iter, err := enumVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		ev := iter.Value()
		// Bare strings are enumerators with implicit values.
		if s, err := ev.String(); err == nil {
			enum.Enumerators = append(enum.Enumerators, ir.Enumerator{Name: s})
			continue
		}
		name, err := requiredString(ev, "name", d.field()+".enumerators")
		if err != nil {
			return nil, err
		}
		value, err := optionalInt(ev, "value")
		if err != nil {
			return nil, err
		}
		enum.Enumerators = append(enum.Enumerators, ir.Enumerator{Name: name, Value: value})
	}
	return enum, nil
}

func (c *graphCompiler) parseSubroutine(v cue.Value, d decl) (*ir.Subroutine, error) {
	ret, err := c.ref(v, "return", d)
	if err != nil {
		return nil, err
	}
	sub := &ir.Subroutine{Return: ret}
	if sub.Variadic, err = boolOr(v, "variadic", false); err != nil {
		return nil, err
	}

	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if !paramsVal.Exists() {
		return sub, nil
	}
	iter, err := paramsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		pv := iter.Value()
		pd := decl{key: declKey{unit: d.key.unit, label: fmt.Sprintf("%s.params[%d]", d.key.label, i)}, value: pv}
		// A bare string is an unnamed parameter of that type.
		if _, err := pv.String(); err == nil {
			id, err := c.resolve(pv, pd)
			if err != nil {
				return nil, err
			}
			sub.Params = append(sub.Params, ir.Param{Type: id})
			continue
		}
		var p ir.Param
		if p.Name, err = optionalString(pv, "name"); err != nil {
			return nil, err
		}
		if p.Type, err = c.ref(pv, "type", pd); err != nil {
			return nil, err
		}
		sub.Params = append(sub.Params, p)
	}
	return sub, nil
}

func parseString(v cue.Value) (*ir.String, error) {
	length, err := optionalInt(v, "length")
	if err != nil {
		return nil, err
	}
	return &ir.String{Length: length}, nil
}

// ref resolves the type reference stored at field, or void when absent.
func (c *graphCompiler) ref(v cue.Value, field string, d decl) (ir.NodeID, error) {
	rv := v.LookupPath(cue.ParsePath(field))
	if !rv.Exists() {
		return ir.NoNode, nil
	}
	return c.resolve(rv, decl{key: d.key, value: rv})
}

func (c *graphCompiler) resolve(rv cue.Value, d decl) (ir.NodeID, error) {
	label, err := rv.String()
	if err != nil {
		return ir.NoNode, formatCUEError(err)
	}
	if label == "" || label == "void" {
		return ir.NoNode, nil
	}
	if id, ok := c.ids[declKey{unit: d.key.unit, label: label}]; ok {
		return id, nil
	}
	if i := strings.LastIndex(label, ":"); i > 0 {
		if id, ok := c.ids[declKey{unit: label[:i], label: label[i+1:]}]; ok {
			return id, nil
		}
	}
	return ir.NoNode, &CompileError{
		Field:   d.field(),
		Message: fmt.Sprintf("undefined type reference %q", label),
		Pos:     rv.Pos(),
	}
}

// bounds reads the optional lower, upper and count fields of a dimension
// or subrange.
func bounds(v cue.Value) (lower, upper, count *int64, err error) {
	if lower, err = optionalInt(v, "lower"); err != nil {
		return nil, nil, nil, err
	}
	if upper, err = optionalInt(v, "upper"); err != nil {
		return nil, nil, nil, err
	}
	if count, err = optionalInt(v, "count"); err != nil {
		return nil, nil, nil, err
	}
	return lower, upper, count, nil
}

func requiredString(v cue.Value, field, context string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   context + "." + field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// optionalInt reads an integer field. Floats are rejected: every size,
// offset and bound in debug info is integral.
func optionalInt(v cue.Value, field string) (*int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	if k := fv.IncompleteKind(); k == cue.FloatKind || k == cue.NumberKind {
		return nil, &CompileError{
			Field:   field,
			Message: "float values are not allowed, use int",
			Pos:     fv.Pos(),
		}
	}
	n, err := fv.Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return &n, nil
}

func intOr(v cue.Value, field string, def int64) (int64, error) {
	n, err := optionalInt(v, field)
	if err != nil || n == nil {
		return def, err
	}
	return *n, nil
}

func boolOr(v cue.Value, field string, def bool) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return def, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return def, formatCUEError(err)
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
