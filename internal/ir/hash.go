package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainGraph = "typegraph/graph/v1"
	DomainNode  = "typegraph/node/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GraphHash computes the content address of a whole graph. Two graphs with
// the same nodes (IDs included) hash identically regardless of insertion
// order. The store uses it to recognise re-analysis of the same input.
func GraphHash(g *Graph) (string, error) {
	nodes := make(IRArray, 0, g.Len())
	for _, id := range g.IDs() {
		nodes = append(nodes, NodeValue(g.MustLookup(id)))
	}
	canonical, err := MarshalCanonical(nodes)
	if err != nil {
		return "", fmt.Errorf("GraphHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// NodeHash computes the content address of one node description.
func NodeHash(n *Node) (string, error) {
	canonical, err := MarshalCanonical(NodeValue(n))
	if err != nil {
		return "", fmt.Errorf("NodeHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainNode, canonical), nil
}

// NodeValue converts a node to its canonical IRObject form. IDs are encoded
// as decimal strings because they may exceed the int64 range.
func NodeValue(n *Node) IRObject {
	obj := IRObject{
		"id":   idValue(n.ID),
		"kind": IRString(n.Kind.String()),
		"name": IRString(n.Name),
		"unit": IRString(n.Unit),
	}
	switch b := n.Body.(type) {
	case *Base:
		obj["encoding"] = IRString(b.Encoding.String())
		obj["byte_size"] = IRInt(b.ByteSize)
		obj["bit_size"] = IRInt(b.BitSize)
		obj["bit_offset"] = IRInt(b.BitOffset)
	case *Chain:
		obj["target"] = idValue(b.Target)
		obj["byte_size"] = IRInt(b.ByteSize)
	case *Composite:
		members := make(IRArray, len(b.Members))
		for i, m := range b.Members {
			members[i] = IRObject{
				"name":        IRString(m.Name),
				"type":        idValue(m.Type),
				"offset":      IRInt(m.Offset),
				"bit_size":    IRInt(m.BitSize),
				"bit_offset":  IRInt(m.BitOffset),
				"declaration": IRBool(m.Declaration),
			}
		}
		obj["members"] = members
		obj["byte_size"] = IRInt(b.ByteSize)
		obj["declaration"] = IRBool(b.Declaration)
	case *Array:
		dims := make(IRArray, len(b.Dims))
		for i, d := range b.Dims {
			dims[i] = boundsValue(d.Lower, d.Upper, d.Count)
		}
		obj["elem"] = idValue(b.Elem)
		obj["dims"] = dims
	case *Subrange:
		obj["base"] = idValue(b.Base)
		obj["bounds"] = boundsValue(b.Lower, b.Upper, b.Count)
	case *Enumeration:
		enums := make(IRArray, len(b.Enumerators))
		for i, e := range b.Enumerators {
			ev := IRObject{"name": IRString(e.Name)}
			if e.Value != nil {
				ev["value"] = IRInt(*e.Value)
			}
			enums[i] = ev
		}
		obj["base"] = idValue(b.Base)
		obj["enumerators"] = enums
		obj["declaration"] = IRBool(b.Declaration)
	case *Subroutine:
		params := make(IRArray, len(b.Params))
		for i, p := range b.Params {
			params[i] = IRObject{"name": IRString(p.Name), "type": idValue(p.Type)}
		}
		obj["return"] = idValue(b.Return)
		obj["params"] = params
		obj["variadic"] = IRBool(b.Variadic)
	case *String:
		if b.Length != nil {
			obj["length"] = IRInt(*b.Length)
		}
	case *Unspecified:
	}
	return obj
}

func idValue(id NodeID) IRString {
	return IRString(fmt.Sprintf("%d", uint64(id)))
}

func boundsValue(lower, upper, count *int64) IRObject {
	obj := IRObject{}
	if lower != nil {
		obj["lower"] = IRInt(*lower)
	}
	if upper != nil {
		obj["upper"] = IRInt(*upper)
	}
	if count != nil {
		obj["count"] = IRInt(*count)
	}
	return obj
}
