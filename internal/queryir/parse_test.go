package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typegraph/internal/ir"
)

func TestParseTerm(t *testing.T) {
	tests := []struct {
		term string
		want Predicate
	}{
		{"kind=struct", Equals{Field: FieldKind, Value: ir.IRString("struct")}},
		{"name = Node ", Equals{Field: FieldName, Value: ir.IRString("Node")}},
		{"abstract_name=Node*", Equals{Field: FieldAbstractName, Value: ir.IRString("Node*")}},
		{"code=0x2a", Equals{Field: FieldCode, Value: ir.IRInt(42)}},
		{"class_id=3", Equals{Field: FieldClass, Value: ir.IRInt(3)}},
		{"complete=false", Equals{Field: FieldComplete, Value: ir.IRBool(false)}},
		{"code=null", IsNull{Field: FieldCode}},
		{"scc_index=null", IsNull{Field: FieldSCC}},
		{"name=null", Equals{Field: FieldName, Value: ir.IRString("null")}},
		{"node=0x100000004b", NodeIs{Node: 0x100000004b}},
		{"same_class=7", SameClass{Node: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			got, err := ParseTerm(tt.term)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTermErrors(t *testing.T) {
	tests := []struct {
		term string
		want string
	}{
		{"kind", "expected field=value"},
		{"=struct", "expected field=value"},
		{"size=4", `unknown field "size"`},
		{"code=abc", "invalid int"},
		{"complete=maybe", "invalid bool"},
		{"node=xyz", "invalid node id"},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			_, err := ParseTerm(tt.term)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseFilter(t *testing.T) {
	p, err := ParseFilter(nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = ParseFilter([]string{"kind=union"})
	require.NoError(t, err)
	assert.Equal(t, Equals{Field: FieldKind, Value: ir.IRString("union")}, p)

	p, err = ParseFilter([]string{"kind=struct", "code=null"})
	require.NoError(t, err)
	assert.Equal(t, And{Predicates: []Predicate{
		Equals{Field: FieldKind, Value: ir.IRString("struct")},
		IsNull{Field: FieldCode},
	}}, p)
	assert.True(t, Validate(Select{Filter: p}).Valid)

	_, err = ParseFilter([]string{"kind=struct", "bogus=1"})
	assert.Error(t, err)
}
