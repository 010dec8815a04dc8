package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/planir/internal/ir"
)

func node(name, op string, inputs ...string) *ir.NodeDef {
	return &ir.NodeDef{Name: name, Op: op, Input: inputs}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValidGraph(t *testing.T) {
	g := &ir.GraphDef{Node: []*ir.NodeDef{
		node("a", "Const"),
		node("b", "Switch", "a", "a"),
		node("c", "Identity", "b:1", "^a"),
		node("d.e/f_g", "NoOp", "^c"),
	}}
	assert.Empty(t, Validate(g), "valid graph should have no errors")
	assert.Empty(t, Validate(*g), "value form should validate too")
}

func TestValidateForwardReferencesAllowed(t *testing.T) {
	g := &ir.GraphDef{Node: []*ir.NodeDef{
		node("b", "Identity", "a"),
		node("a", "Const"),
	}}
	assert.Empty(t, Validate(g))
}

func TestValidateCollectsAllErrors(t *testing.T) {
	g := &ir.GraphDef{Node: []*ir.NodeDef{
		node("", "Const"),
		node("a", ""),
		node("a", "Const"),
		node("b", "Identity", "ghost"),
		node("c", "Identity", "^a", "a"),
		node("d", "Identity", "d"),
		node("e", "Identity", "a:", "^a:1", "", ":0"),
	}}

	errs := Validate(g)
	assert.Equal(t, []string{
		ErrDuplicateNode,
		ErrNodeNameEmpty,
		ErrNodeOpEmpty,
		ErrUnknownInput,
		ErrInputOrder,
		ErrSelfReference,
		ErrMalformedInput,
		ErrMalformedInput,
		ErrMalformedInput,
		ErrMalformedInput,
	}, codes(errs))

	assert.Equal(t, "node[2].name", errs[0].Field)
	assert.Equal(t, "node[3].input[0]", errs[3].Field)
	assert.Contains(t, errs[3].Message, `undefined node "ghost"`)
	assert.Equal(t, `[E205] node[4].input[1]: regular input "a" follows a control input`, errs[4].Error())
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("not a graph")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
	assert.Contains(t, errs[0].Message, "string")
}

func TestValidateNilGraph(t *testing.T) {
	var g *ir.GraphDef
	assert.Empty(t, Validate(g))
}

func TestValidateNullNode(t *testing.T) {
	errs := Validate(&ir.GraphDef{Node: []*ir.NodeDef{nil}})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrNodeNameEmpty, errs[0].Code)
	assert.Equal(t, "node[0]", errs[0].Field)
	assert.Equal(t, "node definition is null", errs[0].Message)

	g := &ir.GraphDef{Node: []*ir.NodeDef{
		node("a", "X"),
		nil,
		node("b", "X", "a"),
	}}
	errs = Validate(g)
	require.Len(t, errs, 1)
	assert.Equal(t, "node[1]", errs[0].Field)
}

func TestValidationErrorLine(t *testing.T) {
	e := ValidationError{Field: "node[0]", Message: "bad", Code: ErrNodeOpEmpty, Line: 7}
	assert.Equal(t, "[E207] line 7: node[0]: bad", e.Error())
}

func TestIsValidInputRef(t *testing.T) {
	valid := []string{"a", "a:0", "a:12", "^a", "scope/a_1", ".hidden", "x>y"}
	for _, ref := range valid {
		assert.True(t, isValidInputRef(ref), "%q should be valid", ref)
	}

	invalid := []string{"", "^", "^a:0", "a:", "a:-1", ":1", "_a", "a b", "^^a"}
	for _, ref := range invalid {
		assert.False(t, isValidInputRef(ref), "%q should be invalid", ref)
	}
}
