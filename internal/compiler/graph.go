package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/planir/internal/ir"
)

// CompileGraph parses a CUE value into a GraphDef.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// Nodes are written either as a struct keyed by node name, which keeps
// declaration order:
//
//	graph: node: {
//		a: op: "Const"
//		b: {op: "Identity", input: ["a"]}
//	}
//
// or as a list of structs with an explicit name field:
//
//	graph: node: [{name: "a", op: "Const"}, {name: "b", op: "Identity", input: ["a"]}]
//
// An optional library.function struct holds function bodies in the same node
// forms. CompileGraph does not validate references; call Validate for that.
func CompileGraph(v cue.Value) (*ir.GraphDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	nodeVal := v.LookupPath(cue.ParsePath("node"))
	if !nodeVal.Exists() {
		return nil, &CompileError{
			Field:   "node",
			Message: "node is required",
			Pos:     v.Pos(),
		}
	}
	nodes, err := parseNodes(nodeVal, "node")
	if err != nil {
		return nil, err
	}
	g := &ir.GraphDef{Node: nodes}

	libVal := v.LookupPath(cue.ParsePath("library.function"))
	if libVal.Exists() {
		lib, err := parseLibrary(libVal)
		if err != nil {
			return nil, err
		}
		g.Library = lib
	}

	return g, nil
}

// parseNodes accepts both the struct and the list node forms.
func parseNodes(v cue.Value, field string) ([]*ir.NodeDef, error) {
	var nodes []*ir.NodeDef

	switch v.IncompleteKind() {
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			n, err := parseNode(iter.Value(), iter.Label(), field+"."+iter.Label())
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		}

	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			elem := iter.Value()
			path := fmt.Sprintf("%s[%d]", field, i)
			nameVal := elem.LookupPath(cue.ParsePath("name"))
			if !nameVal.Exists() {
				return nil, &CompileError{
					Field:   path + ".name",
					Message: "name is required in list form",
					Pos:     elem.Pos(),
				}
			}
			name, err := nameVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			n, err := parseNode(elem, name, path)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		}

	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("must be a struct or list, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}

	return nodes, nil
}

// parseNode extracts one node. name comes from the struct label or the
// name field.
func parseNode(v cue.Value, name, path string) (*ir.NodeDef, error) {
	n := &ir.NodeDef{Name: name}

	opVal := v.LookupPath(cue.ParsePath("op"))
	if !opVal.Exists() {
		return nil, &CompileError{
			Field:   path + ".op",
			Message: "op is required",
			Pos:     v.Pos(),
		}
	}
	op, err := opVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	n.Op = op

	if devVal := v.LookupPath(cue.ParsePath("device")); devVal.Exists() {
		dev, err := devVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		n.Device = dev
	}

	if inVal := v.LookupPath(cue.ParsePath("input")); inVal.Exists() {
		iter, err := inVal.List()
		if err != nil {
			return nil, &CompileError{
				Field:   path + ".input",
				Message: "input must be a list of strings",
				Pos:     inVal.Pos(),
			}
		}
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			n.Input = append(n.Input, s)
		}
	}

	if attrVal := v.LookupPath(cue.ParsePath("attr")); attrVal.Exists() {
		av, err := cueToAttr(attrVal, path+".attr")
		if err != nil {
			return nil, err
		}
		m, ok := av.(ir.AttrMap)
		if !ok {
			return nil, &CompileError{
				Field:   path + ".attr",
				Message: "attr must be a struct",
				Pos:     attrVal.Pos(),
			}
		}
		n.Attr = m
	}

	return n, nil
}

// parseLibrary extracts library.function as a struct keyed by function name.
func parseLibrary(v cue.Value) (*ir.FunctionLibrary, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	lib := &ir.FunctionLibrary{}
	for iter.Next() {
		name := iter.Label()
		fn := ir.FunctionDef{Name: name}
		if nodeVal := iter.Value().LookupPath(cue.ParsePath("node")); nodeVal.Exists() {
			nodes, err := parseNodes(nodeVal, "library.function."+name+".node")
			if err != nil {
				return nil, err
			}
			fn.Node = nodes
		}
		lib.Function = append(lib.Function, fn)
	}
	return lib, nil
}

// cueToAttr converts a concrete CUE value to an attr value.
// Floats are rejected, like every other attr source.
func cueToAttr(v cue.Value, path string) (ir.AttrValue, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.AttrString(s), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.AttrInt(i), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.AttrBool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var out ir.AttrList
		for i := 0; iter.Next(); i++ {
			e, err := cueToAttr(iter.Value(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		if out == nil {
			out = ir.AttrList{}
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := ir.AttrMap{}
		for iter.Next() {
			key := iter.Label()
			e, err := cueToAttr(iter.Value(), path+"."+key)
			if err != nil {
				return nil, err
			}
			out[key] = e
		}
		return out, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   path,
			Message: "float values are not valid attrs - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   path,
			Message: fmt.Sprintf("unsupported attr kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
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
