package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/planir/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrNodeNameEmpty     = "E201" // node name is required
	ErrDuplicateNode     = "E202" // node name defined more than once
	ErrMalformedInput    = "E203" // input is not name, name:k or ^name
	ErrUnknownInput      = "E204" // input references an undefined node
	ErrInputOrder        = "E205" // regular input after a control input
	ErrSelfReference     = "E206" // node consumes its own output
	ErrNodeOpEmpty       = "E207" // op is required
	ErrUnsupportedIRType = "E200" // unsupported IR type for validation
)

// ValidationError represents a graph validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a graph against the structural rules the graph view
// relies on. Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch g := v.(type) {
	case *ir.GraphDef:
		if g == nil {
			return nil
		}
		return validateGraph(g)
	case ir.GraphDef:
		return validateGraph(&g)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateGraph(g *ir.GraphDef) []ValidationError {
	var errs []ValidationError

	defined := make(map[string]bool, len(g.Node))
	for i, n := range g.Node {
		if n == nil {
			continue
		}
		// E202: duplicate node name
		if n.Name != "" && defined[n.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("node[%d].name", i),
				Message: fmt.Sprintf("duplicate node name: %q", n.Name),
				Code:    ErrDuplicateNode,
			})
		}
		defined[n.Name] = true
	}

	for i, n := range g.Node {
		field := fmt.Sprintf("node[%d]", i)

		// E201: null entries carry no name at all
		if n == nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "node definition is null",
				Code:    ErrNodeNameEmpty,
			})
			continue
		}

		// E201: name is required
		if strings.TrimSpace(n.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "node name is required and must be non-empty",
				Code:    ErrNodeNameEmpty,
			})
		}

		// E207: op is required
		if strings.TrimSpace(n.Op) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".op",
				Message: fmt.Sprintf("node %q must have an op", n.Name),
				Code:    ErrNodeOpEmpty,
			})
		}

		errs = append(errs, validateInputs(n, field, defined)...)
	}

	return errs
}

// validateInputs checks one node's input list.
func validateInputs(n *ir.NodeDef, field string, defined map[string]bool) []ValidationError {
	var errs []ValidationError
	seenControl := false

	for j, in := range n.Input {
		inField := fmt.Sprintf("%s.input[%d]", field, j)

		// E203: malformed reference
		if !isValidInputRef(in) {
			errs = append(errs, ValidationError{
				Field:   inField,
				Message: fmt.Sprintf("malformed input %q, expected \"name\", \"name:k\" or \"^name\"", in),
				Code:    ErrMalformedInput,
			})
			continue
		}

		id := ir.ParseTensorName(in)

		// E205: regular input after control input
		if id.IsControl() {
			seenControl = true
		} else if seenControl {
			errs = append(errs, ValidationError{
				Field:   inField,
				Message: fmt.Sprintf("regular input %q follows a control input", in),
				Code:    ErrInputOrder,
			})
		}

		// E206: self reference
		if id.Node == n.Name {
			errs = append(errs, ValidationError{
				Field:   inField,
				Message: fmt.Sprintf("node %q references itself", n.Name),
				Code:    ErrSelfReference,
			})
			continue
		}

		// E204: unknown node
		if !defined[id.Node] {
			errs = append(errs, ValidationError{
				Field:   inField,
				Message: fmt.Sprintf("input %q references undefined node %q", in, id.Node),
				Code:    ErrUnknownInput,
			})
		}
	}

	return errs
}

// inputRefPattern matches "name", "name:k" and "^name".
// Node names start with a letter, digit or dot.
var inputRefPattern = regexp.MustCompile(`^(\^[A-Za-z0-9.][A-Za-z0-9_>./-]*|[A-Za-z0-9.][A-Za-z0-9_>./-]*(:[0-9]+)?)$`)

// isValidInputRef checks if an input reference has valid format.
func isValidInputRef(ref string) bool {
	return inputRefPattern.MatchString(ref)
}
