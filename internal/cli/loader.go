package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/planir/internal/compiler"
	"github.com/roach88/planir/internal/graphview"
	"github.com/roach88/planir/internal/ir"
)

// Command error codes for CLI responses. Validation failures carry the
// compiler's E2xx code instead.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeLoadFailed    = "E004" // Graph or scenario could not be decoded
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeNodeNotFound  = "E008" // Node not in graph
	ErrCodeStoreFailed   = "E009" // Snapshot store error
	ErrCodeInvalidGraph  = "E010" // Graph cannot be indexed or ordered
	ErrCodeCompileFailed = "E011" // CUE graph compile error
	ErrCodeTestFailed    = "E_TEST_FAILED"
)

// LoadError represents an error that occurred while loading a graph.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadGraph reads a .cue, .json or .yaml graph. Errors are *LoadError.
func LoadGraph(path string) (*ir.GraphDef, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("graph file not found: %s", path)}
	}

	g, err := compiler.LoadGraphFile(path)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return g, nil
}

// LoadView loads a graph and validates it before indexing, so structural
// problems surface as coded validation errors rather than a single index
// error.
func LoadView(path string) (*graphview.View, []compiler.ValidationError, error) {
	g, err := LoadGraph(path)
	if err != nil {
		return nil, nil, err
	}
	if errs := compiler.Validate(g); len(errs) > 0 {
		return nil, errs, nil
	}
	v, err := graphview.New(g)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeInvalidGraph, Message: err.Error()}
	}
	return v, nil, nil
}

// convertCompileError converts a compiler error to a LoadError.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCompileFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// loadErrorCode returns the code carried by err, or ErrCodeGeneric.
func loadErrorCode(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}
