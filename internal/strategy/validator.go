// Package strategy validates and executes dynamically sourced bidding
// strategies. Candidate source arrives as untrusted text (usually model
// generated); it is gated by an AST-level allow-list before it is ever
// interpreted, then run inside a restricted yaegi interpreter.
package strategy

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// EntryPointName is the function every candidate must define at top level.
const EntryPointName = "BiddingStrategy"

// allowedImports is the import allow-list. Strategies get pure math and
// nothing else.
var allowedImports = map[string]bool{
	"math": true,
}

// deniedCallTargets are package qualifiers whose direct calls are rejected
// outright. The import allow-list already keeps these packages out of scope;
// the call check catches source that names them anyway (dot-imports, shadow
// declarations, fence-cleaning leftovers).
var deniedCallTargets = map[string]bool{
	"os":      true,
	"exec":    true,
	"syscall": true,
	"net":     true,
	"http":    true,
	"plugin":  true,
	"reflect": true,
	"unsafe":  true,
	"ioutil":  true,
}

// ValidationResult carries the detailed outcome of a validation pass.
type ValidationResult struct {
	Valid         bool
	ParseError    error
	Errors        []string
	Imports       []string
	Functions     []string
	HasEntryPoint bool
}

// Validate reports whether candidate source is structurally acceptable:
// it parses, imports only allow-listed packages, calls no denied target,
// and defines the required entry-point function. It never panics; passing
// is a syntactic gate, not a sandbox guarantee.
func Validate(source string) bool {
	return ValidateSource(source).Valid
}

// ValidateSource performs the full AST validation and returns the detailed
// result, for callers that want to log why a candidate was rejected.
func ValidateSource(source string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "strategy.go", ensurePackageClause(source), 0)
	if err != nil {
		result.Valid = false
		result.ParseError = err
		result.Errors = append(result.Errors, fmt.Sprintf("syntax error: %v", err))
		return result
	}

	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)
		result.Imports = append(result.Imports, importPath)
		if !allowedImports[importPath] {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("import %q is not allowed (only math is permitted)", importPath))
		}
	}

	ast.Inspect(file, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.FuncDecl:
			result.Functions = append(result.Functions, node.Name.Name)
			if node.Recv == nil && node.Name.Name == EntryPointName {
				result.HasEntryPoint = true
			}
		case *ast.CallExpr:
			if sel, ok := node.Fun.(*ast.SelectorExpr); ok {
				if ident, ok := sel.X.(*ast.Ident); ok && deniedCallTargets[ident.Name] {
					result.Valid = false
					result.Errors = append(result.Errors,
						fmt.Sprintf("call to denied target %s.%s", ident.Name, sel.Sel.Name))
				}
			}
		}
		return true
	})

	if !result.HasEntryPoint {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("no top-level function named %s", EntryPointName))
	}

	return result
}

// ensurePackageClause wraps bare function source in a package clause so it
// parses as a file. Generated strategies usually omit the clause.
func ensurePackageClause(source string) string {
	trimmed := strings.TrimSpace(source)
	if strings.HasPrefix(trimmed, "package ") || strings.Contains(source, "\npackage ") {
		return source
	}
	return "package strategy\n\n" + source
}
