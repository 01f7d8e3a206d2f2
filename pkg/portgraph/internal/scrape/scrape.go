// Package scrape reads a Go function's declaration from its source file.
//
// It locates the source through the runtime symbol table, so it only works
// when the file that defined the function is present on disk at run time.
package scrape

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// ErrNoSource indicates the function's source could not be located or parsed.
var ErrNoSource = errors.New("function source not available")

// Func is the parsed shape of a function.
type Func struct {
	// Params holds parameter names in order, including a method receiver.
	// Unnamed parameters are "".
	Params []string
	// Results holds result names, or nil when results are unnamed.
	Results []string
	// Returns holds the rendered expressions of each return statement in the
	// function body, excluding nested function literals.
	Returns [][]string
}

type parsedFile struct {
	fset *token.FileSet
	file *ast.File
}

var cache sync.Map // filename -> *parsedFile

// Inspect finds and parses the declaration of fn, which must be a func value.
func Inspect(fn any) (*Func, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("%w: not a function", ErrNoSource)
	}
	pc := v.Pointer()
	rf := runtime.FuncForPC(pc)
	if rf == nil {
		return nil, ErrNoSource
	}
	filename, line := rf.FileLine(pc)
	if filename == "" || strings.HasPrefix(filename, "<") {
		return nil, fmt.Errorf("%w: %s", ErrNoSource, rf.Name())
	}

	pf, err := load(filename)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		ftype *ast.FuncType
		body  *ast.BlockStmt
		recv  *ast.FieldList
	}
	var found []candidate
	ast.Inspect(pf.file, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.FuncDecl:
			if pf.fset.Position(x.Pos()).Line == line {
				found = append(found, candidate{x.Type, x.Body, x.Recv})
			}
		case *ast.FuncLit:
			if pf.fset.Position(x.Pos()).Line == line {
				found = append(found, candidate{ftype: x.Type, body: x.Body})
			}
		}
		return true
	})
	// The symbol table records lines, not columns, so functions sharing a
	// line cannot be told apart.
	if len(found) > 1 {
		return nil, fmt.Errorf("%w: %d functions start at %s:%d", ErrNoSource, len(found), filename, line)
	}
	if len(found) == 0 || found[0].body == nil {
		return nil, fmt.Errorf("%w: no declaration of %s at %s:%d", ErrNoSource, rf.Name(), filename, line)
	}
	ftype, body, recv := found[0].ftype, found[0].body, found[0].recv

	out := &Func{}
	out.Params = append(fieldNames(recv), fieldNames(ftype.Params)...)
	if ftype.Results != nil && len(ftype.Results.List) > 0 && len(ftype.Results.List[0].Names) > 0 {
		out.Results = fieldNames(ftype.Results)
	}
	ast.Inspect(body, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.FuncLit:
			return false
		case *ast.ReturnStmt:
			exprs := make([]string, len(x.Results))
			for i, e := range x.Results {
				exprs[i] = render(pf.fset, e)
			}
			out.Returns = append(out.Returns, exprs)
		}
		return true
	})
	return out, nil
}

func load(filename string) (*parsedFile, error) {
	if pf, ok := cache.Load(filename); ok {
		return pf.(*parsedFile), nil
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, nil, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSource, err)
	}
	pf, _ := cache.LoadOrStore(filename, &parsedFile{fset: fset, file: file})
	return pf.(*parsedFile), nil
}

func fieldNames(fl *ast.FieldList) []string {
	if fl == nil {
		return nil
	}
	var names []string
	for _, f := range fl.List {
		if len(f.Names) == 0 {
			names = append(names, "")
			continue
		}
		for _, name := range f.Names {
			names = append(names, name.Name)
		}
	}
	return names
}

// render prints e with all whitespace removed, so "x + 1" becomes "x+1".
func render(fset *token.FileSet, e ast.Expr) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, e); err != nil {
		return ""
	}
	return strings.Join(strings.Fields(buf.String()), "")
}
