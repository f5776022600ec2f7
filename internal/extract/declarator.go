package extract

// declarator.go: syntax tree walking for function declarations.
//
// C splits a declaration's type between the specifiers ("const char") and
// the declarator ("*name(void)"). The walker reassembles both halves into
// the flat "type name" form the synthesizer renders.

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"stubgen/internal/model"
)

// containers are node kinds whose children may hold file-scope declarations.
var containers = map[string]bool{
	"translation_unit":      true,
	"preproc_if":            true,
	"preproc_ifdef":         true,
	"preproc_else":          true,
	"preproc_elif":          true,
	"preproc_elifdef":       true,
	"linkage_specification": true,
	"declaration_list":      true,
}

type walker struct {
	src    []byte
	header string
	sigs   []model.FunctionSignature
	err    error
}

func (w *walker) walk(n *sitter.Node) {
	if n == nil || w.err != nil {
		return
	}
	switch {
	case n.Type() == "declaration":
		w.declaration(n)
	case containers[n.Type()]:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.walk(n.NamedChild(i))
		}
	}
}

func (w *walker) fail(n *sitter.Node, format string, args ...any) {
	if w.err == nil {
		w.err = fmt.Errorf("line %d: %s", int(n.StartPoint().Row)+1, fmt.Sprintf(format, args...))
	}
}

func (w *walker) text(n *sitter.Node) string {
	return strings.Join(strings.Fields(n.Content(w.src)), " ")
}

// specifiers returns the base type of a declaration or parameter with its
// qualifiers in front, and the storage classes it carries.
func (w *walker) specifiers(n *sitter.Node) (base string, storage []string) {
	var quals []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "type_qualifier":
			quals = append(quals, w.text(child))
		case "storage_class_specifier":
			storage = append(storage, w.text(child))
		}
	}
	typ := ""
	if t := n.ChildByFieldName("type"); t != nil {
		typ = w.text(t)
	}
	return strings.TrimSpace(strings.Join(append(quals, typ), " ")), storage
}

// declarators returns the declarator children of a declaration; one
// declaration may declare several names.
func declarators(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "function_declarator", "pointer_declarator", "identifier",
			"init_declarator", "array_declarator", "parenthesized_declarator",
			"attributed_declarator":
			out = append(out, child)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (w *walker) declaration(n *sitter.Node) {
	base, storage := w.specifiers(n)
	for _, s := range storage {
		// static and inline prototypes are not library symbols.
		if s == "static" || s == "inline" {
			return
		}
	}
	for _, d := range declarators(n) {
		sig, ok := w.function(d, base)
		if w.err != nil {
			return
		}
		if ok {
			sig.Header = w.header
			sig.Line = int(n.StartPoint().Row) + 1
			w.sigs = append(w.sigs, sig)
		}
	}
}

// function unwraps a declarator down to its function_declarator. ok is
// false for declarators that declare variables.
func (w *walker) function(d *sitter.Node, base string) (model.FunctionSignature, bool) {
	var stars string
	for d != nil {
		switch d.Type() {
		case "pointer_declarator":
			stars += w.pointer(d)
			d = d.ChildByFieldName("declarator")
		case "attributed_declarator":
			d = d.NamedChild(0)
		case "function_declarator":
			inner := d.ChildByFieldName("declarator")
			if inner == nil || inner.Type() != "identifier" {
				if containsKind(inner, "function_declarator") {
					w.fail(d, "function returning a function pointer is not supported")
				}
				// A function pointer variable.
				return model.FunctionSignature{}, false
			}
			params, variadic := w.parameters(d.ChildByFieldName("parameters"))
			return model.FunctionSignature{
				Name:       w.text(inner),
				ReturnType: joinType(base, stars),
				Params:     params,
				Variadic:   variadic,
			}, true
		default:
			return model.FunctionSignature{}, false
		}
	}
	return model.FunctionSignature{}, false
}

// pointer renders one pointer level with any qualifiers bound to it.
func (w *walker) pointer(d *sitter.Node) string {
	level := "*"
	for i := 0; i < int(d.NamedChildCount()); i++ {
		if q := d.NamedChild(i); q.Type() == "type_qualifier" {
			level += w.text(q)
		}
	}
	return level
}

func joinType(base, stars string) string {
	if stars == "" {
		return base
	}
	return base + " " + stars
}

func containsKind(n *sitter.Node, kind string) bool {
	if n == nil {
		return false
	}
	if n.Type() == kind {
		return true
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if containsKind(n.NamedChild(i), kind) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Parameters
// ---------------------------------------------------------------------------

// parameters reads a parameter_list. "(void)" and "()" both yield no
// parameters. Unnamed parameters get distinct generated names.
func (w *walker) parameters(list *sitter.Node) ([]model.Parameter, bool) {
	if list == nil {
		return nil, false
	}
	var params []model.Parameter
	variadic := false
	for i := 0; i < int(list.ChildCount()); i++ {
		child := list.Child(i)
		switch child.Type() {
		case "variadic_parameter", "...":
			variadic = true
		case "parameter_declaration":
			p, ok := w.parameter(child)
			if w.err != nil {
				return nil, false
			}
			if ok {
				params = append(params, p)
			}
		case "(", ")", ",", "comment":
		default:
			if child.IsNamed() {
				w.fail(child, "unsupported parameter %q", w.text(child))
				return nil, false
			}
		}
	}
	if len(params) == 1 && params[0].Type == "void" && params[0].Name == "" {
		params = nil
	}
	nameParams(params)
	return params, variadic
}

// parameter reads one parameter_declaration. Arrays decay to pointers;
// function pointers keep the abstract "R (*)(args)" form.
func (w *walker) parameter(n *sitter.Node) (model.Parameter, bool) {
	base, _ := w.specifiers(n)
	d := n.ChildByFieldName("declarator")
	var stars, name string
	arrayed := false
	for d != nil {
		switch d.Type() {
		case "identifier":
			name = w.text(d)
			d = nil
		case "pointer_declarator", "abstract_pointer_declarator":
			stars += w.pointer(d)
			d = d.ChildByFieldName("declarator")
		case "array_declarator", "abstract_array_declarator":
			inner := d.ChildByFieldName("declarator")
			if arrayed || (inner != nil && inner.Type() != "identifier") {
				w.fail(d, "unsupported array parameter %q", w.text(n))
				return model.Parameter{}, false
			}
			arrayed = true
			stars += "*"
			d = inner
		case "parenthesized_declarator", "abstract_parenthesized_declarator":
			d = d.NamedChild(0)
		case "attributed_declarator":
			d = d.NamedChild(0)
		case "function_declarator", "abstract_function_declarator":
			fnName, ok := w.functionPointerName(d.ChildByFieldName("declarator"))
			if !ok {
				w.fail(d, "unsupported function parameter %q", w.text(n))
				return model.Parameter{}, false
			}
			params := d.ChildByFieldName("parameters")
			typ := joinType(base, stars) + " (*)" + w.text(params)
			return model.Parameter{Type: typ, Name: fnName}, true
		default:
			w.fail(d, "unsupported parameter declarator %q", w.text(d))
			return model.Parameter{}, false
		}
	}
	return model.Parameter{Type: joinType(base, stars), Name: name}, true
}

// functionPointerName expects "(*name)" or the abstract "(*)".
func (w *walker) functionPointerName(d *sitter.Node) (string, bool) {
	if d == nil {
		return "", false
	}
	if d.Type() == "parenthesized_declarator" || d.Type() == "abstract_parenthesized_declarator" {
		d = d.NamedChild(0)
	}
	if d == nil || (d.Type() != "pointer_declarator" && d.Type() != "abstract_pointer_declarator") {
		return "", false
	}
	inner := d.ChildByFieldName("declarator")
	if inner == nil {
		return "", true
	}
	if inner.Type() != "identifier" {
		return "", false
	}
	return w.text(inner), true
}

func nameParams(params []model.Parameter) {
	used := make(map[string]bool, len(params))
	for _, p := range params {
		if p.Name != "" {
			used[p.Name] = true
		}
	}
	for i := range params {
		if params[i].Name != "" {
			continue
		}
		name := fmt.Sprintf("arg%d", i)
		for used[name] {
			name += "_"
		}
		used[name] = true
		params[i].Name = name
	}
}

// ---------------------------------------------------------------------------
// Enumerations
// ---------------------------------------------------------------------------

func collectEnums(n *sitter.Node, src []byte, enums map[string][]string) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "type_definition", "declaration":
		spec := n.ChildByFieldName("type")
		if spec == nil || spec.Type() != "enum_specifier" {
			return
		}
		body := spec.ChildByFieldName("body")
		if body == nil {
			return
		}
		var names []string
		for i := 0; i < int(body.NamedChildCount()); i++ {
			en := body.NamedChild(i)
			if en.Type() != "enumerator" {
				continue
			}
			if name := en.ChildByFieldName("name"); name != nil {
				names = append(names, name.Content(src))
			}
		}
		if tag := spec.ChildByFieldName("name"); tag != nil {
			enums["enum "+tag.Content(src)] = names
		}
		if n.Type() == "type_definition" {
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if d := n.NamedChild(i); d.Type() == "type_identifier" {
					enums[d.Content(src)] = names
				}
			}
		}
		return
	}
	if containers[n.Type()] {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			collectEnums(n.NamedChild(i), src, enums)
		}
	}
}
