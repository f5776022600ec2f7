package model

// model.go: the values that flow between pipeline stages.
//
// A HeaderGroup names a bundle of SDK headers. The extractor turns it into
// FunctionSignatures, the synthesizer into C source, the toolchain into a
// StubArtifact. None of these values outlive one pipeline run.

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Signatures
// ---------------------------------------------------------------------------

// Parameter is one declared parameter of a C function.
//
// Function-pointer parameters carry the abstract declarator form in Type,
// e.g. "void (*)(uint32_t, const char *)"; Decl splices the name into it.
type Parameter struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`
}

// Decl renders the parameter as it appears in a C parameter list.
func (p Parameter) Decl() string {
	if i := strings.Index(p.Type, "(*)"); i >= 0 {
		return p.Type[:i+2] + p.Name + p.Type[i+2:]
	}
	if strings.HasSuffix(p.Type, "*") {
		return p.Type + p.Name
	}
	return p.Type + " " + p.Name
}

// FunctionSignature is one function declaration found in a header.
type FunctionSignature struct {
	Name       string      `yaml:"name"`
	ReturnType string      `yaml:"return_type"`
	Params     []Parameter `yaml:"params,omitempty"`
	Variadic   bool        `yaml:"variadic,omitempty"`
	Header     string      `yaml:"header"`
	Line       int         `yaml:"line"`
}

// ReturnsVoid reports whether the function has no return value.
func (f FunctionSignature) ReturnsVoid() bool {
	return f.ReturnType == "void"
}

// ReturnsPointer reports whether the return type contains a pointer marker.
func (f FunctionSignature) ReturnsPointer() bool {
	return strings.Contains(f.ReturnType, "*")
}

// ParamTypes returns the parameter types in declaration order.
func (f FunctionSignature) ParamTypes() []string {
	types := make([]string, len(f.Params))
	for i, p := range f.Params {
		types[i] = p.Type
	}
	return types
}

// Prototype renders the C declarator line, without a trailing semicolon.
// A function with no parameters renders its list as "(void)".
func (f FunctionSignature) Prototype() string {
	var sb strings.Builder
	sb.WriteString(f.ReturnType)
	if !strings.HasSuffix(f.ReturnType, "*") {
		sb.WriteByte(' ')
	}
	sb.WriteString(f.Name)
	sb.WriteByte('(')
	if len(f.Params) == 0 {
		sb.WriteString("void")
	}
	for i, p := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Decl())
	}
	if f.Variadic {
		sb.WriteString(", ...")
	}
	sb.WriteByte(')')
	return sb.String()
}

// SameABI reports whether two signatures are interchangeable at the call
// site: same return type and the same parameter type sequence.
func (f FunctionSignature) SameABI(o FunctionSignature) bool {
	if f.ReturnType != o.ReturnType || f.Variadic != o.Variadic || len(f.Params) != len(o.Params) {
		return false
	}
	for i := range f.Params {
		if f.Params[i].Type != o.Params[i].Type {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Header groups
// ---------------------------------------------------------------------------

// Capability is an optional SDK feature that gates a header group.
type Capability string

const (
	Always   Capability = ""
	Distance Capability = "distance"
	Presence Capability = "presence"
)

// HeaderGroup is a bundle of headers stubbed into one source, one object and
// one archive.
type HeaderGroup struct {
	ID       string     `yaml:"id"`
	Headers  []string   `yaml:"headers"`
	Requires Capability `yaml:"requires,omitempty"`
}

// SourceName is the synthesized C file name.
func (g HeaderGroup) SourceName() string { return g.ID + "_stubs.c" }

// ObjectName is the compiled object file name.
func (g HeaderGroup) ObjectName() string { return g.ID + "_stubs.o" }

// ArchiveName is the static archive file name.
func (g HeaderGroup) ArchiveName() string { return "lib" + g.ID + ".a" }

// LinkName is the name passed to the linker as -l<name>.
func (g HeaderGroup) LinkName() string { return g.ID }

// Validate checks the group is usable: an identifier safe to use in file
// names and at least one header.
func (g HeaderGroup) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("header group: empty id")
	}
	if strings.ContainsAny(g.ID, `/\ `) {
		return fmt.Errorf("header group %q: id must not contain path separators or spaces", g.ID)
	}
	if len(g.Headers) == 0 {
		return fmt.Errorf("header group %q: no headers", g.ID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Artifacts
// ---------------------------------------------------------------------------

// StubArtifact is what one header group produced.
type StubArtifact struct {
	Group     string `yaml:"group"`
	Source    string `yaml:"source"`
	Object    string `yaml:"object"`
	Archive   string `yaml:"archive"`
	SHA256    string `yaml:"sha256"`
	Functions int    `yaml:"functions"`
	Validated bool   `yaml:"validated"`
}
