// Package synth renders C stub sources from extracted signatures.
//
// A stub source includes every header of its group, defines the keep-alive
// helper, then defines one function per signature whose body acknowledges
// each parameter and returns a safe value. The output depends only on the
// signatures, the header list and the registry, so identical inputs always
// give byte-identical text.
package synth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stubgen/internal/defaults"
	"stubgen/internal/model"
	"stubgen/internal/stuberr"
)

// HelperName is the C symbol of the keep-alive helper.
const HelperName = "stub_keep_alive"

// helperSource is called from every stub whose name contains "create". It
// writes through its buffer and feeds its complex argument through libm,
// and everything it computes reaches the return value, so neither the call
// sites nor the helper itself can be proven dead.
//
// Every group defines its own copy, so the helper has internal linkage and
// archives of several groups link into one program. The used attribute keeps
// it, and quiets -Wunused-function, in groups without create functions.
const helperSource = `static float ` + HelperName + `(char *buf, float complex iq) __attribute__((used));

static float ` + HelperName + `(char *buf, float complex iq) {
    char scratch[42];
    memcpy(scratch, buf, 1);
    memset(buf, 0, 1);
    memmove(scratch, buf, 1);
    uint32_t magnitude = (uint32_t) cabsf(iq);
    return roundf(atanf(sinf(cosf(log10f(powf(crealf(iq), 3.14f))))))
        + (float) magnitude + (float) scratch[0];
}
`

// systemHeaders are what the helper and the return statements need.
var systemHeaders = []string{"math.h", "complex.h", "string.h", "stdint.h", "stddef.h"}

// Synthesizer renders stub sources using a fixed default-value registry.
type Synthesizer struct {
	registry *defaults.Registry
}

// New returns a Synthesizer bound to registry.
func New(registry *defaults.Registry) *Synthesizer {
	return &Synthesizer{registry: registry}
}

// Source renders the complete stub source for one header group.
func (s *Synthesizer) Source(sigs []model.FunctionSignature, headers []string) string {
	var sb strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&sb, "#include \"%s\"\n", h)
	}
	sb.WriteByte('\n')
	for _, h := range systemHeaders {
		fmt.Fprintf(&sb, "#include <%s>\n", h)
	}
	sb.WriteByte('\n')
	sb.WriteString(helperSource)
	for _, sig := range sigs {
		sb.WriteByte('\n')
		sb.WriteString(s.Function(sig))
	}
	return sb.String()
}

// Function renders the definition of one stub.
func (s *Synthesizer) Function(sig model.FunctionSignature) string {
	var sb strings.Builder
	sb.WriteString(sig.Prototype())
	sb.WriteString(" {\n")

	for _, p := range sig.Params {
		fmt.Fprintf(&sb, "    (void) %s;\n", p.Name)
	}

	if strings.Contains(sig.Name, "create") {
		dummy := localName("stub_dummy", sig.Params)
		fmt.Fprintf(&sb, "    char %s[] = \"dummy\";\n", dummy)
		fmt.Fprintf(&sb, "    (void) %s(%s, 1.0f + 2.0f * I);\n", HelperName, dummy)
	}

	if !sig.ReturnsVoid() {
		sb.WriteString(s.returnStatement(sig.ReturnType, localName("stub_result", sig.Params)))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// localName returns base, suffixed with underscores until it no longer
// collides with a parameter name.
func localName(base string, params []model.Parameter) string {
	name := base
	for taken := true; taken; {
		taken = false
		for _, p := range params {
			if p.Name == name {
				name += "_"
				taken = true
				break
			}
		}
	}
	return name
}

func (s *Synthesizer) returnStatement(typ, local string) string {
	if lit, ok := s.registry.Lookup(typ); ok {
		return fmt.Sprintf("    return %s;\n", lit)
	}
	if strings.Contains(typ, "*") {
		return "    return NULL;\n"
	}
	// {0} zero-initializes scalars as well as aggregates in C99.
	return fmt.Sprintf("    %s %s = {0};\n    return %s;\n", typ, local, local)
}

// WriteSource writes a rendered source to path, creating its directory.
func WriteSource(path, source string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return stuberr.New(stuberr.ErrSynthesis, "", path, err)
	}
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return stuberr.New(stuberr.ErrSynthesis, "", path, err)
	}
	return nil
}
