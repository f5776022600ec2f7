// Package toolchain drives the cross compiler, archiver and symbol dumper.
//
// Tools run through mage's sh.Exec so every call reports both whether the
// binary could be started and its exit status. Output from stdout and stderr
// is captured into one buffer and attached to the returned error.
package toolchain

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/sh"

	"stubgen/internal/stuberr"
)

// DefaultPrefix selects the bare-metal ARM GNU toolchain.
const DefaultPrefix = "arm-none-eabi-"

// DefaultFlags target a Cortex-M4 with hardware single-precision floats.
var DefaultFlags = []string{
	"-mcpu=cortex-m4",
	"-mthumb",
	"-mfloat-abi=hard",
	"-mfpu=fpv4-sp-d16",
	"-DTARGET_ARCH_cm4",
	"-DFLOAT_ABI_HARD",
	"-std=c99",
	"-O2",
	"-g",
	"-fno-math-errno",
	"-ffunction-sections",
	"-fdata-sections",
	"-flto=auto",
	"-ffat-lto-objects",
	"-Wall",
	"-Wextra",
	"-Werror",
}

// Toolchain names the tools and flags used to build one stub library.
// The zero value is usable: it means the default prefix and flags.
type Toolchain struct {
	Prefix      string            `yaml:"prefix"`
	CC          string            `yaml:"cc,omitempty"`
	AR          string            `yaml:"ar,omitempty"`
	NM          string            `yaml:"nm,omitempty"`
	Flags       []string          `yaml:"flags,omitempty"`
	ExtraFlags  []string          `yaml:"extra_flags,omitempty"`
	IncludeDirs []string          `yaml:"include_dirs,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
}

// Default returns the ARM toolchain with the default target flags.
func Default() Toolchain {
	return Toolchain{Prefix: DefaultPrefix}
}

func (t Toolchain) tool(override, name string) string {
	if override != "" {
		return override
	}
	prefix := t.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + name
}

// Compiler returns the C compiler command.
func (t Toolchain) Compiler() string { return t.tool(t.CC, "gcc") }

// Archiver returns the static archiver command.
func (t Toolchain) Archiver() string { return t.tool(t.AR, "ar") }

// SymbolDumper returns the symbol listing command.
func (t Toolchain) SymbolDumper() string { return t.tool(t.NM, "nm") }

// CompileArgs returns the compiler arguments for one translation unit.
func (t Toolchain) CompileArgs(source, headersDir, object string) []string {
	flags := t.Flags
	if len(flags) == 0 {
		flags = DefaultFlags
	}
	args := append([]string(nil), flags...)
	args = append(args, t.ExtraFlags...)
	args = append(args, "-I", headersDir)
	for _, dir := range t.IncludeDirs {
		args = append(args, "-I", dir)
	}
	return append(args, "-c", source, "-o", object)
}

// Compile builds source into object. Headers are searched in headersDir
// first, then in IncludeDirs.
func (t Toolchain) Compile(source, headersDir, object string) error {
	if err := os.MkdirAll(filepath.Dir(object), 0o755); err != nil {
		return stuberr.New(stuberr.ErrCompilation, "", object, err)
	}
	ran, out, err := t.Run(t.Compiler(), t.CompileArgs(source, headersDir, object)...)
	if err != nil {
		return toolError(stuberr.ErrCompilation, source, ran, out, err)
	}
	return nil
}

// Archive packs object into a fresh archive. An archive left over from an
// earlier build is removed first so no stale member survives.
func (t Toolchain) Archive(object, archive string) error {
	if err := os.Remove(archive); err != nil && !errors.Is(err, os.ErrNotExist) {
		return stuberr.New(stuberr.ErrArchive, "", archive, err)
	}
	ran, out, err := t.Run(t.Archiver(), "rcs", archive, object)
	if err != nil {
		return toolError(stuberr.ErrArchive, archive, ran, out, err)
	}
	return nil
}

// Run executes a tool with the toolchain environment. ran is false when
// the binary could not be started at all.
//
// The command name and every argument go through $VAR expansion against Env
// and the process environment before the tool starts, so a path holding a
// literal '$' is rewritten. CheckPaths rejects such paths up front.
func (t Toolchain) Run(name string, args ...string) (ran bool, output string, err error) {
	var buf bytes.Buffer
	ran, err = sh.Exec(t.Env, &buf, &buf, name, args...)
	return ran, buf.String(), err
}

// CheckPaths reports an error for the first of paths, or of IncludeDirs,
// that contains a '$'. Run would expand it instead of passing it through.
func (t Toolchain) CheckPaths(paths ...string) error {
	for _, p := range append(append([]string(nil), paths...), t.IncludeDirs...) {
		if strings.Contains(p, "$") {
			return fmt.Errorf("path %q contains '$', which the toolchain would expand", p)
		}
	}
	return nil
}

func toolError(kind error, path string, ran bool, out string, err error) error {
	se := stuberr.New(kind, "", path, err)
	se.Output = out
	if ran {
		se.ExitCode = sh.ExitStatus(err)
	} else {
		se.Err = fmt.Errorf("tool not runnable: %w", err)
	}
	return se
}
