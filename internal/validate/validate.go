// Package validate checks produced archives with the symbol dumper.
package validate

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strings"

	"stubgen/internal/model"
	"stubgen/internal/stuberr"
	"stubgen/internal/toolchain"
)

// Result reports how an archive check ended.
type Result int

const (
	// Passed means the symbol dumper read the archive successfully.
	Passed Result = iota
	// Skipped means the symbol dumper could not be started.
	Skipped
	// Failed means the symbol dumper rejected the archive.
	Failed
)

func (r Result) String() string {
	switch r {
	case Passed:
		return "passed"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Validate runs the symbol dumper over archive. A dumper that cannot be
// started skips validation; a non-zero exit is a validation error.
func Validate(tc toolchain.Toolchain, archive string) (Result, error) {
	_, err := symbols(tc, archive)
	switch {
	case errors.Is(err, errNotRunnable):
		return Skipped, nil
	case err != nil:
		return Failed, err
	}
	return Passed, nil
}

// Symbols returns the sorted names of the global symbols archive defines.
// A dumper that cannot be started is a validation error here, since the
// caller asked for the listing explicitly.
func Symbols(tc toolchain.Toolchain, archive string) ([]string, error) {
	syms, err := symbols(tc, archive)
	if errors.Is(err, errNotRunnable) {
		return nil, stuberr.New(stuberr.ErrValidation, "", archive,
			fmt.Errorf("%s could not be started", tc.SymbolDumper()))
	}
	return syms, err
}

// CheckSymbols reports every signature that archive does not define.
func CheckSymbols(tc toolchain.Toolchain, archive string, sigs []model.FunctionSignature) error {
	syms, err := Symbols(tc, archive)
	if err != nil {
		return err
	}
	defined := make(map[string]bool, len(syms))
	for _, s := range syms {
		defined[s] = true
	}
	var missing []string
	for _, sig := range sigs {
		if !defined[sig.Name] {
			missing = append(missing, sig.Name)
		}
	}
	if len(missing) > 0 {
		return stuberr.New(stuberr.ErrValidation, "", archive,
			fmt.Errorf("%d symbol(s) missing: %s", len(missing), strings.Join(missing, ", ")))
	}
	return nil
}

var errNotRunnable = errors.New("symbol dumper not runnable")

func symbols(tc toolchain.Toolchain, archive string) ([]string, error) {
	ran, out, err := tc.Run(tc.SymbolDumper(), archive)
	if !ran && err != nil {
		return nil, errNotRunnable
	}
	if err != nil {
		se := stuberr.New(stuberr.ErrValidation, "", archive, err)
		se.Output = out
		return nil, se
	}
	return parseSymbols(out), nil
}

// parseSymbols reads BSD-format nm output. Member headers ("obj.o:") and
// undefined references are ignored; only defined global symbols count.
func parseSymbols(out string) []string {
	seen := make(map[string]bool)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		var kind, name string
		switch len(fields) {
		case 3:
			kind, name = fields[1], fields[2]
		case 2:
			kind, name = fields[0], fields[1]
		default:
			continue
		}
		if len(kind) != 1 || kind == "U" || kind == "w" || kind == "v" {
			continue
		}
		// Upper case marks a global symbol.
		if kind[0] < 'A' || kind[0] > 'Z' {
			continue
		}
		seen[name] = true
	}
	syms := make([]string, 0, len(seen))
	for s := range seen {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}
