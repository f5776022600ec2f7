package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"stubgen/internal/config"
)

// helpText calls the help function and returns the output as a string.
func helpText() string {
	var sb strings.Builder
	printUsage(&sb)
	return sb.String()
}

// longHelpText returns the long help for a named command.
func longHelpText(name string) string {
	var sb strings.Builder
	printCommandHelp(&sb, name)
	return sb.String()
}

// capture redirects command output for the duration of a test.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

func TestHelpContainsAllCommands(t *testing.T) {
	help := helpText()
	for _, cmd := range commands {
		if !strings.Contains(help, cmd.name) {
			t.Errorf("help output missing command %q", cmd.name)
		}
		if !strings.Contains(help, cmd.short) {
			t.Errorf("help output missing short description for %q", cmd.short)
		}
	}
	if !strings.Contains(help, "Usage:") || !strings.Contains(help, "stubgen") {
		t.Error("help output missing usage header")
	}
}

func TestLongHelpForKnownCommands(t *testing.T) {
	for _, cmd := range commands {
		t.Run(cmd.name, func(t *testing.T) {
			out := longHelpText(cmd.name)
			if !strings.Contains(out, cmd.usage) {
				t.Errorf("long help for %q missing usage line %q\ngot: %s", cmd.name, cmd.usage, out)
			}
		})
	}
}

func TestLongHelpUnknownCommand(t *testing.T) {
	out := longHelpText("no-such-command")
	if !strings.Contains(out, "unknown") {
		t.Errorf("expected unknown-command message, got: %s", out)
	}
}

func TestDispatchHelp(t *testing.T) {
	capture(t)
	for _, args := range [][]string{nil, {"--help"}, {"-h"}, {"help"}, {"help", "build"}} {
		if err := dispatch(args); err != nil {
			t.Errorf("dispatch(%q) returned error: %v", args, err)
		}
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	err := dispatch([]string{"no-such-command-xyz"})
	if err == nil || !strings.Contains(err.Error(), "unknown") {
		t.Errorf("expected unknown command error, got %v", err)
	}
}

func TestSubcommandBadArgs(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.yaml")
	tests := []struct {
		args []string
		msg  string
	}{
		{[]string{"synth", "-config", missing}, "usage"},
		{[]string{"synth", "-config", missing, "no_such_group"}, "unknown header group"},
		{[]string{"build", "-config", missing, "-features", "radar"}, "unknown feature"},
		{[]string{"build", "-bogus"}, "build"},
		{[]string{"link-flags", "-config", missing}, "manifest"},
	}
	for _, tc := range tests {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			err := dispatch(tc.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if strings.Contains(err.Error(), "unknown command") {
				t.Errorf("got 'unknown command', expected the subcommand to run: %v", err)
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Errorf("error %q does not mention %q", err, tc.msg)
			}
		})
	}
}

func TestCommandsHaveRequiredFields(t *testing.T) {
	if len(commands) == 0 {
		t.Fatal("commands slice is empty")
	}
	for _, cmd := range commands {
		if cmd.name == "" || cmd.short == "" || cmd.usage == "" || cmd.run == nil {
			t.Errorf("command %+v is incomplete", cmd.name)
		}
	}
}

func TestInitDefaults(t *testing.T) {
	out := capture(t)
	path := filepath.Join(t.TempDir(), "stubgen.yaml")
	if err := dispatch([]string{"init", "-defaults", path}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out.String(), "wrote "+path) {
		t.Errorf("output = %q", out)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Toolchain.Prefix != "arm-none-eabi-" {
		t.Errorf("written config = %+v", cfg)
	}
	if err := dispatch([]string{"init", "-defaults", path}); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second init = %v, want already exists", err)
	}
}

func TestPromptModel(t *testing.T) {
	cfg := config.Default()
	m := newPromptModel(initQuestions(cfg))

	// Accept the pre-filled headers and output answers.
	for i := 0; i < 2; i++ {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m = next.(promptModel)
	}
	if m.idx != 2 {
		t.Fatalf("idx = %d, want 2", m.idx)
	}
	if !strings.Contains(m.View(), "Toolchain prefix") {
		t.Errorf("View = %q", m.View())
	}
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(promptModel)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("presence")})
	m = next.(promptModel)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(promptModel)
	if !m.done {
		t.Fatal("prompt not done after last answer")
	}

	applyAnswers(cfg, m.answers())
	if cfg.Headers != config.Default().Headers {
		t.Errorf("Headers = %q, want default kept", cfg.Headers)
	}
	if strings.Join(cfg.Features, ",") != "presence" {
		t.Errorf("Features = %v", cfg.Features)
	}
}

func TestPromptModelStepBack(t *testing.T) {
	m := newPromptModel(initQuestions(config.Default()))
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = next.(promptModel)
	if m.idx != 0 {
		t.Fatalf("shift+tab on the first question moved to %d", m.idx)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(promptModel)
	if !strings.HasPrefix(m.View(), "[2/4] Output directory") {
		t.Errorf("View = %q", m.View())
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = next.(promptModel)
	if m.idx != 0 || !m.inputs[0].Focused() || m.inputs[1].Focused() {
		t.Errorf("after shift+tab idx = %d", m.idx)
	}
}

func TestPromptModelCancel(t *testing.T) {
	m := newPromptModel(initQuestions(config.Default()))
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if next.(promptModel).done || cmd == nil {
		t.Error("escape must quit without finishing")
	}
}

// ---------------------------------------------------------------------------
// End to end with a fake toolchain
// ---------------------------------------------------------------------------

const demoHeader = `#ifndef DEMO_H_
#define DEMO_H_
#include <stdint.h>

typedef enum
{
	ACC_CONFIG_PROFILE_1 = 1,
	ACC_CONFIG_PROFILE_3 = 3,
} acc_config_profile_t;

struct demo;
typedef struct demo demo_t;

demo_t *demo_create(void);
void demo_destroy(demo_t *d);
int32_t demo_get(void);
acc_config_profile_t demo_profile(const demo_t *d);
#endif
`

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// demoProject writes a header directory, fake toolchain and config file and
// returns the config path and output directory.
func demoProject(t *testing.T, header string) (string, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake toolchain scripts need a POSIX shell")
	}
	root := t.TempDir()
	headers := filepath.Join(root, "include")
	if err := os.Mkdir(headers, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(headers, "demo.h"), []byte(header), 0o644); err != nil {
		t.Fatal(err)
	}
	cc := writeScript(t, root, "cc", `for a; do last="$a"; done; : > "$last"`)
	ar := writeScript(t, root, "ar", `: > "$2"`)
	nm := writeScript(t, root, "nm", `echo "00000000 T demo_get"`)

	out := filepath.Join(root, "stubs")
	cfgPath := filepath.Join(root, "stubgen.yaml")
	cfg := `headers: ` + headers + `
output: ` + out + `
toolchain:
  cc: ` + cc + `
  ar: ` + ar + `
  nm: ` + nm + `
groups:
  - id: demo
    headers: [demo.h]
`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath, out
}

func TestBuildAndLinkFlags(t *testing.T) {
	cfgPath, out := demoProject(t, demoHeader)
	buf := capture(t)

	if err := dispatch([]string{"build", "-config", cfgPath}); err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(buf.String(), "libdemo.a (4 functions, validated)") {
		t.Errorf("build output = %q", buf)
	}

	buf.Reset()
	if err := dispatch([]string{"link-flags", "-config", cfgPath}); err != nil {
		t.Fatalf("link-flags: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "-L"+out+" -ldemo" {
		t.Errorf("link-flags = %q", got)
	}

	buf.Reset()
	if err := dispatch([]string{"validate", "-config", cfgPath}); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(buf.String(), "libdemo.a: passed") {
		t.Errorf("validate output = %q", buf)
	}
}

func TestListAndSynth(t *testing.T) {
	cfgPath, _ := demoProject(t, demoHeader)
	buf := capture(t)

	if err := dispatch([]string{"list", "-config", cfgPath}); err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, line := range []string{"# demo (4 functions)", "int32_t demo_get(void);", "void demo_destroy(demo_t *d);"} {
		if !strings.Contains(buf.String(), line) {
			t.Errorf("list output missing %q:\n%s", line, buf)
		}
	}

	buf.Reset()
	if err := dispatch([]string{"synth", "-config", cfgPath, "demo"}); err != nil {
		t.Fatalf("synth: %v", err)
	}
	src := buf.String()
	for _, want := range []string{
		"#include \"demo.h\"",
		"int32_t demo_get(void) {\n    return -1;\n}",
		"acc_config_profile_t demo_profile(const demo_t *d) {\n    (void) d;\n    return ACC_CONFIG_PROFILE_3;\n}",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("synth output missing %q", want)
		}
	}
}

func TestCheck(t *testing.T) {
	cfgPath, _ := demoProject(t, demoHeader)
	buf := capture(t)
	if err := dispatch([]string{"check", "-config", cfgPath}); err != nil {
		t.Fatalf("check: %v\n%s", err, buf)
	}

	bad := strings.Replace(demoHeader, "ACC_CONFIG_PROFILE_3 = 3", "ACC_CONFIG_PROFILE_4 = 4", 1)
	cfgPath, _ = demoProject(t, bad)
	buf.Reset()
	err := dispatch([]string{"check", "-config", cfgPath})
	if err == nil {
		t.Fatal("expected check to fail for an undeclared enumerator")
	}
	if !strings.Contains(buf.String(), "acc_config_profile_t: ACC_CONFIG_PROFILE_3") {
		t.Errorf("check output = %q", buf)
	}
}
