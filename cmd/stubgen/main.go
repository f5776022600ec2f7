package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"

	"stubgen/internal/config"
	"stubgen/internal/group"
	"stubgen/internal/manifest"
	"stubgen/internal/model"
	"stubgen/internal/pipeline"
	"stubgen/internal/validate"
)

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(args []string) error
}

var commands = []command{
	{
		name:  "init",
		short: "Write a new stubgen.yaml",
		usage: "stubgen init [-defaults] [path]",
		long: `Prompt for the headers directory, output directory, toolchain prefix and
features, then write them to path (default stubgen.yaml).

With -defaults no questions are asked and the built-in defaults are written.
Errors if the file already exists.
`,
		run: runInit,
	},
	{
		name:  "build",
		short: "Build stub libraries for every enabled header group",
		usage: "stubgen build [-config file] [-features list] [-v]",
		long: `Extract, synthesize, compile, archive and validate every enabled header
group, then write manifest.md to the output directory.

A failed group leaves no object or archive behind and no manifest is
written.
`,
		run: runBuild,
	},
	{
		name:  "list",
		short: "Print the functions each enabled group declares",
		usage: "stubgen list [-config file] [-features list]",
		long: `Print the extracted prototypes of every enabled header group, grouped by
group identifier.
`,
		run: runList,
	},
	{
		name:  "synth",
		short: "Print the stub source of one group",
		usage: "stubgen synth [-config file] <group>",
		long: `Render the stub source for one header group to stdout without compiling.
Any group of the catalog may be named, enabled or not.
`,
		run: runSynth,
	},
	{
		name:  "validate",
		short: "Check archives with the symbol dumper",
		usage: "stubgen validate [-config file] [archive...]",
		long: `Run the symbol dumper over each named archive, or over every archive in
the manifest when none are named. A symbol dumper that cannot be started
skips validation.
`,
		run: runValidate,
	},
	{
		name:  "check",
		short: "Verify default return literals against header enums",
		usage: "stubgen check [-config file] [-features list]",
		long: `Report every default-value entry whose literal is not an enumerator of
the enum type it is registered for, as declared in the enabled headers.
`,
		run: runCheck,
	},
	{
		name:  "watch",
		short: "Rebuild whenever a header changes",
		usage: "stubgen watch [-config file] [-features list] [-v]",
		long: `Build once, then rebuild each time a .h file in the headers directory
changes. Runs until interrupted.
`,
		run: runWatch,
	},
	{
		name:  "link-flags",
		short: "Print linker arguments from the manifest",
		usage: "stubgen link-flags [-config file]",
		long: `Print the -L and -l arguments that link every archive recorded in the
manifest of the last successful build.
`,
		run: runLinkFlags,
	},
}

// stdout receives command output; tests replace it.
var stdout io.Writer = os.Stdout

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "stubgen: stub native-library synthesis\n\n")
	fmt.Fprintf(w, "Usage:\n  stubgen <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-11s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nRun 'stubgen help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, cmd := range commands {
		if cmd.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
			return
		}
	}
	fmt.Fprintf(w, "stubgen: unknown command %q\n\nRun 'stubgen help' for usage.\n", name)
}

func dispatch(args []string) error {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(stdout)
		return nil
	}
	if args[0] == "help" {
		if len(args) >= 2 {
			printCommandHelp(stdout, args[1])
		} else {
			printUsage(stdout)
		}
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(args[1:])
		}
	}
	return fmt.Errorf("unknown command %q\n\nRun 'stubgen help' for usage.", args[0])
}

// ---------------------------------------------------------------------------
// Shared flags
// ---------------------------------------------------------------------------

// env holds what every command derives from its flags.
type env struct {
	cfg  *config.Config
	log  *logrus.Logger
	args []string
}

func newFlagSet(name string) (*flag.FlagSet, *string, *string, *bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfgPath := fs.String("config", config.DefaultPath, "config file")
	features := fs.String("features", "", "comma separated features (distance, presence)")
	verbose := fs.Bool("v", false, "debug logging")
	return fs, cfgPath, features, verbose
}

// setup parses the shared flags and layers the configuration.
func setup(name string, args []string) (*env, error) {
	fs, cfgPath, features, verbose := newFlagSet(name)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return nil, err
	}
	lookup, err := config.Environ(config.DotenvFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "features" {
			cfg.Features = []string{*features}
		}
	})

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return &env{cfg: cfg, log: log, args: fs.Args()}, nil
}

func (e *env) pipeline() (*pipeline.Pipeline, error) {
	return pipeline.New(e.cfg, e.log)
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	useDefaults := fs.Bool("defaults", false, "write defaults without prompting")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("usage: stubgen init [-defaults] [path]")
	}
	path := config.DefaultPath
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}

	cfg := config.Default()
	if !*useDefaults {
		answers, err := promptQuestions(initQuestions(cfg))
		if err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
		applyAnswers(cfg, answers)
	}
	if _, err := cfg.Capabilities(); err != nil {
		return err
	}
	if err := config.Create(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}

// ---------------------------------------------------------------------------
// build
// ---------------------------------------------------------------------------

func runBuild(args []string) error {
	e, err := setup("build", args)
	if err != nil {
		return err
	}
	p, err := e.pipeline()
	if err != nil {
		return err
	}
	arts, err := p.Run(context.Background())
	if err != nil {
		return err
	}
	printArtifacts(stdout, p.OutputDir, arts)
	return nil
}

func printArtifacts(w io.Writer, dir string, arts []model.StubArtifact) {
	for _, a := range arts {
		status := "validated"
		if !a.Validated {
			status = "not validated"
		}
		fmt.Fprintf(w, "%-28s %s/%s (%d functions, %s)\n", a.Group, dir, a.Archive, a.Functions, status)
	}
}

// ---------------------------------------------------------------------------
// list / synth
// ---------------------------------------------------------------------------

func runList(args []string) error {
	e, err := setup("list", args)
	if err != nil {
		return err
	}
	p, err := e.pipeline()
	if err != nil {
		return err
	}
	for _, g := range p.Groups {
		sigs, err := p.Signatures(g)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "# %s (%d functions)\n", g.ID, len(sigs))
		for _, s := range sigs {
			fmt.Fprintf(stdout, "%s;\n", s.Prototype())
		}
	}
	return nil
}

func runSynth(args []string) error {
	e, err := setup("synth", args)
	if err != nil {
		return err
	}
	if len(e.args) != 1 {
		return fmt.Errorf("usage: stubgen synth [-config file] <group>")
	}
	g, ok := group.Find(e.cfg.Catalog(), e.args[0])
	if !ok {
		return fmt.Errorf("unknown header group %q", e.args[0])
	}
	p, err := e.pipeline()
	if err != nil {
		return err
	}
	src, err := p.Source(g)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, src)
	return nil
}

// ---------------------------------------------------------------------------
// validate / check
// ---------------------------------------------------------------------------

func runValidate(args []string) error {
	e, err := setup("validate", args)
	if err != nil {
		return err
	}
	archives := e.args
	if len(archives) == 0 {
		m, err := manifest.Read(e.cfg.Output)
		if err != nil {
			return fmt.Errorf("no archives given and no manifest: %w", err)
		}
		archives = m.Archives()
	}

	var anyErr bool
	for _, a := range archives {
		res, err := validate.Validate(e.cfg.Toolchain, a)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			anyErr = true
		}
		fmt.Fprintf(stdout, "%s: %s\n", a, res)
	}
	if anyErr {
		return errors.New("one or more archives failed validation")
	}
	return nil
}

func runCheck(args []string) error {
	e, err := setup("check", args)
	if err != nil {
		return err
	}
	p, err := e.pipeline()
	if err != nil {
		return err
	}
	enums, err := p.Enumerators()
	if err != nil {
		return err
	}
	reg, err := e.cfg.Registry()
	if err != nil {
		return err
	}
	bad := reg.Verify(enums)
	for _, m := range bad {
		fmt.Fprintln(stdout, m)
	}
	if len(bad) > 0 {
		return fmt.Errorf("%d default value(s) are not declared enumerators", len(bad))
	}
	fmt.Fprintf(stdout, "%d default values checked against %d enum types\n", reg.Len(), len(enums))
	return nil
}

// ---------------------------------------------------------------------------
// watch / link-flags
// ---------------------------------------------------------------------------

func runWatch(args []string) error {
	e, err := setup("watch", args)
	if err != nil {
		return err
	}
	p, err := e.pipeline()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return p.Watch(ctx, pipeline.DefaultDebounce, func(arts []model.StubArtifact, err error) {
		if err != nil {
			e.log.Error(err)
			return
		}
		printArtifacts(stdout, p.OutputDir, arts)
	})
}

func runLinkFlags(args []string) error {
	e, err := setup("link-flags", args)
	if err != nil {
		return err
	}
	m, err := manifest.Read(e.cfg.Output)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, strings.Join(m.LinkFlags(), " "))
	return nil
}

func main() {
	if err := dispatch(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "stubgen: %v\n", err)
		os.Exit(1)
	}
}
