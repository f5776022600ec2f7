// Package pipeline turns SDK headers into validated stub archives.
//
// Each enabled header group goes through extract, synthesize, write,
// compile, archive and validate. A failed run leaves no object or archive
// behind for any group, disabled groups leave no files at all, and the
// manifest is only written once every group succeeded.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"stubgen/internal/config"
	"stubgen/internal/defaults"
	"stubgen/internal/extract"
	"stubgen/internal/manifest"
	"stubgen/internal/model"
	"stubgen/internal/stuberr"
	"stubgen/internal/synth"
	"stubgen/internal/toolchain"
	"stubgen/internal/validate"
)

// Pipeline holds everything one build needs. Groups is resolved once and
// threaded through every stage. Catalog lists every group that may own
// files in OutputDir; those not in Groups are cleared at the start of Run.
type Pipeline struct {
	HeadersDir    string
	OutputDir     string
	Groups        []model.HeaderGroup
	Catalog       []model.HeaderGroup
	Toolchain     toolchain.Toolchain
	Parallel      bool
	StrictSymbols bool

	extractor *extract.Extractor
	synth     *synth.Synthesizer
	log       logrus.FieldLogger
}

// New builds a pipeline from a loaded configuration. A nil log discards
// progress output.
func New(cfg *config.Config, log logrus.FieldLogger) (*Pipeline, error) {
	groups, err := cfg.EnabledGroups()
	if err != nil {
		return nil, err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	p := NewWith(cfg.Headers, cfg.Output, groups, reg, cfg.Toolchain, log)
	p.Catalog = cfg.Catalog()
	p.Parallel = cfg.Parallel
	p.StrictSymbols = cfg.StrictSymbols
	return p, nil
}

// NewWith builds a pipeline from explicit parts. Its Catalog is groups.
func NewWith(headersDir, outputDir string, groups []model.HeaderGroup, reg *defaults.Registry,
	tc toolchain.Toolchain, log logrus.FieldLogger) *Pipeline {
	if log == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		log = quiet
	}
	return &Pipeline{
		HeadersDir: headersDir,
		OutputDir:  outputDir,
		Groups:     groups,
		Catalog:    groups,
		Toolchain:  tc,
		extractor:  extract.New(extract.DefaultCacheSize),
		synth:      synth.New(reg),
		log:        log,
	}
}

// Run builds every enabled group and writes the manifest. It returns the
// artifacts in group order. When any group fails, the objects and archives
// of every enabled group are removed.
func (p *Pipeline) Run(ctx context.Context) ([]model.StubArtifact, error) {
	if err := p.checkHeaders(); err != nil {
		return nil, err
	}
	if err := p.Toolchain.CheckPaths(p.HeadersDir, p.OutputDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if err := manifest.Remove(p.OutputDir); err != nil {
		return nil, err
	}
	if err := p.pruneDisabled(); err != nil {
		return nil, err
	}

	artifacts, err := p.buildAll(ctx)
	if err != nil {
		for _, g := range p.Groups {
			p.remove(g, g.ObjectName(), g.ArchiveName())
		}
		return nil, err
	}

	search, err := filepath.Abs(p.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	if err := manifest.New(search, artifacts).Write(p.OutputDir); err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{"path": manifest.Path(p.OutputDir), "groups": len(artifacts)}).Info("manifest written")
	return artifacts, nil
}

func (p *Pipeline) buildAll(ctx context.Context) ([]model.StubArtifact, error) {
	artifacts := make([]model.StubArtifact, len(p.Groups))
	if p.Parallel {
		eg, ctx := errgroup.WithContext(ctx)
		for i, g := range p.Groups {
			eg.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				a, err := p.BuildGroup(g)
				artifacts[i] = a
				return err
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, g := range p.Groups {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			a, err := p.BuildGroup(g)
			if err != nil {
				return nil, err
			}
			artifacts[i] = a
		}
	}
	return artifacts, nil
}

// pruneDisabled deletes the source, object and archive of every catalog
// group that is not enabled, so an earlier build cannot leave them behind.
func (p *Pipeline) pruneDisabled() error {
	enabled := make(map[string]bool, len(p.Groups))
	for _, g := range p.Groups {
		enabled[g.ID] = true
	}
	for _, g := range p.Catalog {
		if enabled[g.ID] {
			continue
		}
		for _, name := range []string{g.SourceName(), g.ObjectName(), g.ArchiveName()} {
			path := filepath.Join(p.OutputDir, name)
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("remove output of disabled group %s: %w", g.ID, err)
			}
		}
		p.log.WithField("group", g.ID).Debug("disabled, outputs cleared")
	}
	return nil
}

// remove deletes files of g from the output directory, logging failures.
func (p *Pipeline) remove(g model.HeaderGroup, names ...string) {
	for _, name := range names {
		if err := os.Remove(filepath.Join(p.OutputDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.log.WithFields(logrus.Fields{"group": g.ID, "path": name}).Warnf("cleanup: %v", err)
		}
	}
}

func (p *Pipeline) checkHeaders() error {
	info, err := os.Stat(p.HeadersDir)
	if err != nil {
		return stuberr.New(stuberr.ErrHeadersNotFound, "", p.HeadersDir, err)
	}
	if !info.IsDir() {
		return stuberr.New(stuberr.ErrHeadersNotFound, "", p.HeadersDir, errors.New("not a directory"))
	}
	return nil
}

// Signatures extracts the declarations of one group.
func (p *Pipeline) Signatures(g model.HeaderGroup) ([]model.FunctionSignature, error) {
	if err := p.checkHeaders(); err != nil {
		return nil, err
	}
	return p.extractor.Extract(p.HeadersDir, g)
}

// Source renders the stub source of one group without writing it.
func (p *Pipeline) Source(g model.HeaderGroup) (string, error) {
	sigs, err := p.Signatures(g)
	if err != nil {
		return "", err
	}
	return p.synth.Source(sigs, g.Headers), nil
}

// Enumerators collects the enum types declared across every enabled group.
func (p *Pipeline) Enumerators() (map[string][]string, error) {
	if err := p.checkHeaders(); err != nil {
		return nil, err
	}
	var headers []string
	for _, g := range p.Groups {
		headers = append(headers, g.Headers...)
	}
	return p.extractor.Enumerators(p.HeadersDir, headers)
}

// BuildGroup runs every stage for one group. On failure the group's object
// and archive are removed.
func (p *Pipeline) BuildGroup(g model.HeaderGroup) (model.StubArtifact, error) {
	a, err := p.buildGroup(g)
	if err != nil {
		p.remove(g, g.ObjectName(), g.ArchiveName())
		return model.StubArtifact{}, stuberr.WithGroup(err, g.ID)
	}
	return a, nil
}

func (p *Pipeline) buildGroup(g model.HeaderGroup) (model.StubArtifact, error) {
	source := filepath.Join(p.OutputDir, g.SourceName())
	object := filepath.Join(p.OutputDir, g.ObjectName())
	archive := filepath.Join(p.OutputDir, g.ArchiveName())
	stage := func(name, path string) logrus.FieldLogger {
		return p.log.WithFields(logrus.Fields{"group": g.ID, "stage": name, "path": path})
	}

	stage("extract", p.HeadersDir).Debug("extracting declarations")
	sigs, err := p.extractor.Extract(p.HeadersDir, g)
	if err != nil {
		return model.StubArtifact{}, err
	}
	stage("extract", p.HeadersDir).Debugf("%d functions", len(sigs))

	stage("synthesize", source).Debug("writing stub source")
	if err := synth.WriteSource(source, p.synth.Source(sigs, g.Headers)); err != nil {
		return model.StubArtifact{}, err
	}

	stage("compile", object).Debug("compiling")
	if err := p.Toolchain.Compile(source, p.HeadersDir, object); err != nil {
		return model.StubArtifact{}, err
	}

	stage("archive", archive).Debug("archiving")
	if err := p.Toolchain.Archive(object, archive); err != nil {
		return model.StubArtifact{}, err
	}

	res, err := validate.Validate(p.Toolchain, archive)
	if err != nil {
		return model.StubArtifact{}, err
	}
	if res == validate.Skipped {
		stage("validate", archive).Infof("%s not available, validation skipped", p.Toolchain.SymbolDumper())
	} else if p.StrictSymbols {
		if err := validate.CheckSymbols(p.Toolchain, archive, sigs); err != nil {
			return model.StubArtifact{}, err
		}
	}

	sum, err := fileSHA256(archive)
	if err != nil {
		return model.StubArtifact{}, stuberr.New(stuberr.ErrArchive, g.ID, archive, err)
	}
	stage("validate", archive).WithField("result", res.String()).Info("stub library ready")
	return model.StubArtifact{
		Group:     g.ID,
		Source:    g.SourceName(),
		Object:    g.ObjectName(),
		Archive:   g.ArchiveName(),
		SHA256:    sum,
		Functions: len(sigs),
		Validated: res == validate.Passed,
	}, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
