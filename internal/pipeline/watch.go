package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"stubgen/internal/model"
)

// DefaultDebounce is how long header changes must settle before a rebuild.
const DefaultDebounce = 300 * time.Millisecond

// BuildFunc receives the outcome of every build started by Watch.
type BuildFunc func(artifacts []model.StubArtifact, err error)

// Watch builds once, then rebuilds whenever a header in HeadersDir changes,
// until ctx ends. Bursts of events within debounce collapse into one
// build. Build failures go to onBuild and do not stop watching.
func (p *Pipeline) Watch(ctx context.Context, debounce time.Duration, onBuild BuildFunc) error {
	if err := p.checkHeaders(); err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(p.HeadersDir); err != nil {
		return fmt.Errorf("watch %s: %w", p.HeadersDir, err)
	}

	onBuild(p.Run(ctx))

	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			p.log.WithFields(logrus.Fields{"path": ev.Name, "op": ev.Op.String()}).Debug("header changed")
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.log.WithField("path", p.HeadersDir).Warnf("watch: %v", err)
		case <-timer.C:
			p.log.WithField("path", p.HeadersDir).Info("headers changed, rebuilding")
			onBuild(p.Run(ctx))
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if filepath.Ext(ev.Name) != ".h" {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
		ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
