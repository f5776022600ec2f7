package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"stubgen/internal/model"
)

type buildResult struct {
	artifacts []model.StubArtifact
	err       error
}

func TestWatchRebuildsOnHeaderChange(t *testing.T) {
	headers := unpackSDK(t)
	p := newPipeline(t, headers, t.TempDir(), fakeToolchain(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	builds := make(chan buildResult, 4)
	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, 50*time.Millisecond, func(a []model.StubArtifact, err error) {
			builds <- buildResult{a, err}
		})
	}()

	wait := func() buildResult {
		t.Helper()
		select {
		case r := <-builds:
			return r
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for a build")
			return buildResult{}
		}
	}

	first := wait()
	if first.err != nil || first.artifacts[0].Functions != baseFunctions {
		t.Fatalf("initial build: %+v", first)
	}

	version := filepath.Join(headers, "acc_version.h")
	content := "#include <stdint.h>\nconst char *acc_version_get(void);\nuint32_t acc_version_get_hex(void);\nvoid acc_version_log(void);\n"
	if err := os.WriteFile(version, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	second := wait()
	if second.err != nil {
		t.Fatalf("rebuild: %v", second.err)
	}
	if got := second.artifacts[0].Functions; got != baseFunctions+1 {
		t.Errorf("rebuild saw %d functions, want %d", got, baseFunctions+1)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}

func TestWatchHeadersNotFound(t *testing.T) {
	p := newPipeline(t, filepath.Join(t.TempDir(), "missing"), t.TempDir(), fakeToolchain(t))
	err := p.Watch(context.Background(), 0, func([]model.StubArtifact, error) {
		t.Error("no build expected")
	})
	if err == nil {
		t.Fatal("expected error for missing headers dir")
	}
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: "acc_sensor.h", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "acc_sensor.h", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "acc_sensor.h", Op: fsnotify.Rename}, true},
		{fsnotify.Event{Name: "acc_sensor.h", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "acc_sensor.h.swp", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "README.md", Op: fsnotify.Write}, false},
	}
	for _, tc := range tests {
		if got := relevant(tc.ev); got != tc.want {
			t.Errorf("relevant(%v) = %v, want %v", tc.ev, got, tc.want)
		}
	}
}
