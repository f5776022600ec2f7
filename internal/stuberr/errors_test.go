package stuberr_test

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"stubgen/internal/stuberr"
)

func TestErrorIsKindAndCause(t *testing.T) {
	err := error(stuberr.New(stuberr.ErrExtraction, "acconeer_a121", "acc_sensor.h", fs.ErrNotExist))

	if !errors.Is(err, stuberr.ErrExtraction) {
		t.Error("expected errors.Is(err, ErrExtraction)")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("expected errors.Is(err, fs.ErrNotExist)")
	}
	if errors.Is(err, stuberr.ErrCompilation) {
		t.Error("extraction error must not match ErrCompilation")
	}
}

func TestErrorMessageCarriesContext(t *testing.T) {
	err := &stuberr.Error{
		Kind:     stuberr.ErrCompilation,
		Group:    "acc_detector_distance_a121",
		Path:     "/out/acc_detector_distance_a121_stubs.c",
		ExitCode: 1,
		Output:   "error: unknown type name 'acc_foo_t'\n",
	}
	msg := err.Error()
	for _, want := range []string{
		"compilation failed",
		"acc_detector_distance_a121",
		"/out/acc_detector_distance_a121_stubs.c",
		"exit status 1",
		"unknown type name",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestWithGroup(t *testing.T) {
	err := stuberr.WithGroup(stuberr.New(stuberr.ErrSynthesis, "", "x.c", nil), "g")
	var se *stuberr.Error
	if !errors.As(err, &se) {
		t.Fatal("expected *stuberr.Error")
	}
	if se.Group != "g" {
		t.Errorf("Group = %q, want g", se.Group)
	}

	// An existing group is preserved.
	err = stuberr.WithGroup(stuberr.New(stuberr.ErrSynthesis, "first", "x.c", nil), "second")
	errors.As(err, &se)
	if se.Group != "first" {
		t.Errorf("Group = %q, want first", se.Group)
	}

	plain := errors.New("plain")
	if got := stuberr.WithGroup(plain, "g"); got != plain {
		t.Error("non-stuberr errors must pass through unchanged")
	}
}
