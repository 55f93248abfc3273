package gpu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner answers command invocations from canned fixtures, keyed by
// the joined command line.
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	files   map[string]string
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		outputs: make(map[string]string),
		errs:    make(map[string]error),
		files:   make(map[string]string),
	}
}

func (f *fakeRunner) on(output string, name string, args ...string) {
	f.outputs[commandKey(name, args)] = output
}

func (f *fakeRunner) fail(name string, args ...string) {
	f.errs[commandKey(name, args)] = fmt.Errorf("exit status 1")
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	key := commandKey(name, args)
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	if out, ok := f.outputs[key]; ok {
		return out, nil
	}
	return "", fmt.Errorf("run %s: executable file not found", name)
}

func (f *fakeRunner) ReadFile(path string) (string, error) {
	if content, ok := f.files[path]; ok {
		return content, nil
	}
	return "", os.ErrNotExist
}

func commandKey(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
