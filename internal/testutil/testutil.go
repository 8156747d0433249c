// Package testutil provides testing utilities for actbridge tests.
package testutil

import (
	"bytes"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/creack/pty"
	"github.com/spf13/afero"
)

// WriteSupply creates a power_supply entry named name under root with the
// given type and attribute files.
func WriteSupply(t *testing.T, fs afero.Fs, root, name, kind string, files map[string]string) {
	t.Helper()

	dir := filepath.Join(root, name)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create supply dir: %v", err)
	}
	if err := afero.WriteFile(fs, filepath.Join(dir, "type"), []byte(kind+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write supply type: %v", err)
	}
	for file, content := range files {
		if err := afero.WriteFile(fs, filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", file, err)
		}
	}
}

// WriteBattery creates a mains adapter AC and a battery BAT0 under root, the
// layout of a typical laptop.
func WriteBattery(t *testing.T, fs afero.Fs, root, status, capacity string) {
	t.Helper()

	WriteSupply(t, fs, root, "AC", "Mains", map[string]string{"online": "1\n"})
	WriteSupply(t, fs, root, "BAT0", "Battery", map[string]string{
		"status":   status + "\n",
		"capacity": capacity + "\n",
	})
}

// SyncBuffer is a bytes.Buffer safe for concurrent writers, for capturing
// logs written from background goroutines.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// SkipIfNoShell skips the test if sh is not installed.
func SkipIfNoShell(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH, skipping test")
	}
}

// SkipIfNoPty skips the test if a pseudo-terminal cannot be opened.
func SkipIfNoPty(t *testing.T) {
	t.Helper()

	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("pty not available, skipping test: %v", err)
	}
	_ = ptmx.Close()
	_ = tty.Close()
}
