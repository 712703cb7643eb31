// Package guard enforces that at most one bot process mutates the store at a
// time. Telegram long polling rejects concurrent getUpdates consumers with a
// 409, and two writers would corrupt the flat-file store, so the process
// refuses to start while a live holder owns the marker file.
package guard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"intakebot/core/logger"

	"log/slog"
)

// ErrActiveInstance reports that another live process holds the marker.
// Callers are expected to treat it as a graceful refusal, not a failure.
var ErrActiveInstance = errors.New("guard: another instance is active")

// Guard owns the single-instance marker file for the lifetime of the process.
type Guard struct {
	path     string
	acquired bool
}

// glog falls back to the default slog logger before InitLogger has run
// (tests exercise Acquire without the full logging pipeline).
func glog() *slog.Logger {
	if logger.Guard != nil {
		return logger.Guard
	}
	return slog.Default()
}

// Acquire atomically creates the marker file holding the current pid.
// A marker that does not name a live process is treated as abandoned,
// whether its recorded pid is dead or its content is not a pid at all:
// it is removed and acquisition is retried exactly once. A marker owned
// by a live process yields ErrActiveInstance.
func Acquire(path string) (*Guard, error) {
	g := &Guard{path: path}

	if err := g.create(); err == nil {
		return g, nil
	} else if !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("guard: create marker %s: %w", path, err)
	}

	pid, readErr := readPID(path)
	if readErr != nil || !processAlive(pid) {
		glog().Warn("stale marker reclaimed",
			slog.String("event", "guard.reclaim"),
			slog.String("path", path),
			slog.Int("pid", pid),
		)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("guard: remove stale marker %s: %w", path, err)
		}
		// Single retry; a second EEXIST means we lost the race to a live peer.
		if err := g.create(); err == nil {
			return g, nil
		} else if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("guard: create marker %s: %w", path, err)
		}
	}

	glog().LogAttrs(context.Background(), slog.LevelInfo, "instance already running",
		slog.String("event", "guard.contention"),
		slog.String("path", path),
		slog.Int("pid", pid),
	)
	return nil, ErrActiveInstance
}

func (g *Guard) create() error {
	f, err := os.OpenFile(g.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
	cerr := f.Close()
	if werr != nil {
		_ = os.Remove(g.path)
		return werr
	}
	if cerr != nil {
		_ = os.Remove(g.path)
		return cerr
	}
	g.acquired = true
	glog().Debug("marker acquired",
		slog.String("event", "guard.acquire"),
		slog.String("path", g.path),
		slog.Int("pid", os.Getpid()),
	)
	return nil
}

// Release removes the marker. It is best-effort and idempotent: failures are
// swallowed so every termination path may call it unconditionally.
func (g *Guard) Release() {
	if g == nil || !g.acquired {
		return
	}
	g.acquired = false
	if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
		glog().Warn("marker release failed",
			slog.String("event", "guard.release"),
			slog.String("path", g.path),
			slog.String("err", err.Error()),
		)
	}
}

// Path returns the marker file location.
func (g *Guard) Path() string {
	return g.path
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("guard: malformed marker %s: %w", path, err)
	}
	return pid, nil
}

// processAlive probes the pid with signal 0. EPERM still means the process
// exists, just under another uid, so the marker is honoured.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
