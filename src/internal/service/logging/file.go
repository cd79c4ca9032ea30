package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/natefinch/lumberjack.v2"
)

// The log is a single append-only file; size-based rotation is disabled.
const noRotationMB = 1 << 20

// Log is the process-wide logger plus the append-only file behind it.
type Log struct {
	Logger *slog.Logger
	path   string
	file   *lumberjack.Logger
}

// DefaultPath places the log file beside the executable.
func DefaultPath(name string) string {
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(exe), name)
}

// Open builds a privacy-filtered logger that writes to console and to path.
func Open(path string, debug bool, console io.Writer) *Log {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    noRotationMB,
		MaxBackups: 0,
	}
	var out io.Writer = file
	if console != nil {
		out = io.MultiWriter(console, file)
	}
	text := slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &Log{
		Logger: slog.New(NewPrivacyHandler(text, debug)),
		path:   path,
		file:   file,
	}
}

func (l *Log) Path() string {
	return l.path
}

func (l *Log) Close() error {
	return l.file.Close()
}

// Watch closes the file handle whenever the log file is removed or renamed
// from outside, so the next write recreates it. Stops when ctx is done.
func (l *Log) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != l.path {
					continue
				}
				if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					_ = l.file.Close()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				Failure(l.Logger).Error("log file watcher error", "error", err)
			}
		}
	}()
	return nil
}
