// Package log provides configurable logging for wrenchd.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileHandler writes logs to a file, rotating by size with numbered backups
// (wrenchd.log.1 is the most recent backup).
type FileHandler struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	maxSize    int64 // bytes
	maxBackups int
	size       int64
	format     string
	level      slog.Level
	inner      slog.Handler
}

// NewFileHandler creates a file handler with size-based rotation.
func NewFileHandler(cfg *Config, level slog.Level) (*FileHandler, error) {
	dir := filepath.Dir(cfg.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	maxSize := int64(cfg.MaxSizeMB) * 1024 * 1024
	if maxSize < 1024 {
		maxSize = 1024
	}

	h := &FileHandler{
		path:       cfg.FilePath,
		maxSize:    maxSize,
		maxBackups: cfg.MaxBackups,
		format:     cfg.Format,
		level:      level,
	}
	if err := h.open(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *FileHandler) open() error {
	file, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	h.file = file
	h.size = info.Size()

	opts := &slog.HandlerOptions{Level: h.level}
	if h.format == "json" {
		h.inner = slog.NewJSONHandler(file, opts)
	} else {
		h.inner = slog.NewTextHandler(file, opts)
	}
	return nil
}

func (h *FileHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *FileHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.size >= h.maxSize {
		if err := h.rotate(); err != nil {
			return err
		}
	}

	pos, _ := h.file.Seek(0, 1)
	err := h.inner.Handle(ctx, r)
	newPos, _ := h.file.Seek(0, 1)
	h.size += newPos - pos

	return err
}

func (h *FileHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	clone := *h
	clone.inner = h.inner.WithAttrs(attrs)
	return &clone
}

func (h *FileHandler) WithGroup(name string) slog.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	clone := *h
	clone.inner = h.inner.WithGroup(name)
	return &clone
}

// rotate shifts wrenchd.log.N -> wrenchd.log.N+1, dropping the oldest,
// then reopens a fresh file.
func (h *FileHandler) rotate() error {
	h.file.Close()

	os.Remove(fmt.Sprintf("%s.%d", h.path, h.maxBackups))
	for i := h.maxBackups - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", h.path, i)
		to := fmt.Sprintf("%s.%d", h.path, i+1)
		if _, err := os.Stat(from); err == nil {
			os.Rename(from, to)
		}
	}
	if err := os.Rename(h.path, h.path+".1"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}

	return h.open()
}

// Close closes the underlying file.
func (h *FileHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file != nil {
		return h.file.Close()
	}
	return nil
}
