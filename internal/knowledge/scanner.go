package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PlainReader reads a file as UTF-8 text.
type PlainReader struct{}

func NewPlainReader() *PlainReader {
	return &PlainReader{}
}

func (r *PlainReader) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}

// Scanner walks a knowledge base directory and produces one Document per
// supported file. Unsupported extensions are skipped with a warning, they
// never fail the scan.
type Scanner struct {
	root    string
	readers map[string]Reader
	logger  *slog.Logger
}

// NewScanner builds a scanner over root with the default reader set:
// markdown and plain text files, plus Excel workbooks.
func NewScanner(root string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	md := NewMarkdownReader()
	xl := NewExcelReader()
	txt := NewPlainReader()
	return &Scanner{
		root: root,
		readers: map[string]Reader{
			".md":       md,
			".markdown": md,
			".xlsx":     xl,
			".xls":      xl,
			".txt":      txt,
		},
		logger: logger,
	}
}

// Documents walks the knowledge base and reads every supported file. A file
// that cannot be read is skipped with a warning so one broken document does
// not block the rest of the scan.
func (s *Scanner) Documents(ctx context.Context) ([]Document, error) {
	var docs []Document

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		reader, ok := s.readers[ext]
		if !ok {
			s.logger.Warn("Skipping unsupported file", "path", path, "ext", ext)
			return nil
		}

		text, err := reader.Read(path)
		if err != nil {
			s.logger.Warn("Failed to read knowledge file", "path", path, "error", err)
			return nil
		}
		if strings.TrimSpace(text) == "" {
			s.logger.Warn("Empty knowledge file", "path", path)
			return nil
		}

		var modified time.Time
		if info, err := d.Info(); err == nil {
			modified = info.ModTime()
		}

		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			rel = path
		}

		docs = append(docs, NewDocument(filepath.ToSlash(rel), text, modified))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan knowledge base %s: %w", s.root, err)
	}

	s.logger.Info("Scanned knowledge base", "root", s.root, "documents", len(docs))
	return docs, nil
}
