// Package ingest loads documents from disk, splits and embeds them, and
// replaces the vector store contents in one shot.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/cinevec/cinevec/internal/models"
)

var errUnsupported = errors.New("unsupported file type")

// LoadStats counts what happened to the files under a directory.
type LoadStats struct {
	Files   int // parsed successfully
	Skipped int // hidden or unsupported
	Errors  int // failed to parse
}

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LoadDir walks root recursively and loads every supported file. Hidden
// entries are skipped. A file that fails to parse is logged and counted but
// never aborts the rest of the walk.
func (l *Loader) LoadDir(root string) ([]models.Document, LoadStats, error) {
	var (
		docs  []models.Document
		stats LoadStats
	)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			stats.Skipped++
			return nil
		}

		loaded, err := l.loadFile(root, path)
		switch {
		case errors.Is(err, errUnsupported):
			stats.Skipped++
			l.logger.Debug("skipped file", zap.String("path", path))
		case err != nil:
			stats.Errors++
			l.logger.Warn("failed to load file", zap.String("path", path), zap.Error(err))
		default:
			stats.Files++
			docs = append(docs, loaded...)
		}
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("walk %s: %w", root, err)
	}

	l.logger.Info("loaded documents",
		zap.String("dir", root),
		zap.Int("files", stats.Files),
		zap.Int("documents", len(docs)),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors))

	return docs, stats, nil
}

// loadFile parses one file. CSV catalogs yield one document per row,
// everything else yields a single document keyed by its relative path.
func (l *Loader) loadFile(root, path string) ([]models.Document, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return l.loadCSV(path, rel)

	case ".txt", ".md":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return []models.Document{{
			ID:     rel,
			Source: rel,
			Title:  title,
			Text:   strings.TrimSpace(string(content)),
		}}, nil

	case ".html", ".htm":
		pageTitle, text, err := extractHTML(path)
		if err != nil {
			return nil, err
		}
		if pageTitle == "" {
			pageTitle = title
		}
		return []models.Document{{
			ID:     rel,
			Source: rel,
			Title:  pageTitle,
			Text:   text,
		}}, nil

	case ".pdf":
		text, err := extractPDF(path)
		if err != nil {
			return nil, err
		}
		return []models.Document{{
			ID:     rel,
			Source: rel,
			Title:  title,
			Text:   text,
		}}, nil

	default:
		return nil, errUnsupported
	}
}
