package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cinevec/cinevec/internal/models"
)

// loadCSV reads a movie catalog export. Columns are located by header name,
// so column order does not matter. Rows flagged adult and rows missing a
// title or overview are dropped; malformed rows are skipped with a log line.
func (l *Loader) loadCSV(path, rel string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["title"]; !ok {
		return nil, fmt.Errorf("csv %s has no title column", rel)
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var docs []models.Document
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			l.logger.Debug("skipping malformed csv row",
				zap.String("path", path), zap.Int("line", line), zap.Error(err))
			continue
		}

		if strings.EqualFold(field(record, "adult"), "true") {
			continue
		}
		title := field(record, "title")
		overview := field(record, "overview")
		if title == "" || overview == "" {
			continue
		}

		id := field(record, "id")
		if id == "" {
			id = uuid.NewString()
		}

		genres := parseGenres(field(record, "genres"))
		rating, _ := strconv.ParseFloat(field(record, "vote_average"), 64)
		runtime, _ := strconv.ParseFloat(field(record, "runtime"), 64)

		docs = append(docs, models.Document{
			ID:          id,
			Source:      rel,
			Title:       title,
			Description: overview,
			Tags:        genres,
			Rating:      rating,
			ReleaseDate: field(record, "release_date"),
			Runtime:     int(runtime),
			Text:        combinedText(title, genres, overview, field(record, "tagline")),
		})
	}

	return docs, nil
}

type genreEntry struct {
	Name string `json:"name"`
}

// parseGenres decodes the TMDB genres column, a JSON-ish list of objects
// written with single quotes, into a comma separated name list.
func parseGenres(raw string) string {
	if raw == "" || raw == "[]" {
		return ""
	}

	var entries []genreEntry
	if err := json.Unmarshal([]byte(strings.ReplaceAll(raw, "'", `"`)), &entries); err != nil {
		return ""
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name != "" {
			names = append(names, e.Name)
		}
	}
	return strings.Join(names, ", ")
}

// combinedText is the embeddable rendering of one catalog row. The tagline
// only lives here, not in its own column.
func combinedText(title, genres, overview, tagline string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", title)
	if genres != "" {
		fmt.Fprintf(&b, "Genres: %s\n", genres)
	}
	fmt.Fprintf(&b, "Plot: %s", overview)
	if tagline != "" {
		fmt.Fprintf(&b, "\nTagline: %s", tagline)
	}
	return b.String()
}
