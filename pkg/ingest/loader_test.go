package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cinevec/cinevec/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "Plain text about films.")
	writeFile(t, dir, "sub/readme.md", "# Markdown\n\nMore notes.")
	writeFile(t, dir, ".hidden.txt", "should not load")
	writeFile(t, dir, "image.bin", "binary junk")
	writeFile(t, dir, ".git/config", "[core]")

	loader := NewLoader(zap.NewNop())
	docs, stats, err := loader.LoadDir(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.Skipped, "hidden file and unsupported extension")
	assert.Equal(t, 0, stats.Errors)
	require.Len(t, docs, 2)

	byID := make(map[string]models.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	notes, ok := byID["notes.txt"]
	require.True(t, ok)
	assert.Equal(t, "notes", notes.Title)
	assert.Equal(t, "notes.txt", notes.Source)
	assert.Equal(t, "Plain text about films.", notes.Text)

	readme, ok := byID["sub/readme.md"]
	require.True(t, ok)
	assert.Equal(t, "readme", readme.Title)
}

func TestLoadDirCountsErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.pdf", "not a pdf at all")
	writeFile(t, dir, "fine.txt", "works")

	loader := NewLoader(zap.NewNop())
	docs, stats, err := loader.LoadDir(dir)
	require.NoError(t, err, "one bad file must not abort the walk")

	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Errors)
	require.Len(t, docs, 1)
	assert.Equal(t, "fine.txt", docs[0].ID)
}

func TestLoadDirHTML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page.html", `<html>
<head><title>Festival Guide</title><style>body { color: red }</style></head>
<body>
  <nav>menu menu menu</nav>
  <main><p>Screenings   run
  all week.</p><script>var x = 1;</script></main>
</body></html>`)

	loader := NewLoader(zap.NewNop())
	docs, _, err := loader.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, "Festival Guide", docs[0].Title)
	assert.Equal(t, "Screenings run all week.", docs[0].Text)
	assert.NotContains(t, docs[0].Text, "menu")
	assert.NotContains(t, docs[0].Text, "var x")
}

const catalogFixture = `id,title,overview,genres,tagline,vote_average,release_date,runtime,adult
603,The Matrix,A hacker discovers reality is a simulation.,"[{'id': 28, 'name': 'Action'}, {'id': 878, 'name': 'Science Fiction'}]",Welcome to the Real World.,8.2,1999-03-30,136.0,False
604,No Overview,,[],,5.0,2000-01-01,90.0,False
605,Adult Film,Something explicit.,[],,6.0,2001-01-01,80.0,True
,Untitled Id,Row without an id still loads.,[],,0,,,False
`

func TestLoadDirCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "movies.csv", catalogFixture)

	loader := NewLoader(zap.NewNop())
	docs, stats, err := loader.LoadDir(dir)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Files)
	require.Len(t, docs, 2, "adult row and row without overview are dropped")

	matrix := docs[0]
	assert.Equal(t, "603", matrix.ID)
	assert.Equal(t, "movies.csv", matrix.Source)
	assert.Equal(t, "The Matrix", matrix.Title)
	assert.Equal(t, "A hacker discovers reality is a simulation.", matrix.Description)
	assert.Equal(t, "Action, Science Fiction", matrix.Tags)
	assert.Equal(t, 8.2, matrix.Rating)
	assert.Equal(t, "1999-03-30", matrix.ReleaseDate)
	assert.Equal(t, 136, matrix.Runtime)
	assert.Equal(t,
		"Title: The Matrix\nGenres: Action, Science Fiction\nPlot: A hacker discovers reality is a simulation.\nTagline: Welcome to the Real World.",
		matrix.Text)

	generated := docs[1]
	assert.NotEmpty(t, generated.ID, "missing id gets a generated one")
	assert.Equal(t, "Untitled Id", generated.Title)
}

func TestLoadCSVWithoutTitleColumn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data.csv", "a,b,c\n1,2,3\n")

	loader := NewLoader(zap.NewNop())
	docs, stats, err := loader.LoadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, 1, stats.Errors)
}

func TestParseGenres(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: "", want: ""},
		{name: "empty list", raw: "[]", want: ""},
		{
			name: "single quoted objects",
			raw:  "[{'id': 16, 'name': 'Animation'}, {'id': 35, 'name': 'Comedy'}]",
			want: "Animation, Comedy",
		},
		{name: "not json", raw: "Action|Comedy", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseGenres(tt.raw))
		})
	}
}

func TestCombinedText(t *testing.T) {
	full := combinedText("Spirited Away", "Animation, Fantasy", "A girl enters the spirit world.", "The tunnel led to a strange town.")
	assert.Equal(t,
		"Title: Spirited Away\nGenres: Animation, Fantasy\nPlot: A girl enters the spirit world.\nTagline: The tunnel led to a strange town.",
		full)

	bare := combinedText("Spirited Away", "", "A girl enters the spirit world.", "")
	assert.Equal(t, "Title: Spirited Away\nPlot: A girl enters the spirit world.", bare)
}
