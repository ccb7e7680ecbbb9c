// Package export renders a project's memories into portable formats: a
// printable HTML memory book, a re-importable JSON photo book, and CSV
// for spreadsheets.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/timestitch/timestitch/internal/domain"
)

const memoryBookTemplate = `<!DOCTYPE html>
<html>
<head>
<title>{{.ProjectName}} - Memory Book</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
.memory { page-break-before: always; margin-bottom: 40px; }
.memory:first-child { page-break-before: auto; }
.memory-title { font-size: 24px; font-weight: bold; margin-bottom: 10px; }
.memory-date { color: #666; margin-bottom: 15px; }
.memory-description { line-height: 1.6; margin-bottom: 20px; }
.memory-images { display: flex; flex-wrap: wrap; gap: 10px; }
.memory-image { max-width: 200px; max-height: 200px; object-fit: cover; }
.tags { margin-top: 15px; }
.tag { background: #e3f2fd; color: #1976d2; padding: 4px 8px; border-radius: 4px; margin-right: 8px; font-size: 12px; }
</style>
</head>
<body>
<h1>{{.ProjectName}} - Memory Book</h1>
<p>Generated on {{.GeneratedAt}}</p>
{{range .Memories}}<div class="memory">
<div class="memory-title">{{.Title}}</div>
<div class="memory-date">{{.Date.Format "January 2, 2006"}}</div>
<div class="memory-description">{{.Description}}</div>
{{if .ImageURLs}}<div class="memory-images">
{{range .ImageURLs}}<img src="{{.}}" class="memory-image" />
{{end}}</div>
{{end}}{{if .Tags}}<div class="tags">
{{range .Tags}}<span class="tag">#{{.}}</span>
{{end}}</div>
{{end}}</div>
{{end}}</body>
</html>
`

var bookTmpl = template.Must(template.New("memorybook").Parse(memoryBookTemplate))

// MemoryBook writes a printable HTML book of the memories.
func MemoryBook(w io.Writer, projectName string, memories []domain.Memory) error {
	data := struct {
		ProjectName string
		GeneratedAt string
		Memories    []domain.Memory
	}{
		ProjectName: projectName,
		GeneratedAt: time.Now().Format("January 2, 2006"),
		Memories:    memories,
	}
	if err := bookTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render memory book: %w", err)
	}
	return nil
}

// PhotoBook is the JSON export envelope. The memory list round-trips
// through the regular entity encoding so it can be re-imported.
type PhotoBook struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
	Memories    []domain.Memory `json:"memories"`
	Metadata    PhotoBookMeta   `json:"metadata"`
}

// PhotoBookMeta summarizes the exported collection.
type PhotoBookMeta struct {
	TotalMemories int       `json:"totalMemories"`
	TotalImages   int       `json:"totalImages"`
	Earliest      time.Time `json:"earliest,omitzero"`
	Latest        time.Time `json:"latest,omitzero"`
}

// WritePhotoBook writes the JSON photo book for a project.
func WritePhotoBook(w io.Writer, project domain.Project, memories []domain.Memory) error {
	book := PhotoBook{
		Title:       project.Name,
		Description: project.Description,
		CreatedAt:   time.Now().UTC(),
		Memories:    memories,
		Metadata:    summarize(memories),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(book); err != nil {
		return fmt.Errorf("failed to encode photo book: %w", err)
	}
	return nil
}

// ReadPhotoBook parses a previously exported photo book.
func ReadPhotoBook(r io.Reader) (*PhotoBook, error) {
	var book PhotoBook
	if err := json.NewDecoder(r).Decode(&book); err != nil {
		return nil, fmt.Errorf("failed to parse photo book: %w", err)
	}
	return &book, nil
}

// CSV writes one row per memory for spreadsheet analysis.
func CSV(w io.Writer, memories []domain.Memory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Title", "Description", "Date", "Tags", "Image Count", "Is Favorite"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, m := range memories {
		favorite := "No"
		if m.Favorite {
			favorite = "Yes"
		}
		row := []string{
			m.Title,
			m.Description,
			m.Date.Format("2006-01-02"),
			strings.Join(m.Tags, ", "),
			strconv.Itoa(len(m.ImageURLs)),
			favorite,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func summarize(memories []domain.Memory) PhotoBookMeta {
	meta := PhotoBookMeta{TotalMemories: len(memories)}
	for _, m := range memories {
		meta.TotalImages += len(m.ImageURLs)
		if meta.Earliest.IsZero() || m.Date.Before(meta.Earliest) {
			meta.Earliest = m.Date
		}
		if m.Date.After(meta.Latest) {
			meta.Latest = m.Date
		}
	}
	return meta
}
