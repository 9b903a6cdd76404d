// package formatter renders weekly release reports as columnified text, CSV, and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/freshcut/internal/releases"
	"github.com/desertthunder/freshcut/internal/services"
	"github.com/desertthunder/freshcut/internal/shared"
)

const dateLayout = "2006-01-02"

// SummaryTable renders albums as fixed-width columns: NAME, ARTISTS,
// POPULARITY, RELEASED. Column widths grow to fit the widest cell.
func SummaryTable(albums []services.Album) string {
	headers := []string{"NAME", "ARTISTS", "POPULARITY", "RELEASED"}

	rows := make([][]string, 0, len(albums))
	for _, album := range albums {
		rows = append(rows, []string{
			album.Name,
			strings.Join(album.Artists, ", "),
			strconv.Itoa(album.Popularity),
			formatDate(album.ReleaseDate),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var buf bytes.Buffer
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				buf.WriteString("  ")
			}
			buf.WriteString(cell)
			// Trailing padding is trimmed from the last column.
			if i < len(cells)-1 {
				buf.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
			}
		}
		buf.WriteString("\n")
	}

	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}

	return buf.String()
}

// RenderReport writes the full weekly report: an albums section and a
// singles section, each with a count header and a summary table.
func RenderReport(w io.Writer, ranked releases.Ranked) error {
	sections := []struct {
		title  string
		albums []services.Album
	}{
		{title: "Albums", albums: ranked.Albums},
		{title: "Singles", albums: ranked.Singles},
	}

	for _, section := range sections {
		if _, err := fmt.Fprintf(w, "%s (%d)\n", section.title, len(section.albums)); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		if len(section.albums) == 0 {
			continue
		}
		if _, err := io.WriteString(w, SummaryTable(section.albums)); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	return nil
}

// ExportToCSV converts albums to CSV with columns: ID, Name, Artists, Type, Popularity, ReleaseDate
func ExportToCSV(albums []services.Album) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Artists", "Type", "Popularity", "ReleaseDate"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, album := range albums {
		record := []string{
			album.ID,
			album.Name,
			strings.Join(album.Artists, "; "),
			album.AlbumType,
			strconv.Itoa(album.Popularity),
			formatDate(album.ReleaseDate),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a ranked selection to indented JSON.
func ExportToJSON(ranked releases.Ranked) ([]byte, error) {
	return shared.MarshalJSON(ranked, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	AlbumsFile  string
	SinglesFile string
}

// WriteCSVExport writes the ranked selection as two CSV files,
// {base}_albums.csv and {base}_singles.csv. Base defaults to "releases".
func WriteCSVExport(ranked releases.Ranked, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = "releases"
	}

	result := &CSVExportResult{
		AlbumsFile:  baseFilepath + "_albums.csv",
		SinglesFile: baseFilepath + "_singles.csv",
	}

	files := []struct {
		path   string
		albums []services.Album
	}{
		{path: result.AlbumsFile, albums: ranked.Albums},
		{path: result.SinglesFile, albums: ranked.Singles},
	}

	for _, file := range files {
		data, err := ExportToCSV(file.albums)
		if err != nil {
			return nil, fmt.Errorf("failed to generate CSV: %w", err)
		}
		if err := os.WriteFile(file.path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write CSV file: %w", err)
		}
	}

	return result, nil
}

// WriteJSONExport writes the ranked selection as a single JSON file.
//
// Defaults to releases.json as the filename.
func WriteJSONExport(ranked releases.Ranked, filepath string) (string, error) {
	if filepath == "" {
		filepath = "releases.json"
	}

	data, err := ExportToJSON(ranked)
	if err != nil {
		return "", fmt.Errorf("failed to generate JSON: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write JSON file: %w", err)
	}

	return filepath, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format(dateLayout)
}
