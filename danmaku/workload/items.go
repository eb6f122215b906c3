// Package workload loads, writes and synthesizes comment files for the engine.
//
// Three formats are read, chosen by file extension:
//   - .yaml/.yml: a File document with a version and an items list
//   - .json: either a File object or a bare array of entries
//   - .csv: a header row followed by time,kind,text[,reuse_id,forced,id]
//
// Entries without an id get a random UUID.
package workload

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
)

// FileVersion is the current item file version.
const FileVersion = 1

// Entry is one comment plus the submission flag the engine API carries
// separately from the item.
type Entry struct {
	danmaku.Item `yaml:",inline"`
	Forced       bool `yaml:"forced,omitempty" json:"forced,omitempty"`
}

// File is the YAML/JSON document layout.
type File struct {
	Version int     `yaml:"version" json:"version"`
	Items   []Entry `yaml:"items" json:"items"`
}

var csvColumns = []string{"time", "kind", "text", "reuse_id", "forced", "id"}

// Load reads entries from path, dispatching on the extension.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading item file: %w", err)
	}
	var entries []Entry
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		entries, err = parseYAML(data)
	case ".json":
		entries, err = parseJSON(data)
	case ".csv":
		entries, err = ReadCSV(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported item file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := normalize(entries); err != nil {
		return nil, fmt.Errorf("invalid items in %s: %w", path, err)
	}
	return entries, nil
}

func parseYAML(data []byte) ([]Entry, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if f.Version > FileVersion {
		return nil, fmt.Errorf("item file version %d is newer than supported version %d", f.Version, FileVersion)
	}
	return f.Items, nil
}

func parseJSON(data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var entries []Entry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}
	var f File
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil, err
	}
	if f.Version > FileVersion {
		return nil, fmt.Errorf("item file version %d is newer than supported version %d", f.Version, FileVersion)
	}
	return f.Items, nil
}

// ReadCSV parses CSV rows. The header row names the columns; time, kind and
// text are required, the rest optional and in any order.
func ReadCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"time", "kind", "text"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("CSV header missing column %q", required)
		}
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var entries []Entry
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row %d: %w", line, err)
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(field(row, "time")), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing time: %w", line, err)
		}
		kind, err := danmaku.ParseKind(field(row, "kind"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		var forced bool
		if s := strings.TrimSpace(field(row, "forced")); s != "" {
			forced, err = strconv.ParseBool(s)
			if err != nil {
				return nil, fmt.Errorf("row %d: parsing forced: %w", line, err)
			}
		}
		entries = append(entries, Entry{
			Item: danmaku.Item{
				ID:      field(row, "id"),
				Time:    t,
				Kind:    kind,
				Text:    field(row, "text"),
				ReuseID: field(row, "reuse_id"),
			},
			Forced: forced,
		})
	}
	return entries, nil
}

// normalize fills missing ids and rejects negative times.
func normalize(entries []Entry) error {
	for i := range entries {
		if entries[i].Time < 0 {
			return fmt.Errorf("item %d: time must be non-negative, got %f", i, entries[i].Time)
		}
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
	}
	return nil
}

// Export writes entries as CSV. Times use the shortest exact representation.
func Export(path string, entries []Entry) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating item file: %w", err)
	}
	defer func() { _ = file.Close() }()
	if err := WriteCSV(file, entries); err != nil {
		return err
	}
	return file.Close()
}

// WriteCSV writes the header row and one row per entry.
func WriteCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i, e := range entries {
		row := []string{
			strconv.FormatFloat(e.Time, 'f', -1, 64),
			e.Kind.String(),
			e.Text,
			e.ReuseID,
			strconv.FormatBool(e.Forced),
			e.ID,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

// Split separates entries into items for LoadItems and items for a forced
// Submit. Returned items point into entries.
func Split(entries []Entry) (scheduled, forced []*danmaku.Item) {
	for i := range entries {
		if entries[i].Forced {
			forced = append(forced, &entries[i].Item)
		} else {
			scheduled = append(scheduled, &entries[i].Item)
		}
	}
	return scheduled, forced
}
