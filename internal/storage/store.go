// Package storage keeps completed runs on disk: metadata as JSON and the
// result table as CSV, one directory per run.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/fmuexplore/internal/engine"
)

const (
	metadataFile = "metadata.json"
	tableFile    = "table.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Session    string             `json:"session"`
	Model      string             `json:"model"`
	Timestamp  time.Time          `json:"timestamp"`
	Mode       string             `json:"mode"`
	Start      float64            `json:"start"`
	Stop       float64            `json:"stop"`
	Integrator string             `json:"integrator"`
	Intervals  int                `json:"intervals"`
	Layout     string             `json:"layout,omitempty"`
	Samples    int                `json:"samples"`
	Parameters map[string]any     `json:"parameters"`
	FinalState map[string]float64 `json:"final_state"`
}

// Save writes meta and tab under a new run id and returns the id.
func (s *Store) Save(meta RunMetadata, tab *engine.Table) (string, error) {
	if tab.Empty() {
		return "", fmt.Errorf("storage: refusing to save an empty table")
	}
	meta.ID = fmt.Sprintf("%s_%s", meta.Model, uuid.NewString()[:8])
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.Samples = tab.Len()

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, tableFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, tab); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// WriteCSV writes the time column followed by every series in name order.
func WriteCSV(out io.Writer, tab *engine.Table) error {
	w := csv.NewWriter(out)
	names := tab.Names()
	if err := w.Write(append([]string{engine.TimeName}, names...)); err != nil {
		return err
	}

	cols := make([][]float64, len(names))
	for i, n := range names {
		cols[i], _ = tab.Series(n)
	}
	row := make([]string, len(names)+1)
	for i, t := range tab.Time {
		row[0] = strconv.FormatFloat(t, 'g', -1, 64)
		for j, c := range cols {
			row[j+1] = strconv.FormatFloat(c[i], 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadTable reads the result table of a run back.
func (s *Store) LoadTable(runID string) (*engine.Table, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, tableFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || len(records[0]) == 0 || records[0][0] != engine.TimeName {
		return nil, fmt.Errorf("storage: %s: table has no time column", runID)
	}

	header := records[0]
	tab := engine.NewTable(header[1:], len(records)-1)
	for i, rec := range records[1:] {
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, fmt.Errorf("storage: %s: row %d: %w", runID, i+1, err)
		}
		values := make(map[string]float64, len(header)-1)
		for j, name := range header[1:] {
			v, err := strconv.ParseFloat(rec[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("storage: %s: row %d, %s: %w", runID, i+1, name, err)
			}
			values[name] = v
		}
		if err := tab.Append(t, values); err != nil {
			return nil, fmt.Errorf("storage: %s: %w", runID, err)
		}
	}
	return tab, nil
}
