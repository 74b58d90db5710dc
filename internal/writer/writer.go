package writer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-scripts/reviewscrape/pkg/common"
	"github.com/go-scripts/reviewscrape/pkg/extract"
)

// Header of the review table
var Header = []string{"rating", "review"}

// FileWriter persists snapshots and review tables
type FileWriter struct {
	outputDir string
}

// New creates a new FileWriter rooted at outputDir. Relative paths given to
// its methods are resolved against it.
func New(outputDir string) (*FileWriter, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileWriter{outputDir: outputDir}, nil
}

func (w *FileWriter) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(w.outputDir, name)
}

func (w *FileWriter) create(name string) (*os.File, error) {
	p := w.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", p, err)
	}
	file, err := os.Create(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return file, nil
}

// Create opens name for writing, creating parent directories. It returns
// the resolved path.
func (w *FileWriter) Create(name string) (*os.File, string, error) {
	file, err := w.create(name)
	if err != nil {
		return nil, "", err
	}
	return file, file.Name(), nil
}

// WriteSnapshot writes the page markup as UTF-8 text
func (w *FileWriter) WriteSnapshot(name string, snap common.Snapshot) (string, error) {
	p := w.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", p, err)
	}
	if err := os.WriteFile(p, []byte(snap.Markup), 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return p, nil
}

// ReadSnapshot loads markup written by WriteSnapshot
func (w *FileWriter) ReadSnapshot(name string) (common.Snapshot, error) {
	p := w.path(name)
	data, err := os.ReadFile(p)
	if err != nil {
		return common.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	snap := common.Snapshot{Markup: string(data)}
	if info, err := os.Stat(p); err == nil {
		snap.CapturedAt = info.ModTime()
	}
	return snap, nil
}

// WriteTable writes the reviews as CSV with header rating,review. Absent
// fields are written as empty fields.
func (w *FileWriter) WriteTable(name string, reviews []common.Review) (string, error) {
	file, err := w.create(name)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := EncodeCSV(file, reviews); err != nil {
		return "", fmt.Errorf("failed to encode table: %w", err)
	}
	return file.Name(), file.Close()
}

// WriteJSON writes the reviews as a JSON array with null for absent fields
func (w *FileWriter) WriteJSON(name string, reviews []common.Review) (string, error) {
	file, err := w.create(name)
	if err != nil {
		return "", err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(reviews); err != nil {
		return "", fmt.Errorf("failed to encode reviews: %w", err)
	}
	return file.Name(), file.Close()
}

// ReadTable loads a table written by WriteTable
func (w *FileWriter) ReadTable(name string) ([]common.Review, error) {
	file, err := os.Open(w.path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer file.Close()

	return DecodeCSV(file)
}

// EncodeCSV writes the review table to out
func EncodeCSV(out io.Writer, reviews []common.Review) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range reviews {
		rating := ""
		if r.Rating != nil {
			rating = strconv.Itoa(*r.Rating)
		}
		if err := cw.Write([]string{rating, r.TextValue()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeCSV reads a review table. Empty fields become absent values.
func DecodeCSV(in io.Reader) ([]common.Review, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("table is empty, expected header rating,review")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if header[0] != Header[0] || header[1] != Header[1] {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	reviews := make([]common.Review, 0)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(reviews)+1, err)
		}

		r := common.Review{Position: len(reviews)}
		if record[0] != "" {
			v, err := decodeRating(record[0])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", len(reviews)+1, err)
			}
			r.Rating = v
		}
		if record[1] != "" {
			r.Text = common.StringPtr(record[1])
		}
		reviews = append(reviews, r)
	}
	return reviews, nil
}

// decodeRating accepts the 1..10 range, also in the "10.0" form pandas
// writes once a column holds NaN. NaN itself is an absent rating.
func decodeRating(s string) (*int, error) {
	if strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, ok := extract.ParseRating(strings.TrimSuffix(s, ".0"))
	if !ok {
		return nil, fmt.Errorf("invalid rating %q, want a whole number from 1 to 10", s)
	}
	return common.IntPtr(v), nil
}
