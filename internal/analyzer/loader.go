// Package analyzer loads museum/collections metadata exports and summarizes
// how each field is used across the dataset, producing the key records the
// classification state machine consumes.
package analyzer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Record is one item from the source API: arbitrary keys, heterogeneous
// values.
type Record map[string]any

// Loader reads dataset files. JSON arrays, JSONL and Parquet are supported;
// museum APIs hand out the first two, bulk exports tend to be Parquet.
type Loader struct {
	datasetPath string
}

// NewLoader creates a loader for the given file.
func NewLoader(datasetPath string) *Loader {
	return &Loader{datasetPath: datasetPath}
}

// Load reads every record from the dataset file, detecting the format from
// the extension.
func (l *Loader) Load() ([]Record, error) {
	ext := strings.ToLower(filepath.Ext(l.datasetPath))
	switch ext {
	case ".parquet":
		return l.loadParquet()
	case ".jsonl", ".ndjson":
		return l.loadJSONL()
	case ".json":
		return l.loadJSON()
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .json, .jsonl, .parquet)", ext)
	}
}

func (l *Loader) loadJSON() ([]Record, error) {
	data, err := os.ReadFile(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}
	slog.Debug("Loaded JSON dataset", "path", l.datasetPath, "records", len(records))
	return records, nil
}

func (l *Loader) loadJSONL() ([]Record, error) {
	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)

	// large items: generous per-line buffer
	const maxCapacity = 10 * 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading dataset: %w", err)
	}
	slog.Debug("Loaded JSONL dataset", "path", l.datasetPath, "records", len(records))
	return records, nil
}

func (l *Loader) loadParquet() ([]Record, error) {
	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}
	slog.Debug("Opened parquet dataset", "path", l.datasetPath, "rows", pf.NumRows())

	schema := pf.Schema()
	columns := schema.Columns()

	var records []Record
	for _, rowGroup := range pf.RowGroups() {
		rows := rowGroup.Rows()
		buf := make([]parquet.Row, 128)
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				records = append(records, rowToRecord(row, columns))
			}
			if err != nil {
				break
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("failed to close row reader: %w", err)
		}
	}
	return records, nil
}

// rowToRecord flattens one parquet row into a Record keyed by the leaf
// column's top-level name. Repeated columns accumulate into slices.
func rowToRecord(row parquet.Row, columns [][]string) Record {
	record := make(Record)
	for _, value := range row {
		col := value.Column()
		if col < 0 || col >= len(columns) || len(columns[col]) == 0 {
			continue
		}
		key := columns[col][0]
		v := parquetValue(value)
		if v == nil {
			continue
		}
		if existing, ok := record[key]; ok {
			if list, isList := existing.([]any); isList {
				record[key] = append(list, v)
			} else {
				record[key] = []any{existing, v}
			}
		} else {
			record[key] = v
		}
	}
	return record
}

func parquetValue(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return float64(v.Int32())
	case parquet.Int64:
		return float64(v.Int64())
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	default:
		return v.String()
	}
}
