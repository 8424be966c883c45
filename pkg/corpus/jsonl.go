package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/memorag/pkg/errdefs"
)

const (
	// ContentsField is the free-text field read from corpus records.
	ContentsField = "contents"

	// QueryField is the free-text field read from query records.
	QueryField = "query"

	// AnswerField is added to every output record.
	AnswerField = "generated_answer"

	// ErrorField is added to output records that failed under skip-and-report.
	ErrorField = "error"

	// ResultExt is the only extension accepted for batch output files.
	ResultExt = ".jsonl"
)

// maxLine bounds a single JSONL record; corpora routinely carry whole
// documents per line.
const maxLine = 64 << 20

// ReadRecords reads the corpus records at path. JSON Lines files contribute
// their "contents" field per line; .txt and .md files are a single record.
func ReadRecords(path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading corpus %s: %w", path, err)
		}
		return []string{string(data)}, nil

	case ".jsonl", ".ndjson":
		rows, err := readJSONL(path)
		if err != nil {
			return nil, err
		}
		records := make([]string, len(rows))
		for i, row := range rows {
			text, ok := row[ContentsField].(string)
			if !ok {
				return nil, errdefs.InvalidArgument("%s line %d: missing string field %q", path, i+1, ContentsField)
			}
			records[i] = text
		}
		return records, nil

	default:
		return nil, errdefs.InvalidArgument("unsupported corpus format %q (want .jsonl, .txt or .md)", filepath.Ext(path))
	}
}

// QueryRecord is one row of a query file. Fields keeps every column of the
// input so the output can be written back aligned with it.
type QueryRecord struct {
	Query  string
	Fields map[string]any
}

// ReadQueries reads a JSON Lines query file.
func ReadQueries(path string) ([]QueryRecord, error) {
	rows, err := readJSONL(path)
	if err != nil {
		return nil, err
	}
	out := make([]QueryRecord, len(rows))
	for i, row := range rows {
		q, ok := row[QueryField].(string)
		if !ok {
			return nil, errdefs.InvalidArgument("%s line %d: missing string field %q", path, i+1, QueryField)
		}
		out[i] = QueryRecord{Query: q, Fields: row}
	}
	return out, nil
}

// ValidateResultPath rejects output paths without the required extension.
func ValidateResultPath(path string) error {
	if path == "" {
		return errdefs.InvalidArgument("output path is required")
	}
	if !strings.HasSuffix(path, ResultExt) {
		return errdefs.InvalidArgument("output path %q must end with %s", path, ResultExt)
	}
	return nil
}

// Result pairs a query record with its outcome.
type Result struct {
	Record QueryRecord
	Answer string
	Err    error
}

// WriteResults writes one output line per result, in order.
func WriteResults(path string, results []Result) error {
	if err := ValidateResultPath(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := EncodeResults(w, results); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// EncodeResults writes results as JSON Lines to w.
func EncodeResults(w io.Writer, results []Result) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, r := range results {
		row := make(map[string]any, len(r.Record.Fields)+2)
		for k, v := range r.Record.Fields {
			row[k] = v
		}
		row[QueryField] = r.Record.Query
		row[AnswerField] = r.Answer
		if r.Err != nil {
			row[ErrorField] = r.Err.Error()
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encoding result %d: %w", i, err)
		}
	}
	return nil
}

func readJSONL(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var rows []map[string]any
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<20), maxLine)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			return nil, errdefs.InvalidArgument("%s line %d: %v", path, line, err)
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}
