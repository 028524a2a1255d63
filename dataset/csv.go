package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVOptions controls ReadCSV.
type CSVOptions struct {
	// Label is the header name of the class column. Defaults to "Class".
	Label string
	// Encoding of the input: "utf-8" (default), "gbk" or "gb18030".
	Encoding string
	// Schema, when set, fixes column kinds and categorical levels so that a
	// test file is coded the same way as its training file.
	Schema *Schema
}

func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM.NewDecoder(), nil
	case "gbk":
		return simplifiedchinese.GBK.NewDecoder(), nil
	case "gb18030":
		return simplifiedchinese.GB18030.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", name)
	}
}

// LoadCSV opens path and reads it with ReadCSV.
func LoadCSV(path string, opts CSVOptions) (Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return Frame{}, err
	}
	defer file.Close()
	return ReadCSV(file, opts)
}

// ReadCSV reads a headered CSV table. Columns whose every value parses as a
// number are numeric; the others are categorical with sorted levels, unless
// opts.Schema says otherwise.
func ReadCSV(r io.Reader, opts CSVOptions) (Frame, error) {
	if opts.Label == "" {
		opts.Label = "Class"
	}
	dec, err := decoderFor(opts.Encoding)
	if err != nil {
		return Frame{}, err
	}
	reader := csv.NewReader(transform.NewReader(r, dec))
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return Frame{}, fmt.Errorf("read csv: %w", err)
	}
	if len(records) < 2 {
		return Frame{}, ErrEmpty
	}

	header := records[0]
	rows := records[1:]
	labelIdx := -1
	featureIdx := make([]int, 0, len(header))
	for i, name := range header {
		if strings.TrimSpace(name) == opts.Label {
			labelIdx = i
			continue
		}
		featureIdx = append(featureIdx, i)
	}
	if labelIdx < 0 {
		return Frame{}, fmt.Errorf("label column %q not found", opts.Label)
	}

	columns := make([]Column, len(featureIdx))
	for j, ci := range featureIdx {
		name := strings.TrimSpace(header[ci])
		if opts.Schema != nil {
			col, ok := lookupColumn(*opts.Schema, name)
			if !ok {
				return Frame{}, fmt.Errorf("column %q not in schema", name)
			}
			columns[j] = col
			continue
		}
		columns[j] = inferColumn(name, rows, ci)
	}

	levelIndex := make([]map[string]int, len(columns))
	for j, col := range columns {
		if col.Kind != Categorical {
			continue
		}
		levelIndex[j] = make(map[string]int, len(col.Levels))
		for k, level := range col.Levels {
			levelIndex[j][level] = k
		}
	}

	features := make([][]float64, len(rows))
	labels := make([]string, len(rows))
	for i, rec := range rows {
		row := make([]float64, len(columns))
		for j, ci := range featureIdx {
			raw := strings.TrimSpace(rec[ci])
			if columns[j].Kind == Numeric {
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return Frame{}, fmt.Errorf("row %d column %q: %w", i+1, columns[j].Name, err)
				}
				row[j] = v
				continue
			}
			code, ok := levelIndex[j][raw]
			if !ok {
				return Frame{}, fmt.Errorf("row %d column %q: unknown level %q", i+1, columns[j].Name, raw)
			}
			row[j] = float64(code)
		}
		features[i] = row
		labels[i] = strings.TrimSpace(rec[labelIdx])
	}

	return New(Schema{Columns: columns, Label: opts.Label}, features, labels)
}

func lookupColumn(schema Schema, name string) (Column, bool) {
	for _, c := range schema.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func inferColumn(name string, rows [][]string, ci int) Column {
	numeric := true
	seen := make(map[string]struct{})
	for _, rec := range rows {
		raw := strings.TrimSpace(rec[ci])
		seen[raw] = struct{}{}
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			numeric = false
		}
	}
	if numeric {
		return Column{Name: name, Kind: Numeric}
	}
	levels := make([]string, 0, len(seen))
	for level := range seen {
		levels = append(levels, level)
	}
	sort.Strings(levels)
	return Column{Name: name, Kind: Categorical, Levels: levels}
}

// WriteCSV writes f with a header, decoding categorical codes back to levels.
func WriteCSV(w io.Writer, f Frame) error {
	writer := csv.NewWriter(w)
	header := make([]string, 0, f.Schema.Width()+1)
	for _, c := range f.Schema.Columns {
		header = append(header, c.Name)
	}
	label := f.Schema.Label
	if label == "" {
		label = "Class"
	}
	header = append(header, label)
	if err := writer.Write(header); err != nil {
		return err
	}
	for i, row := range f.Features {
		rec := make([]string, 0, len(row)+1)
		for j, v := range row {
			col := f.Schema.Columns[j]
			if col.Kind == Categorical {
				rec = append(rec, col.Levels[int(v)])
				continue
			}
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		rec = append(rec, f.Labels[i])
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
