package exporters

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/terratensor/geonorm/internal/core/ports"
)

// CSVWriter пишет записи в порядке колонок из заголовка
type CSVWriter struct {
	writer  *csv.Writer
	options ports.ExportOptions
	columns []string
}

func NewCSVWriter(w io.Writer, options ports.ExportOptions) (*CSVWriter, error) {
	csvWriter := csv.NewWriter(w)
	if options.Delimiter != 0 {
		csvWriter.Comma = options.Delimiter
	} else {
		csvWriter.Comma = ',' // default
	}

	return &CSVWriter{
		writer:  csvWriter,
		options: options,
	}, nil
}

// WriteHeader запоминает порядок колонок, заголовок пишется по IncludeHeader
func (w *CSVWriter) WriteHeader(columns []string) error {
	w.columns = append([]string(nil), columns...)
	if !w.options.IncludeHeader {
		return nil
	}
	return w.writer.Write(columns)
}

func (w *CSVWriter) WriteRecord(record map[string]interface{}) error {
	if w.columns == nil {
		return fmt.Errorf("csv writer: header not written")
	}

	row := make([]string, len(w.columns))
	for i, col := range w.columns {
		row[i] = formatValue(record[col])
	}
	return w.writer.Write(row)
}

func (w *CSVWriter) Close() error {
	w.writer.Flush()
	return w.writer.Error()
}

// formatValue приводит значение к строке ячейки. nil даёт пустую ячейку.
func formatValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}
