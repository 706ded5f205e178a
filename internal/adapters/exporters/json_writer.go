package exporters

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/terratensor/geonorm/internal/core/ports"
)

// JSONWriter пишет записи потоком в один JSON массив
type JSONWriter struct {
	buf     *bufio.Writer
	options ports.ExportOptions
	count   int
}

func NewJSONWriter(w io.Writer, options ports.ExportOptions) (*JSONWriter, error) {
	return &JSONWriter{
		buf:     bufio.NewWriter(w),
		options: options,
	}, nil
}

// WriteHeader открывает массив, колонки в JSON не нужны
func (w *JSONWriter) WriteHeader(_ []string) error {
	_, err := w.buf.WriteString("[")
	return err
}

func (w *JSONWriter) WriteRecord(record map[string]interface{}) error {
	var data []byte
	var err error
	if w.options.PrettyPrint {
		data, err = json.MarshalIndent(record, "  ", "  ")
	} else {
		data, err = json.Marshal(record)
	}
	if err != nil {
		return err
	}

	sep := ","
	if w.count == 0 {
		sep = ""
	}
	if w.options.PrettyPrint {
		sep += "\n  "
	}
	if _, err := w.buf.WriteString(sep); err != nil {
		return err
	}
	if _, err := w.buf.Write(data); err != nil {
		return err
	}
	w.count++
	return nil
}

func (w *JSONWriter) Close() error {
	end := "]\n"
	if w.options.PrettyPrint && w.count > 0 {
		end = "\n]\n"
	}
	if _, err := w.buf.WriteString(end); err != nil {
		return err
	}
	return w.buf.Flush()
}
