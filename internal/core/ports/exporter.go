package ports

import "io"

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

type ExportOptions struct {
	Format        ExportFormat
	FilePath      string
	IncludeHeader bool
	Delimiter     rune // для CSV
	PrettyPrint   bool // для JSON
}

// Writer interface for different formats
type RecordWriter interface {
	WriteHeader(columns []string) error
	WriteRecord(record map[string]interface{}) error
	Close() error
}

// Factory for creating writers
type WriterFactory interface {
	CreateWriter(w io.Writer, options ExportOptions) (RecordWriter, error)
}
