package exporters

import (
	"context"
	"fmt"
	"sort"

	"github.com/terratensor/geonorm/internal/core/domain"
	"github.com/terratensor/geonorm/internal/core/ports"
	"go.uber.org/zap"
)

// FileSink сохраняет аннотированные объявления в JSON или CSV файл
type FileSink struct {
	factory *WriterFactory
	options ports.ExportOptions
	logger  *zap.Logger
}

func NewFileSink(options ports.ExportOptions, logger *zap.Logger) *FileSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSink{
		factory: NewWriterFactory(),
		options: options,
		logger:  logger,
	}
}

func (s *FileSink) Name() string {
	return "file"
}

// Path путь выходного файла
func (s *FileSink) Path() string {
	return s.options.FilePath
}

func (s *FileSink) Write(ctx context.Context, listings []*domain.Listing) error {
	writer, err := s.factory.CreateFileWriter(s.options.FilePath, s.options)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}

	if err := writer.WriteHeader(Columns(listings)); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, l := range listings {
		if err := ctx.Err(); err != nil {
			writer.Close()
			return err
		}
		if err := writer.WriteRecord(l.ToMap()); err != nil {
			writer.Close()
			return fmt.Errorf("failed to write record at %d: %w", i, err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	s.logger.Info("listings exported",
		zap.String("file", s.options.FilePath),
		zap.String("format", string(s.options.Format)),
		zap.Int("count", len(listings)),
	)
	return nil
}

func (s *FileSink) Close() error {
	return nil
}

// Columns колонки движка и затем дополнительные поля записей по алфавиту
func Columns(listings []*domain.Listing) []string {
	base := make(map[string]bool, len(domain.Columns))
	for _, c := range domain.Columns {
		base[c] = true
	}

	extra := make(map[string]bool)
	for _, l := range listings {
		for k := range l.Extra {
			if !base[k] {
				extra[k] = true
			}
		}
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return append(append([]string(nil), domain.Columns...), keys...)
}
