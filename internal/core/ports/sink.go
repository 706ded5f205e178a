package ports

import (
	"context"

	"github.com/terratensor/geonorm/internal/core/domain"
)

// ListingSink принимает аннотированные объявления после обработки
type ListingSink interface {
	Name() string
	Write(ctx context.Context, listings []*domain.Listing) error
	Close() error
}
