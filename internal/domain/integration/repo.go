package integration

import (
	"context"
	"errors"
)

var (
	ErrSourceNotFound  = errors.New("external source not found")
	ErrDuplicateSource = errors.New("external source already registered")
)

type SourceRepository interface {
	Create(ctx context.Context, s *Source) error
	GetByName(ctx context.Context, name string) (*Source, error)
	List(ctx context.Context, limit, offset int) ([]*Source, int, error)
	Delete(ctx context.Context, name string) error
}
