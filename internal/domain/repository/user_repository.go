package repository

import (
	"context"

	"creatorlink/internal/domain/entity"
)

// UserRepository is the identity lookup consumed from the account service.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}
