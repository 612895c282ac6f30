package repository

import (
	"context"

	"creatorlink/internal/domain/entity"
)

// CampaignRepository is the campaign lookup consumed from the campaign
// service. The messaging core only reads ownership and the applied set.
type CampaignRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Campaign, error)
}
