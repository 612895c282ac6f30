package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"creatorlink/internal/domain/entity"
	"creatorlink/internal/domain/repository"
	"creatorlink/pkg/errors"
)

type firestoreCampaignRepository struct {
	client *firestore.Client
}

func NewFirestoreCampaignRepository(client *firestore.Client) repository.CampaignRepository {
	return &firestoreCampaignRepository{
		client: client,
	}
}

func (r *firestoreCampaignRepository) GetByID(ctx context.Context, id string) (*entity.Campaign, error) {
	doc, err := r.client.Collection("campaigns").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Campaign", nil)
		}
		return nil, mapPersistenceError("Failed to get campaign", err)
	}

	var campaign entity.Campaign
	if err := doc.DataTo(&campaign); err != nil {
		return nil, errors.Internal("Failed to parse campaign data", err)
	}
	campaign.ID = doc.Ref.ID

	return &campaign, nil
}
