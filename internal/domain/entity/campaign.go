package entity

import "time"

// Campaign is read-only from the messaging core's point of view. Posting,
// editing and applying are handled by the campaign service; the core only
// checks ownership and the applied set before opening a conversation.
type Campaign struct {
	ID              string               `json:"id" firestore:"id"`
	BrandID         string               `json:"brand_id" firestore:"brandId"`
	Name            string               `json:"name" firestore:"name"`
	AppliedCreators map[string]time.Time `json:"applied_creators" firestore:"appliedCreators"` // creatorID -> appliedAt
	CreatedAt       time.Time            `json:"created_at" firestore:"createdAt"`
	UpdatedAt       time.Time            `json:"updated_at" firestore:"updatedAt"`
}

// HasApplicant reports whether the creator has applied to this campaign.
func (c *Campaign) HasApplicant(creatorID string) bool {
	_, ok := c.AppliedCreators[creatorID]
	return ok
}
