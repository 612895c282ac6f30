package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"creatorlink/internal/usecase"
	"creatorlink/pkg/errors"
	"creatorlink/pkg/response"
	"creatorlink/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type initiateConversationRequest struct {
	CampaignID   string `json:"campaign_id" validate:"required"`
	CreatorID    string `json:"creator_id" validate:"required"`
	FirstMessage string `json:"first_message"`
}

type offerPayloadRequest struct {
	Amount      float64    `json:"amount" validate:"required,gt=0"`
	Currency    string     `json:"currency" validate:"required"`
	Description string     `json:"description"`
	Deadline    *time.Time `json:"deadline"`
}

type sendMessageRequest struct {
	Content string               `json:"content" validate:"required"`
	Kind    string               `json:"kind" validate:"omitempty,oneof=text offer"`
	Offer   *offerPayloadRequest `json:"offer"`
}

type updateStatusRequest struct {
	RecruitmentStatus string `json:"recruitment_status" validate:"omitempty,oneof=discussing offer_sent accepted declined completed"`
	ConnectionStatus  string `json:"connection_status" validate:"omitempty,oneof=active archived blocked"`
}

// InitiateConversation opens (or returns) the conversation for a campaign
// and an applied creator.
func (h *ChatHandler) InitiateConversation(c echo.Context) error {
	var req initiateConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	conversation, err := h.chatUseCase.InitiateConversation(c.Request().Context(), userID, usecase.InitiateConversationInput{
		CampaignID:   req.CampaignID,
		CreatorID:    req.CreatorID,
		FirstMessage: req.FirstMessage,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, conversation)
}

// ListConversations returns the authenticated user's inbox.
func (h *ChatHandler) ListConversations(c echo.Context) error {
	userID := c.Get("uid").(string)
	params := utils.GetPaginationParams(c)
	status := c.QueryParam("status")

	conversations, total, err := h.chatUseCase.ListConversations(c.Request().Context(), userID, status, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, conversations, total, params.Page, params.PageSize)
}

func (h *ChatHandler) GetConversation(c echo.Context) error {
	conversationID := c.Param("id")
	userID := c.Get("uid").(string)

	conversation, err := h.chatUseCase.GetConversation(c.Request().Context(), userID, conversationID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conversation)
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	conversationID := c.Param("id")
	userID := c.Get("uid").(string)

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	input := usecase.SendMessageInput{
		ConversationID: conversationID,
		Content:        req.Content,
		Kind:           req.Kind,
	}
	if req.Offer != nil {
		input.Offer = &usecase.OfferInput{
			Amount:      req.Offer.Amount,
			Currency:    req.Offer.Currency,
			Description: req.Offer.Description,
			Deadline:    req.Offer.Deadline,
		}
	}

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), userID, input)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// ListMessages pages through a conversation's log, newest page first with
// each page in chronological order.
func (h *ChatHandler) ListMessages(c echo.Context) error {
	conversationID := c.Param("id")
	userID := c.Get("uid").(string)
	params := utils.GetPaginationParams(c)

	messages, total, err := h.chatUseCase.ListMessages(c.Request().Context(), userID, conversationID, params.Page, params.PageSize)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, params.Page, params.PageSize)
}

func (h *ChatHandler) MarkMessageRead(c echo.Context) error {
	conversationID := c.Param("id")
	messageID := c.Param("messageId")
	userID := c.Get("uid").(string)

	if err := h.chatUseCase.MarkMessageRead(c.Request().Context(), userID, conversationID, messageID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"message": "Message marked as read"})
}

func (h *ChatHandler) MarkAllRead(c echo.Context) error {
	conversationID := c.Param("id")
	userID := c.Get("uid").(string)

	count, err := h.chatUseCase.MarkAllRead(c.Request().Context(), userID, conversationID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]int{"marked_read": count})
}

// UpdateStatus changes the recruitment phase or the connection status,
// whichever the request carries.
func (h *ChatHandler) UpdateStatus(c echo.Context) error {
	conversationID := c.Param("id")
	userID := c.Get("uid").(string)

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if req.RecruitmentStatus != "" {
		conversation, err := h.chatUseCase.SetRecruitmentStatus(c.Request().Context(), userID, conversationID, req.RecruitmentStatus)
		if err != nil {
			return response.Error(c, err)
		}
		return response.Success(c, conversation)
	}

	if req.ConnectionStatus != "" {
		conversation, err := h.chatUseCase.SetConnectionStatus(c.Request().Context(), userID, conversationID, req.ConnectionStatus)
		if err != nil {
			return response.Error(c, err)
		}
		return response.Success(c, conversation)
	}

	return response.Error(c, errors.Validation("recruitment_status or connection_status is required"))
}
