// internal/services/action_message_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/mpnode/internal/message"
	"github.com/javajoker/mpnode/internal/models"
)

// ActionMessageService keeps the audit trail of received envelopes, one row
// per transport message id.
type ActionMessageService struct {
	db *gorm.DB
}

func NewActionMessageService(db *gorm.DB) *ActionMessageService {
	return &ActionMessageService{db: db}
}

// WithTx returns a copy of the service bound to tx.
func (s *ActionMessageService) WithTx(tx *gorm.DB) *ActionMessageService {
	return &ActionMessageService{db: tx}
}

// Seen reports whether msgid has already been recorded.
func (s *ActionMessageService) Seen(ctx context.Context, msgid string) (bool, error) {
	if msgid == "" {
		return false, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.ActionMessage{}).Where("msgid = ?", msgid).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check action message: %w", err)
	}
	return count > 0, nil
}

// Record stores the audit row. It reports false when msgid was recorded
// concurrently by another handler.
func (s *ActionMessageService) Record(ctx context.Context, action message.ActionType, objects []message.ObjectPair, version string, meta message.Metadata, listingItemID uuid.UUID) (bool, error) {
	row := &models.ActionMessage{
		Action:        string(action),
		MsgID:         meta.MsgID,
		Version:       version,
		Received:      meta.Received,
		Sent:          meta.Sent,
		From:          meta.From,
		To:            meta.To,
		ListingItemID: listingItemID,
	}
	for _, o := range objects {
		row.Objects = append(row.Objects, models.ActionObject{ID: o.ID, Value: o.Value})
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("failed to record action message: %w", err)
	}
	return true, nil
}

func (s *ActionMessageService) FindByListingItem(ctx context.Context, listingItemID uuid.UUID) ([]models.ActionMessage, error) {
	var rows []models.ActionMessage
	err := s.db.WithContext(ctx).
		Where("listing_item_id = ?", listingItemID).
		Order("received ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load action messages: %w", err)
	}
	return rows, nil
}
