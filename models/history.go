package models

import (
	"context"
	"time"

	"bitbucket.org/domeotech/doors_backend/config"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentHistory is the append-only change ledger. Rows are never updated
// or deleted.
type DocumentHistory struct {
	ID            string        `gorm:"primary_key;size:36" json:"id"`
	DocumentId    string        `gorm:"size:36;index;not null" json:"document_id"`
	DocumentKind  DocumentKind  `gorm:"size:20;not null" json:"document_kind"`
	Action        HistoryAction `gorm:"size:20;not null" json:"action"`
	OldValue      string        `gorm:"type:text" json:"old_value"`
	NewValue      string        `gorm:"type:text" json:"new_value"`
	Details       string        `gorm:"type:text" json:"details"`
	UserId        string        `gorm:"size:36;index" json:"user_id"`
	UserName      string        `gorm:"size:100" json:"user_name"`
	CorrelationId string        `gorm:"size:36" json:"correlation_id"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

func (h *DocumentHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// createHistory appends a ledger row inside the caller's transaction.
func createHistory(ctx context.Context, tx *gorm.DB,
	documentId string,
	kind DocumentKind,
	action HistoryAction,
	oldValue string,
	newValue string,
	details string) error {

	userId, userName := actorFromContext(ctx)

	history := DocumentHistory{
		DocumentId:    documentId,
		DocumentKind:  kind,
		Action:        action,
		OldValue:      oldValue,
		NewValue:      newValue,
		Details:       details,
		UserId:        userId,
		UserName:      userName,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}

	return tx.WithContext(ctx).Create(&history).Error
}

// CreateStatusHistory appends the status-change ledger row inside tx so the
// status update and its audit trail commit or roll back as a pair.
func CreateStatusHistory(ctx context.Context, tx *gorm.DB, documentId string, kind DocumentKind, oldStatus, newStatus, details string) error {
	return createHistory(ctx, tx, documentId, kind, HistoryActionStatusChange, oldStatus, newStatus, details)
}

// AppendHistory writes a ledger row outside any transaction. A failure here
// is the caller's to log, never to propagate as the operation's result.
func AppendHistory(ctx context.Context, documentId string, kind DocumentKind, action HistoryAction, oldValue, newValue, details string) error {
	db := config.GetDB()
	return createHistory(ctx, db, documentId, kind, action, oldValue, newValue, details)
}

func ListHistory(ctx context.Context, documentId string) ([]*DocumentHistory, error) {
	db := config.GetDB()
	var rows []*DocumentHistory
	err := db.WithContext(ctx).
		Where("document_id = ?", documentId).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
