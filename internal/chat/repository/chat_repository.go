package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"collegovibe/internal/common"
	"collegovibe/internal/dbmysql"
)

// ChatRepository is the append-only message history.
type ChatRepository interface {
	Save(ctx context.Context, msg *dbmysql.Message) error
	// FetchConversation returns every message exchanged between a and b in
	// either direction, oldest first.
	FetchConversation(ctx context.Context, a, b string) ([]*dbmysql.Message, error)
}

type chatRepo struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepo{db: db}
}

func (r *chatRepo) Save(ctx context.Context, msg *dbmysql.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return mapError("save message", err)
	}
	return nil
}

func (r *chatRepo) FetchConversation(ctx context.Context, a, b string) ([]*dbmysql.Message, error) {
	var messages []*dbmysql.Message
	err := r.db.WithContext(ctx).
		Where("(sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)", a, b, b, a).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, mapError("fetch conversation", err)
	}
	if messages == nil {
		messages = []*dbmysql.Message{}
	}
	return messages, nil
}

func mapError(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.NotFoundf("%s", op)
	}
	return common.Transient(op, err)
}
