package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// ChatRepository persists chatbot conversation turns.
type ChatRepository interface {
	Save(ctx context.Context, message *models.ChatMessage) error
	History(ctx context.Context, accountID uint, before time.Time, limit int) ([]models.ChatMessage, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository constructs a chat repository backed by GORM.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Save(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// History returns up to limit turns before the cutoff, oldest first.
func (r *chatRepository) History(ctx context.Context, accountID uint, before time.Time, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if !before.IsZero() {
		query = query.Where("created_at < ?", before)
	}

	var messages []models.ChatMessage
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
