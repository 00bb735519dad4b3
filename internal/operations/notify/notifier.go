// Package notify delivers user-facing notifications and invoice emails.
package notify

import (
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/repositories"
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
)

// Notifier records an in-app notification for a user.
type Notifier interface {
	Notify(ctx context.Context, userID uint, kind, title, message string, metadata map[string]any) error
}

// Store persists notifications as rows the dashboard reads.
type Store struct {
	repo *repositories.NotificationRepository
}

func NewStore(repo *repositories.NotificationRepository) *Store {
	return &Store{repo: repo}
}

func (s *Store) Notify(ctx context.Context, userID uint, kind, title, message string, metadata map[string]any) error {
	var meta datatypes.JSON
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode notification metadata: %w", err)
		}
		meta = datatypes.JSON(raw)
	}
	return s.repo.Create(ctx, &models.Notification{
		UserID:   userID,
		Type:     kind,
		Title:    title,
		Message:  message,
		Metadata: meta,
	})
}
