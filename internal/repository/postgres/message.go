package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/micropantry/pantrymap/internal/models"
	"github.com/micropantry/pantrymap/internal/repository"
)

type messageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new community message repository.
func NewMessageRepository(db *sql.DB) repository.MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) (*models.Message, error) {
	query := `
		INSERT INTO messages (id, pantry_id, user_name, user_avatar, content, photos, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		message.ID,
		message.PantryID,
		message.UserName,
		message.UserAvatar,
		message.Content,
		pq.Array(message.Photos),
		message.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return message, nil
}

func (r *messageRepository) ListRecent(ctx context.Context, pantryID string, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, pantry_id, user_name, user_avatar, content, photos, created_at
		FROM messages
		WHERE pantry_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, pantryID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		message := &models.Message{}
		if err := rows.Scan(
			&message.ID,
			&message.PantryID,
			&message.UserName,
			&message.UserAvatar,
			&message.Content,
			pq.Array(&message.Photos),
			&message.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}
