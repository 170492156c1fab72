package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/multiroll/internal/chat"
)

// ErrMessageNotFound is returned when a message lookup yields no results.
var ErrMessageNotFound = errors.New("message not found")

// MessageRepository persists chat messages as JSONB documents.
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository creates a MessageRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts p under a fresh ID.
//
// Precondition: p must be JSON-encodable.
// Postcondition: Returns the new message ID; the stored document carries it
// under chat.KeyID.
func (r *MessageRepository) Create(ctx context.Context, p chat.Payload) (string, error) {
	id := uuid.NewString()
	doc := p.Clone()
	doc[chat.KeyID] = id

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding message: %w", err)
	}
	msgType, _ := doc[chat.KeyType].(string)
	userID, _ := doc[chat.KeyUser].(string)

	_, err = r.db.Exec(ctx,
		`INSERT INTO chat_messages (id, message_type, user_id, payload)
		 VALUES ($1, $2, $3, $4)`,
		id, msgType, userID, data,
	)
	if err != nil {
		return "", fmt.Errorf("inserting message: %w", err)
	}
	return id, nil
}

// Get retrieves a message by ID.
//
// Postcondition: Returns the stored Payload or ErrMessageNotFound.
func (r *MessageRepository) Get(ctx context.Context, id string) (chat.Payload, error) {
	var data []byte
	err := r.db.QueryRow(ctx,
		`SELECT payload FROM chat_messages WHERE id = $1`, id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message: %w", err)
	}
	return decodePayload(data)
}

// List returns every stored message in creation order.
func (r *MessageRepository) List(ctx context.Context) ([]chat.Payload, error) {
	rows, err := r.db.Query(ctx, `SELECT payload FROM chat_messages ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []chat.Payload
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		p, err := decodePayload(data)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return out, nil
}

func decodePayload(data []byte) (chat.Payload, error) {
	var p chat.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	return p, nil
}
