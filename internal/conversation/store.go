// Package conversation keeps chat sessions in Redis.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TTL is how long an idle conversation is kept.
const TTL = 24 * time.Hour

const keyPrefix = "recipechat:conversation:"

// appendRetries bounds optimistic-lock retries when two appends race.
const appendRetries = 5

// ErrNotFound is returned when a conversation does not exist or has expired.
var ErrNotFound = errors.New("conversation not found")

// Roles of a chat message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role     string    `json:"role"`
	Content  string    `json:"content"`
	RecipeID string    `json:"recipe_id,omitempty"`
	At       time.Time `json:"at"`
}

// Conversation is a chat session. RecipeID is the recipe the conversation is
// currently working on.
type Conversation struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	RecipeID  string    `json:"recipe_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists conversations in Redis.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStore creates a conversation store on client.
func NewStore(client *redis.Client) *Store {
	return &Store{redis: client, ttl: TTL}
}

func key(id string) string {
	return keyPrefix + id
}

// Create starts an empty conversation.
func (s *Store) Create(ctx context.Context) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.New().String(),
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := s.redis.Set(ctx, key(conv.ID), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to save conversation to Redis: %w", err)
	}
	return conv, nil
}

// Get retrieves a conversation.
func (s *Store) Get(ctx context.Context, id string) (*Conversation, error) {
	return get(ctx, s.redis, id)
}

func get(ctx context.Context, c redis.Cmdable, id string) (*Conversation, error) {
	data, err := c.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation from Redis: %w", err)
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}

// Append adds messages to a conversation and refreshes its TTL. A message
// carrying a RecipeID moves the conversation onto that recipe.
func (s *Store) Append(ctx context.Context, id string, msgs ...Message) (*Conversation, error) {
	var conv *Conversation
	txf := func(tx *redis.Tx) error {
		current, err := get(ctx, tx, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, m := range msgs {
			if m.At.IsZero() {
				m.At = now
			}
			if m.RecipeID != "" {
				current.RecipeID = m.RecipeID
			}
			current.Messages = append(current.Messages, m)
		}
		current.UpdatedAt = now

		data, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(id), data, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		conv = current
		return nil
	}

	for i := 0; i < appendRetries; i++ {
		err := s.redis.Watch(ctx, txf, key(id))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to append to conversation: %w", err)
		}
		return conv, nil
	}
	return nil, fmt.Errorf("failed to append to conversation %s: too much contention", id)
}

// Delete removes a conversation.
func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.redis.Del(ctx, key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
