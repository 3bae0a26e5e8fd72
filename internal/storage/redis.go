package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/radiusdt/roas-board/internal/models"
)

// RedisStateStore keeps each board state as a JSON string under prefix+boardID.
type RedisStateStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStateStore(client *redis.Client, prefix string) *RedisStateStore {
	return &RedisStateStore{client: client, prefix: prefix}
}

func (s *RedisStateStore) key(boardID string) string {
	return s.prefix + "board:" + boardID
}

func (s *RedisStateStore) LoadState(ctx context.Context, boardID string) (*models.BoardState, error) {
	data, err := s.client.Get(ctx, s.key(boardID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load board state: %w", err)
	}
	return decodeState(data)
}

func (s *RedisStateStore) SaveState(ctx context.Context, boardID string, st *models.BoardState) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	// No expiry: a board keeps its order until the user resets it.
	if err := s.client.Set(ctx, s.key(boardID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save board state: %w", err)
	}
	return nil
}
