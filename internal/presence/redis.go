package presence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"board-service/internal/models"
)

const defaultKeyPrefix = "presence"

// RedisStore shares assignments between service instances.
//
// Layout:
//
//	<prefix>:user:<userID>    hash {board, name}
//	<prefix>:board:<boardID>  hash userID -> name
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisClient builds a client and checks connectivity.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) userKey(userID string) string {
	return fmt.Sprintf("%s:user:%s", s.prefix, userID)
}

func (s *RedisStore) boardKey(boardID string) string {
	return fmt.Sprintf("%s:board:%s", s.prefix, boardID)
}

// SetUserBoard moves the user onto boardID in a single transaction.
func (s *RedisStore) SetUserBoard(ctx context.Context, userID, username, boardID string) (string, error) {
	userKey := s.userKey(userID)
	var previous string
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		previous = ""
		prev, err := tx.HGet(ctx, userKey, "board").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if prev != "" && prev != boardID {
				pipe.HDel(ctx, s.boardKey(prev), userID)
			}
			pipe.HSet(ctx, userKey, "board", boardID, "name", username)
			pipe.HSet(ctx, s.boardKey(boardID), userID, username)
			return nil
		})
		if err == nil && prev != boardID {
			previous = prev
		}
		return err
	}, userKey)
	return previous, err
}

// GetUserBoard returns the board the user is observing.
func (s *RedisStore) GetUserBoard(ctx context.Context, userID string) (string, bool, error) {
	boardID, err := s.client.HGet(ctx, s.userKey(userID), "board").Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return boardID, true, nil
}

// GetJoinedBoardUsers returns the users observing boardID.
func (s *RedisStore) GetJoinedBoardUsers(ctx context.Context, boardID string) ([]models.JoinedBoardUser, error) {
	entries, err := s.client.HGetAll(ctx, s.boardKey(boardID)).Result()
	if err != nil {
		return nil, err
	}
	users := make([]models.JoinedBoardUser, 0, len(entries))
	for userID, name := range entries {
		users = append(users, models.JoinedBoardUser{ID: userID, Username: name})
	}
	SortJoinedUsers(users)
	return users, nil
}

// RemoveUser drops the user's assignment.
func (s *RedisStore) RemoveUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		boardID, err := tx.HGet(ctx, userKey, "board").Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, userKey)
			pipe.HDel(ctx, s.boardKey(boardID), userID)
			return nil
		})
		return err
	}, userKey)
}

// RemoveUserFromBoard drops the user's assignment if it still points at boardID.
func (s *RedisStore) RemoveUserFromBoard(ctx context.Context, userID, boardID string) (bool, error) {
	userKey := s.userKey(userID)
	removed := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		removed = false
		current, err := tx.HGet(ctx, userKey, "board").Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if current != boardID {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, userKey)
			pipe.HDel(ctx, s.boardKey(boardID), userID)
			return nil
		})
		if err == nil {
			removed = true
		}
		return err
	}, userKey)
	return removed, err
}

var _ Store = (*RedisStore)(nil)
