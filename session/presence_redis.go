package session

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/thatrasunil/code-connect/types"
)

const redisOpTimeout = 5 * time.Second

// RedisPresence shares the presence table between server instances through
// two redis hashes per room: one holding per-user connection counts, one
// holding display names. HIncrBy gives the enter/exit atomic-increment
// contract without any process-local state.
type RedisPresence struct {
	client *redis.Client
}

func NewRedisPresence(addr, password string, db int) (*RedisPresence, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisPresence{client: client}, nil
}

func countsKey(roomId string) string { return "presence:counts:" + roomId }
func namesKey(roomId string) string  { return "presence:names:" + roomId }

func (p *RedisPresence) Enter(roomId, userId, name string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	count, err := p.client.HIncrBy(ctx, countsKey(roomId), userId, 1).Result()
	if err != nil {
		return 0, err
	}
	if name != "" {
		if err := p.client.HSet(ctx, namesKey(roomId), userId, name).Err(); err != nil {
			return int(count), err
		}
	}
	return int(count), nil
}

func (p *RedisPresence) Exit(roomId, userId string) (int, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	// guarded decrement: never go below zero for an absent user
	exists, err := p.client.HExists(ctx, countsKey(roomId), userId).Result()
	if err != nil {
		return 0, false, err
	}
	if !exists {
		return 0, false, nil
	}
	count, err := p.client.HIncrBy(ctx, countsKey(roomId), userId, -1).Result()
	if err != nil {
		return 0, false, err
	}
	if count <= 0 {
		pipe := p.client.TxPipeline()
		pipe.HDel(ctx, countsKey(roomId), userId)
		pipe.HDel(ctx, namesKey(roomId), userId)
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, true, err
		}
		return 0, true, nil
	}
	return int(count), false, nil
}

func (p *RedisPresence) Participants(roomId string) ([]types.Participant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	counts, err := p.client.HGetAll(ctx, countsKey(roomId)).Result()
	if err != nil {
		return nil, err
	}
	names, err := p.client.HGetAll(ctx, namesKey(roomId)).Result()
	if err != nil {
		return nil, err
	}
	participants := make([]types.Participant, 0, len(counts))
	for userId := range counts {
		name := names[userId]
		if name == "" {
			name = userId
		}
		participants = append(participants, types.Participant{UserId: userId, Name: name, Color: participantColor})
	}
	sort.Slice(participants, func(i, j int) bool { return participants[i].UserId < participants[j].UserId })
	return participants, nil
}

func (p *RedisPresence) Count(roomId string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	count, err := p.client.HLen(ctx, countsKey(roomId)).Result()
	return int(count), err
}

func (p *RedisPresence) Clear(roomId string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return p.client.Del(ctx, countsKey(roomId), namesKey(roomId)).Err()
}
