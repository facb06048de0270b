package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/infra/memory"
)

// QuestionBank caches question sets in Redis (one hash per difficulty) and
// falls back to a loader on a miss. Questions are stored as:
//
//	HSET trivia:questions:{difficulty} {questionID} {question json}
//
// so every replica shares one copy of the answer key.
type QuestionBank struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) QuestionSet(ctx context.Context, difficulty domain.Difficulty) (domain.QuestionSet, error) {
	key := questionsKey(difficulty)
	if set, ok := b.fromCache(ctx, key, difficulty); ok {
		return set, nil
	}

	result, err, _ := b.sf.Do(string(difficulty), func() (interface{}, error) {
		if set, ok := b.fromCache(ctx, key, difficulty); ok {
			return set, nil
		}
		set, err := b.loader.LoadQuestionSet(ctx, difficulty)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		pipe := b.client.Pipeline()
		for _, q := range set.Questions {
			raw, err := json.Marshal(q)
			if err != nil {
				return domain.QuestionSet{}, fmt.Errorf("encode question %d: %w", q.ID, err)
			}
			pipe.HSet(ctx, key, strconv.Itoa(q.ID), raw)
		}
		if ttl := b.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			log.Warn().Err(err).Str("difficulty", string(difficulty)).Msg("cache question set")
		}
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

// fromCache rebuilds a set from its hash. Undecodable entries count as a miss.
func (b *QuestionBank) fromCache(ctx context.Context, key string, difficulty domain.Difficulty) (domain.QuestionSet, bool) {
	fields, err := b.client.HGetAll(ctx, key).Result()
	if err != nil || len(fields) == 0 {
		return domain.QuestionSet{}, false
	}
	questions := make([]domain.Question, 0, len(fields))
	for _, raw := range fields {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return domain.QuestionSet{}, false
		}
		questions = append(questions, q)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	return domain.QuestionSet{Difficulty: difficulty, Questions: questions}, true
}

// Invalidate drops the cached copy of one difficulty.
func (b *QuestionBank) Invalidate(ctx context.Context, difficulty domain.Difficulty) error {
	return b.client.Del(ctx, questionsKey(difficulty)).Err()
}

func questionsKey(difficulty domain.Difficulty) string {
	return "trivia:questions:" + string(difficulty)
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
