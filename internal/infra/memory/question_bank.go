package memory

import (
	"context"
	_ "embed"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"trivia-room-service/internal/domain"
)

// QuestionLoader fetches question content from a backing store.
type QuestionLoader interface {
	LoadQuestionSet(ctx context.Context, difficulty domain.Difficulty) (domain.QuestionSet, error)
}

// QuestionBank caches question sets with a TTL to avoid repeated loader hits.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  clockwork.Clock
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[domain.Difficulty]cachedSet
}

type cachedSet struct {
	set       domain.QuestionSet
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return NewQuestionBankWithClock(loader, ttl, clockwork.NewRealClock())
}

// NewQuestionBankWithClock lets tests drive expiry.
func NewQuestionBankWithClock(loader QuestionLoader, ttl time.Duration, clock clockwork.Clock) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  clock,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[domain.Difficulty]cachedSet),
	}
}

func (b *QuestionBank) QuestionSet(ctx context.Context, difficulty domain.Difficulty) (domain.QuestionSet, error) {
	if set, ok := b.cached(difficulty); ok {
		return set, nil
	}

	result, err, _ := b.sf.Do(string(difficulty), func() (interface{}, error) {
		if set, ok := b.cached(difficulty); ok {
			return set, nil
		}
		set, err := b.loader.LoadQuestionSet(ctx, difficulty)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		b.mu.Lock()
		b.cache[difficulty] = cachedSet{
			set:       set,
			expiresAt: b.clock.Now().Add(b.ttlWithJitter()),
		}
		b.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

func (b *QuestionBank) cached(difficulty domain.Difficulty) (domain.QuestionSet, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.cache[difficulty]
	if !ok || !entry.expiresAt.After(b.clock.Now()) {
		return domain.QuestionSet{}, false
	}
	return entry.set, true
}

// ttlWithJitter adds up to 10% so sets loaded together do not expire together.
// Called with b.mu held.
func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticLoader serves question sets from a map (tests, demos and the
// built-in defaults).
type StaticLoader struct {
	sets map[domain.Difficulty]domain.QuestionSet
}

func NewStaticLoader(sets ...domain.QuestionSet) *StaticLoader {
	l := &StaticLoader{sets: make(map[domain.Difficulty]domain.QuestionSet, len(sets))}
	for _, set := range sets {
		l.sets[set.Difficulty] = set
	}
	return l
}

func (l *StaticLoader) LoadQuestionSet(_ context.Context, difficulty domain.Difficulty) (domain.QuestionSet, error) {
	if set, ok := l.sets[difficulty]; ok {
		return set, nil
	}
	return domain.QuestionSet{}, fmt.Errorf("%s: %w", difficulty, domain.ErrQuestionSetNotFound)
}

// Sets returns every loaded set, used to seed other stores.
func (l *StaticLoader) Sets() []domain.QuestionSet {
	sets := make([]domain.QuestionSet, 0, len(l.sets))
	for _, d := range domain.Difficulties {
		if set, ok := l.sets[d]; ok {
			sets = append(sets, set)
		}
	}
	return sets
}

//go:embed questions.yaml
var defaultQuestions []byte

// DefaultQuestions parses the built-in question sets.
func DefaultQuestions() ([]domain.QuestionSet, error) {
	var sets []domain.QuestionSet
	if err := yaml.Unmarshal(defaultQuestions, &sets); err != nil {
		return nil, fmt.Errorf("parse default questions: %w", err)
	}
	for _, set := range sets {
		if err := ValidateQuestionSet(set); err != nil {
			return nil, err
		}
	}
	return sets, nil
}

// ValidateQuestionSet checks ids are unique and correct indexes are in range.
func ValidateQuestionSet(set domain.QuestionSet) error {
	if _, err := domain.ParseDifficulty(string(set.Difficulty)); err != nil {
		return fmt.Errorf("question set %q: %w", set.Difficulty, err)
	}
	seen := make(map[int]struct{}, len(set.Questions))
	for _, q := range set.Questions {
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("question %d of %s is duplicated: %w", q.ID, set.Difficulty, domain.ErrInvalidInput)
		}
		seen[q.ID] = struct{}{}
		if q.CorrectIndex < 0 || q.CorrectIndex >= domain.OptionCount {
			return fmt.Errorf("question %d of %s has correct index %d: %w", q.ID, set.Difficulty, q.CorrectIndex, domain.ErrInvalidInput)
		}
	}
	return nil
}
