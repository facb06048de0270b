// Package randomizer fixes the content order of a room: its join code, its
// question order and the per-question option order every client derives locally.
package randomizer

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"trivia-room-service/internal/domain"
)

const (
	// CodeLength is the number of characters in a room code.
	CodeLength = 6
	// CodeAlphabet is the set of characters a room code is drawn from.
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Randomizer draws room codes and question orders from a single source.
// math/rand sources are not goroutine safe, so draws are serialized.
type Randomizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func New() *Randomizer {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource is used by tests that need reproducible codes and orders.
func NewWithSource(src rand.Source) *Randomizer {
	return &Randomizer{rnd: rand.New(src)}
}

// Code returns a fresh room code. Uniqueness is the store's concern.
func (r *Randomizer) Code() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf := make([]byte, CodeLength)
	for i := range buf {
		buf[i] = CodeAlphabet[r.rnd.Intn(len(CodeAlphabet))]
	}
	return string(buf)
}

// QuestionOrder returns a uniform Fisher-Yates permutation of ids. The input
// slice is left untouched.
func (r *Randomizer) QuestionOrder(ids []int) []int {
	order := make([]int, len(ids))
	copy(order, ids)

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(order) - 1; i > 0; i-- {
		j := r.rnd.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// NormalizeCode upper-cases a user supplied code and checks its format.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != CodeLength {
		return "", domain.ErrInvalidRoomCode
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(CodeAlphabet, code[i]) < 0 {
			return "", domain.ErrInvalidRoomCode
		}
	}
	return code, nil
}
