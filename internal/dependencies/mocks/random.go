package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/gamestore-lobby/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing. When a queue
// runs dry it falls back to predictable sequential values so tests that do
// not care about identifiers still get unique ones.
type MockRandom struct {
	mu sync.Mutex

	IntnResults []int
	intnIndex   int

	StringResults []string
	stringIndex   int
	stringSeq     int

	TokenResults []string
	tokenIndex   int
	tokenSeq     int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result, or 0 if none remaining
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.intnIndex >= len(r.IntnResults) {
		return 0
	}
	result := r.IntnResults[r.intnIndex]
	r.intnIndex++
	return result
}

// String returns the next queued result, or "id-<n>" once the queue is empty
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stringIndex < len(r.StringResults) {
		result := r.StringResults[r.stringIndex]
		r.stringIndex++
		return result
	}
	r.stringSeq++
	return fmt.Sprintf("id-%d", r.stringSeq)
}

// Token returns the next queued token, or "token-<n>" once the queue is empty
func (r *MockRandom) Token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tokenIndex < len(r.TokenResults) {
		result := r.TokenResults[r.tokenIndex]
		r.tokenIndex++
		return result
	}
	r.tokenSeq++
	return fmt.Sprintf("token-%d", r.tokenSeq)
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	r.IntnResults = append(r.IntnResults, values...)
	r.mu.Unlock()
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	r.StringResults = append(r.StringResults, values...)
	r.mu.Unlock()
}

// QueueToken adds values to the Token result queue
func (r *MockRandom) QueueToken(values ...string) {
	r.mu.Lock()
	r.TokenResults = append(r.TokenResults, values...)
	r.mu.Unlock()
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IntnResults = nil
	r.intnIndex = 0
	r.StringResults = nil
	r.stringIndex = 0
	r.stringSeq = 0
	r.TokenResults = nil
	r.tokenIndex = 0
	r.tokenSeq = 0
}
