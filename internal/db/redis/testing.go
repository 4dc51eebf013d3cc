package redis

import "github.com/redis/rueidis"

// NewStoreForTest creates a Store with an injected client (for testing with mocks).
func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c}
}
