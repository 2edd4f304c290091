package idempotency

import (
	"context"
	"fmt"
	"time"
)

type exampleStore struct {
	values []bool
	index  int
}

func (s *exampleStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (s *exampleStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	result := false
	if s.index < len(s.values) {
		result = s.values[s.index]
	}
	s.index++
	return result, nil
}

func (s *exampleStore) IdempotencyKey(scope, id string) string {
	return "proc:idempotency:" + scope + ":" + id
}

func (s *exampleStore) Del(context.Context, ...string) error {
	return nil
}

func ExampleManager_CheckAndMarkProcessed() {
	ctx := context.Background()
	store := &exampleStore{values: []bool{true, false}}
	manager, _ := NewManager(store, 7*24*time.Hour)
	eventID := "f47ac10b-58cc-4372-a567-0e02b2c3d479"

	for i := 0; i < 2; i++ {
		seen, _ := manager.CheckAndMarkProcessed(ctx, "email-notifier", eventID)
		if seen {
			fmt.Println("already notified")
			continue
		}
		fmt.Println("sending e-mail")
	}
	// Output:
	// sending e-mail
	// already notified
}
