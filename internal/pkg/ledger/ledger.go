package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	creditsKeyPrefix      = "billing:credits:"
	subscriptionKeyPrefix = "billing:subscription:"
	freeGrantKeyPrefix    = "billing:free_grant:"

	// freeGrantTTL outlives the longest calendar month so a claim marker never
	// expires inside the month it guards.
	freeGrantTTL = 45 * 24 * time.Hour
)

// Store is the narrow persistence interface the credit and subscription
// services depend on. Get methods return (nil, nil) when no record exists.
type Store interface {
	GetCredits(ctx context.Context, userID string) (*CreditRecord, error)
	SaveCredits(ctx context.Context, userID string, rec *CreditRecord) error
	GetSubscription(ctx context.Context, userID string) (*SubscriptionRecord, error)
	SaveSubscription(ctx context.Context, userID string, rec *SubscriptionRecord) error
	DeleteSubscription(ctx context.Context, userID string) error
	// ClaimFreeGrant atomically claims the monthly free-credit grant for the
	// given calendar month ("2006-01"). It returns true exactly once per user
	// per month, regardless of how many requests race on the first check.
	ClaimFreeGrant(ctx context.Context, userID, month string) (bool, error)
}

type redisStore struct {
	client *redis.Client
}

// NewStore creates a ledger store backed by the given Redis client.
func NewStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) GetCredits(ctx context.Context, userID string) (*CreditRecord, error) {
	fields, err := s.client.HGetAll(ctx, creditsKeyPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("ledger: load credits for %s: %w", userID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return creditRecordFromFields(fields), nil
}

func (s *redisStore) SaveCredits(ctx context.Context, userID string, rec *CreditRecord) error {
	if err := s.client.HSet(ctx, creditsKeyPrefix+userID, rec.fields()).Err(); err != nil {
		return fmt.Errorf("ledger: save credits for %s: %w", userID, err)
	}
	return nil
}

func (s *redisStore) GetSubscription(ctx context.Context, userID string) (*SubscriptionRecord, error) {
	fields, err := s.client.HGetAll(ctx, subscriptionKeyPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("ledger: load subscription for %s: %w", userID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return subscriptionRecordFromFields(fields), nil
}

func (s *redisStore) SaveSubscription(ctx context.Context, userID string, rec *SubscriptionRecord) error {
	if err := s.client.HSet(ctx, subscriptionKeyPrefix+userID, rec.fields()).Err(); err != nil {
		return fmt.Errorf("ledger: save subscription for %s: %w", userID, err)
	}
	return nil
}

func (s *redisStore) DeleteSubscription(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, subscriptionKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("ledger: delete subscription for %s: %w", userID, err)
	}
	return nil
}

func (s *redisStore) ClaimFreeGrant(ctx context.Context, userID, month string) (bool, error) {
	key := freeGrantKeyPrefix + userID + ":" + month
	claimed, err := s.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), freeGrantTTL).Result()
	if err != nil {
		return false, fmt.Errorf("ledger: claim free grant for %s: %w", userID, err)
	}
	return claimed, nil
}
