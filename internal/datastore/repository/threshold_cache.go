package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/patrickmn/go-cache"
)

// cachedThresholdRepository serves GetThresholdSet from memory for ttl.
// Absent sets are cached too, since most hives fall back to the global set
// and would otherwise miss on every sweep.
type cachedThresholdRepository struct {
	next  ThresholdRepository
	cache *cache.Cache
}

type cachedThreshold struct {
	set *entities.ThresholdSet // nil when the store had none
}

// NewCachedThresholdRepository wraps next with a read-through cache.
// Writes made through the wrapper drop the owner's cached entries; writes
// made elsewhere become visible once ttl expires.
func NewCachedThresholdRepository(next ThresholdRepository, ttl time.Duration) ThresholdRepository {
	return &cachedThresholdRepository{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func thresholdCacheKey(userID string, hiveID *string) string {
	return userID + "|" + entities.ScopeFor(hiveID)
}

func (r *cachedThresholdRepository) GetThresholdSet(ctx context.Context, userID string, hiveID *string) (*entities.ThresholdSet, error) {
	key := thresholdCacheKey(userID, hiveID)
	if v, ok := r.cache.Get(key); ok {
		entry := v.(cachedThreshold)
		if entry.set == nil {
			return nil, ErrThresholdSetNotFound
		}
		cp := *entry.set
		return &cp, nil
	}

	set, err := r.next.GetThresholdSet(ctx, userID, hiveID)
	switch {
	case errors.Is(err, ErrThresholdSetNotFound):
		r.cache.SetDefault(key, cachedThreshold{})
		return nil, err
	case err != nil:
		return nil, err
	}
	cp := *set
	r.cache.SetDefault(key, cachedThreshold{set: &cp})
	return set, nil
}

func (r *cachedThresholdRepository) SaveThresholdSet(ctx context.Context, set *entities.ThresholdSet) error {
	defer r.invalidateUser(set.UserID)
	return r.next.SaveThresholdSet(ctx, set)
}

func (r *cachedThresholdRepository) DeleteThresholdSet(ctx context.Context, userID string, hiveID *string) error {
	defer r.invalidateUser(userID)
	return r.next.DeleteThresholdSet(ctx, userID, hiveID)
}

func (r *cachedThresholdRepository) invalidateUser(userID string) {
	prefix := userID + "|"
	for key := range r.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			r.cache.Delete(key)
		}
	}
}
