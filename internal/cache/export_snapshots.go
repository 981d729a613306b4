package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wastemon/api/internal/ids"
	"wastemon/api/internal/models"
)

// ExportSnapshotStore keeps the filter snapshots behind export ids. Redis
// owns the TTL, so expired snapshots simply stop existing.
type ExportSnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewExportSnapshotStore(client *redis.Client, ttl time.Duration) *ExportSnapshotStore {
	return &ExportSnapshotStore{client: client, ttl: ttl}
}

func snapshotKey(module, exportID string) string {
	return fmt.Sprintf("export:snapshot:%s:%s", module, exportID)
}

func (s *ExportSnapshotStore) Create(ctx context.Context, userID int, module string, filters map[string]string) (string, error) {
	snapshot := models.ExportSnapshot{
		ExportID: ids.New(),
		UserID:   userID,
		Module:   module,
		Filters:  filters,
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, snapshotKey(module, snapshot.ExportID), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return snapshot.ExportID, nil
}

// Fetch returns nil on anything that should make the caller re-run the
// search: missing or expired id, or an owner/module mismatch.
func (s *ExportSnapshotStore) Fetch(ctx context.Context, exportID string, userID int, module string) (*models.ExportSnapshot, error) {
	payload, err := s.client.Get(ctx, snapshotKey(module, exportID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}

	var snapshot models.ExportSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	if snapshot.UserID != userID || snapshot.Module != module {
		return nil, nil
	}
	return &snapshot, nil
}
