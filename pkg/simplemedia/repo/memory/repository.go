package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

type mediaKey struct {
	ownerID uuid.UUID
	id      uuid.UUID
}

// Repository implements simplemedia.Repository using in-memory storage.
// Records are held as snapshots so callers never share state with the store.
type Repository struct {
	mu           sync.RWMutex
	media        map[mediaKey]simplemedia.MediaSnapshot
	byOwner      map[uuid.UUID]map[uuid.UUID]struct{} // owner_id -> set of media ids
	byStorageKey map[string]mediaKey
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		media:        make(map[mediaKey]simplemedia.MediaSnapshot),
		byOwner:      make(map[uuid.UUID]map[uuid.UUID]struct{}),
		byStorageKey: make(map[string]mediaKey),
	}
}

func (r *Repository) Save(ctx context.Context, media *simplemedia.Media) error {
	if media == nil {
		return fmt.Errorf("save media: nil media")
	}
	snapshot := media.Snapshot()
	key := mediaKey{ownerID: snapshot.OwnerID, id: snapshot.ID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.media[key]; ok && existing.StorageKey != snapshot.StorageKey {
		delete(r.byStorageKey, existing.StorageKey)
	}
	r.media[key] = snapshot

	ids, ok := r.byOwner[key.ownerID]
	if !ok {
		ids = make(map[uuid.UUID]struct{})
		r.byOwner[key.ownerID] = ids
	}
	ids[key.id] = struct{}{}
	r.byStorageKey[snapshot.StorageKey] = key

	return nil
}

func (r *Repository) FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID, createdAt time.Time) (*simplemedia.Media, error) {
	r.mu.RLock()
	snapshot, ok := r.media[mediaKey{ownerID: ownerID, id: id}]
	r.mu.RUnlock()

	if !ok {
		return nil, simplemedia.ErrNotFound
	}
	if !createdAt.IsZero() && !createdAt.Equal(snapshot.CreatedAt) {
		return nil, simplemedia.ErrNotFound
	}
	return simplemedia.RestoreMedia(snapshot)
}

func (r *Repository) FindByOwner(ctx context.Context, params simplemedia.FindByOwnerParams) (*simplemedia.Page, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = simplemedia.DefaultListLimit
	}

	cursor := params.Cursor
	if cursor != nil && cursor.OwnerID != params.OwnerID {
		cursor = nil
	}

	r.mu.RLock()
	snapshots := make([]simplemedia.MediaSnapshot, 0, len(r.byOwner[params.OwnerID]))
	for id := range r.byOwner[params.OwnerID] {
		snapshots = append(snapshots, r.media[mediaKey{ownerID: params.OwnerID, id: id}])
	}
	r.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool {
		return simplemedia.SortDescending(snapshots[i].CreatedAt, snapshots[i].ID, snapshots[j].CreatedAt, snapshots[j].ID)
	})

	items := make([]*simplemedia.Media, 0, limit)
	for _, snapshot := range snapshots {
		if cursor != nil && !cursor.Follows(snapshot.CreatedAt, snapshot.ID) {
			continue
		}
		m, err := simplemedia.RestoreMedia(snapshot)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
		if len(items) == limit {
			break
		}
	}

	page := &simplemedia.Page{Items: items}
	if len(items) == limit {
		next := items[len(items)-1].Cursor()
		page.NextCursor = &next
	}
	return page, nil
}

func (r *Repository) FindByStorageKey(ctx context.Context, key simplemedia.StorageKey) (*simplemedia.Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mk, ok := r.byStorageKey[key.String()]
	if !ok {
		return nil, simplemedia.ErrNotFound
	}
	return simplemedia.RestoreMedia(r.media[mk])
}

// Len returns the number of stored records.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.media)
}
