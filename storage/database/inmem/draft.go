package inmemdb

import (
	"context"
	"sync"

	"github.com/iba-dss/hxd-api/core/registration"
)

// draftRepository keeps snapshots in memory; used in dev and tests where a
// reload-survival guarantee is not needed.
type draftRepository struct {
	mutex sync.RWMutex
	table map[string]registration.Draft
}

var _ registration.SnapshotRepository = (*draftRepository)(nil)

func NewDraftRepository() *draftRepository {
	return &draftRepository{table: make(map[string]registration.Draft)}
}

func (repo *draftRepository) SaveDraft(_ context.Context, draft registration.Draft) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()
	repo.table[draft.Key] = draft
	return nil
}

func (repo *draftRepository) GetDraft(_ context.Context, key string) (registration.Draft, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	if d, ok := repo.table[key]; ok {
		return d, nil
	}
	return registration.Draft{}, registration.ErrNotFound
}

func (repo *draftRepository) DeleteDraft(_ context.Context, key string) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()
	delete(repo.table, key)
	return nil
}
