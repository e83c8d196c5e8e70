//go:generate go run go.uber.org/mock/mockgen -source=group.go -destination=../mocks/mock_group_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"

	"github.com/dgraph-io/badger/v4"

	"community-hub/domain"
	"community-hub/errors"
)

type IGroupRepository interface {
	GetGroup(ctx context.Context, groupID string) (domain.GroupInfo, error)
	PutGroup(ctx context.Context, g domain.GroupInfo) error
}

// GroupRepository reads the group slice the hub authorizes against.
// Groups are owned by the surrounding CRUD layer; PutGroup exists for
// seeding and tests.
type GroupRepository struct {
	db *badger.DB
}

func NewGroupRepository(db *badger.DB) GroupRepository {
	return GroupRepository{db: db}
}

func groupKey(id string) []byte { return []byte("group:" + id) }

func (r GroupRepository) GetGroup(_ context.Context, groupID string) (domain.GroupInfo, error) {
	var g domain.GroupInfo
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(groupKey(groupID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &g)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.GroupInfo{}, errors.ErrGroupNotFound
	}
	return g, err
}

func (r GroupRepository) PutGroup(_ context.Context, g domain.GroupInfo) error {
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(groupKey(g.ID), data)
	})
}
