//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"community-hub/domain"
	"community-hub/errors"
)

type IUserRepository interface {
	CreateUser(ctx context.Context, u User) (string, error)
	GetUser(ctx context.Context, userID string) (domain.Principal, error)
	GetPushToken(ctx context.Context, userID string) (string, error)
	SetPushToken(ctx context.Context, userID, token string) error
	ListPushTargets(ctx context.Context) ([]string, error)
}

// User is the stored account record. The hub itself only reads the
// principal slice; the full record exists for seeding and push lookup.
type User struct {
	ID           string        `json:"_id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	MembershipID string        `json:"membershipId"`
	Avatar       string        `json:"profilePicture,omitempty"`
	Role         domain.Role   `json:"role"`
	Status       domain.Status `json:"status"`
	PasswordHash string        `json:"-"`
	PushToken    string        `json:"-"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// stored adds the private fields back for persistence.
type storedUser struct {
	User
	PasswordHash string `json:"passwordHash,omitempty"`
	PushToken    string `json:"pushToken,omitempty"`
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) UserRepository {
	return UserRepository{db: db}
}

func userKey(id string) []byte { return []byte("user:" + id) }

// CreateUser persists the record, generating id and membership id when
// absent. Used by seeding; the surrounding application owns accounts in
// production.
func (r UserRepository) CreateUser(_ context.Context, u User) (string, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.MembershipID == "" {
		u.MembershipID = "MBR-" + uuid.NewString()[:8]
	}
	if u.Role == "" {
		u.Role = domain.RoleMember
	}
	if u.Status == "" {
		u.Status = domain.StatusActive
	}
	u.CreatedAt = time.Now().UTC()

	data, err := json.Marshal(storedUser{User: u, PasswordHash: u.PasswordHash, PushToken: u.PushToken})
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(u.ID), data)
	})
	return u.ID, err
}

func (r UserRepository) GetUser(_ context.Context, userID string) (domain.Principal, error) {
	stored, err := r.getStored(userID)
	if err != nil {
		return domain.Principal{}, err
	}
	return domain.Principal{
		ID:           stored.ID,
		Name:         stored.Name,
		MembershipID: stored.MembershipID,
		Avatar:       stored.Avatar,
		Role:         stored.Role,
		Status:       stored.Status,
	}, nil
}

func (r UserRepository) GetPushToken(_ context.Context, userID string) (string, error) {
	stored, err := r.getStored(userID)
	if err != nil {
		return "", err
	}
	return stored.PushToken, nil
}

func (r UserRepository) SetPushToken(_ context.Context, userID, token string) error {
	stored, err := r.getStored(userID)
	if err != nil {
		return err
	}
	stored.PushToken = token
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(userID), data)
	})
}

// ListPushTargets scans the user space for principals holding a push
// credential. Used by community sends; the scan runs off the send path.
func (r UserRepository) ListPushTargets(_ context.Context) ([]string, error) {
	var ids []string
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("user:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var stored storedUser
				if err := json.Unmarshal(val, &stored); err != nil {
					return err
				}
				if stored.PushToken != "" {
					ids = append(ids, stored.ID)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return ids, err
}

func (r UserRepository) getStored(userID string) (storedUser, error) {
	var stored storedUser
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storedUser{}, errors.ErrUserNotFound
	}
	return stored, err
}
