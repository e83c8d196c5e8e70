//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"community-hub/domain"
	"community-hub/errors"
)

const defaultHistoryLimit = 50

type IMessageRepository interface {
	StoreMessage(m domain.Message) error
	ListMessages(scope string, limit int, cursor *string) ([]domain.Message, *string, error)
	GetMessage(id uuid.UUID) (domain.Message, error)
	MarkDeleted(m domain.Message) error
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// messageKey formats "msg:{scope}:{timestamp_padded}:{uuid}" so that:
//  1. A prefix scan per scope returns records in chronological order
//     (19-digit zero padding keeps lexicographic order = time order).
//  2. The UUID tail disambiguates two messages in the same nanosecond.
func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.Scope(), m.CreatedAt.UnixNano(), m.ID))
}

// idKey is a secondary index from message id to the primary key, needed
// because soft delete addresses records by id alone.
func idKey(id uuid.UUID) []byte {
	return []byte("msgid:" + id.String())
}

func (r MessageRepository) StoreMessage(m domain.Message) error {
	value, err := json.Marshal(m)
	if err != nil {
		return err
	}
	key := messageKey(m)
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(idKey(m.ID), key)
	})
}

// ListMessages walks a scope newest-first from the cursor (or the end)
// and returns up to limit records plus the cursor to continue from.
// Records come back oldest-first, ready for rendering.
func (r MessageRepository) ListMessages(scope string, limit int, cursor *string) ([]domain.Message, *string, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var messages []domain.Message
	var lastKey string
	prefixStr := fmt.Sprintf("msg:%s:", scope)
	prefix := []byte(prefixStr)

	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp for this scope.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				r.log.Debug("history page full", "scope", scope, "limit", limit)
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			err := item.Value(func(value []byte) error {
				var m domain.Message
				if err := json.Unmarshal(value, &m); err != nil {
					return err
				}
				messages = append(messages, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// Reverse in place: iteration was newest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	var next *string
	if lastKey != "" {
		next = &lastKey
	}
	return messages, next, nil
}

func (r MessageRepository) GetMessage(id uuid.UUID) (domain.Message, error) {
	var m domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if err != nil {
			return err
		}
		var primary []byte
		if err := item.Value(func(v []byte) error {
			primary = append([]byte(nil), v...)
			return nil
		}); err != nil {
			return err
		}
		record, err := txn.Get(primary)
		if err != nil {
			return err
		}
		return record.Value(func(v []byte) error {
			return json.Unmarshal(v, &m)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	return m, err
}

// MarkDeleted rewrites the record in place with its soft-delete marker
// set. The caller fills DeletedAt/DeletedBy; the key never changes.
func (r MessageRepository) MarkDeleted(m domain.Message) error {
	if !m.Deleted() {
		return fmt.Errorf("message %s has no delete marker", m.ID)
	}
	value, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(m), value)
	})
}
