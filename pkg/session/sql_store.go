package session

import (
	"context"

	"github.com/angelmondragon/storefront-cart/pkg/db"
	"github.com/angelmondragon/storefront-cart/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLStore persists session values in the session_entries table.
type SQLStore struct {
	client    *db.Client
	namespace string
}

func NewSQLStore(client *db.Client, namespace string) *SQLStore {
	return &SQLStore{client: client, namespace: namespace}
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	var entry models.SessionEntry
	err := s.client.DB().WithContext(ctx).
		Where("namespace = ? AND key = ?", s.namespace, key).
		First(&entry).Error
	if db.IsRecordNotFound(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read session entry")
	}
	return entry.Value, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	entry := models.SessionEntry{Namespace: s.namespace, Key: key, Value: value}
	err := s.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write session entry")
	}
	return nil
}

func (s *SQLStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Where("namespace = ? AND key IN ?", s.namespace, keys).
			Delete(&models.SessionEntry{}).Error
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete session entries")
	}
	return nil
}
