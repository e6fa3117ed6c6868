// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the scoped key-value property store with
// an application-wide partition and one partition per Slack user.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-slack-bot/internal/domain"
)

// ErrInvalidScope is returned for scopes other than app and user, or for a
// user-scoped access without an owner.
var ErrInvalidScope = errors.New("invalid property scope")

func checkScope(scope, owner string) error {
	switch scope {
	case domain.ScopeApp:
		if owner != "" {
			return ErrInvalidScope
		}
	case domain.ScopeUser:
		if strings.TrimSpace(owner) == "" {
			return ErrInvalidScope
		}
	default:
		return ErrInvalidScope
	}
	return nil
}

// GetProperty returns the value stored under (scope, owner, key) or ErrNotFound.
func GetProperty(ctx context.Context, db *gorm.DB, scope, owner, key string) (string, error) {
	if err := checkScope(scope, owner); err != nil {
		return "", err
	}
	var p domain.Property
	err := db.WithContext(ctx).
		Where("scope = ? AND owner = ? AND key = ?", scope, owner, key).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return p.Value, nil
}

// SetProperty inserts or overwrites the value stored under (scope, owner, key).
func SetProperty(ctx context.Context, db *gorm.DB, scope, owner, key, value string) error {
	if err := checkScope(scope, owner); err != nil {
		return err
	}
	p := &domain.Property{
		Scope:     scope,
		Owner:     owner,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope"}, {Name: "owner"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(p).Error
}

// DeleteProperty removes (scope, owner, key). Deleting a missing key is not an error.
func DeleteProperty(ctx context.Context, db *gorm.DB, scope, owner, key string) error {
	if err := checkScope(scope, owner); err != nil {
		return err
	}
	return db.WithContext(ctx).
		Where("scope = ? AND owner = ? AND key = ?", scope, owner, key).
		Delete(&domain.Property{}).Error
}
