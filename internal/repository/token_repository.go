package repository

import (
	"context"
	"errors"

	"github.com/craftauth/yggdrasil/internal/domain"
	"github.com/craftauth/yggdrasil/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrTokenNotFound = errors.New("token not found")

type TokenRepository interface {
	Create(token *domain.Token) error
	FindByID(id string) (*domain.Token, error)
	ListByUser(userID string) ([]domain.Token, error)
	// Rotate atomically replaces the token identified by oldID with
	// newToken. The old token must still exist when the swap runs.
	Rotate(oldID string, newToken *domain.Token) error
	// ReplaceForUser revokes every token the user holds and stores
	// newToken in the same transaction, so the user ends up with exactly
	// one live token no matter how the call interleaves with others.
	ReplaceForUser(userID string, newToken *domain.Token) error
	DeleteByID(id string) error
	DeleteByUser(userID string) (int64, error)
}

type GormTokenRepository struct{ db *gorm.DB }

func NewTokenRepository(db *gorm.DB) TokenRepository { return &GormTokenRepository{db: db} }

func (r *GormTokenRepository) Create(token *domain.Token) error {
	err := r.db.Create(token).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "token", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "create", "success")
	return nil
}

func (r *GormTokenRepository) FindByID(id string) (*domain.Token, error) {
	var t domain.Token
	err := r.db.Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "token", "find_by_id", "not_found")
			return nil, ErrTokenNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "token", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "find_by_id", "success")
	return &t, nil
}

func (r *GormTokenRepository) ListByUser(userID string) ([]domain.Token, error) {
	var tokens []domain.Token
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&tokens).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "token", "list_by_user", "error")
		return tokens, err
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "list_by_user", "success")
	return tokens, err
}

func (r *GormTokenRepository) Rotate(oldID string, newToken *domain.Token) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var old domain.Token
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", oldID).
			First(&old).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenNotFound
			}
			return err
		}
		if err := tx.Delete(&domain.Token{}, "id = ?", old.ID).Error; err != nil {
			return err
		}
		return tx.Create(newToken).Error
	})
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "token", "rotate", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "token", "rotate", "error")
		}
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "rotate", "success")
	return nil
}

func (r *GormTokenRepository) ReplaceForUser(userID string, newToken *domain.Token) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var stale []domain.Token
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Find(&stale).Error
		if err != nil {
			return err
		}
		if len(stale) > 0 {
			if err := tx.Delete(&domain.Token{}, "user_id = ?", userID).Error; err != nil {
				return err
			}
		}
		return tx.Create(newToken).Error
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "token", "replace_for_user", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "replace_for_user", "success")
	return nil
}

func (r *GormTokenRepository) DeleteByID(id string) error {
	res := r.db.Delete(&domain.Token{}, "id = ?", id)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "token", "delete_by_id", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "token", "delete_by_id", "not_found")
		return ErrTokenNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "delete_by_id", "success")
	return nil
}

func (r *GormTokenRepository) DeleteByUser(userID string) (int64, error) {
	res := r.db.Delete(&domain.Token{}, "user_id = ?", userID)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "token", "delete_by_user", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "delete_by_user", "success")
	return res.RowsAffected, nil
}
