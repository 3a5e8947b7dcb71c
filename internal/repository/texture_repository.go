package repository

import (
	"context"
	"errors"

	"github.com/craftauth/yggdrasil/internal/domain"
	"github.com/craftauth/yggdrasil/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TextureRepository interface {
	ListByProfile(profileID string) ([]domain.Texture, error)
	// Upsert stores the texture, replacing any existing texture of the
	// same type on the same profile.
	Upsert(texture *domain.Texture) error
	DeleteByProfileAndType(profileID string, textureType domain.TextureType) error
}

type GormTextureRepository struct{ db *gorm.DB }

func NewTextureRepository(db *gorm.DB) TextureRepository { return &GormTextureRepository{db: db} }

func (r *GormTextureRepository) ListByProfile(profileID string) ([]domain.Texture, error) {
	var textures []domain.Texture
	err := r.db.Where("profile_id = ?", profileID).Find(&textures).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "texture", "list_by_profile", "error")
		return textures, err
	}
	observability.RecordRepositoryOperation(context.Background(), "texture", "list_by_profile", "success")
	return textures, err
}

func (r *GormTextureRepository) Upsert(texture *domain.Texture) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing domain.Texture
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("profile_id = ? AND type = ?", texture.ProfileID, texture.Type).
			First(&existing).Error
		switch {
		case err == nil:
			existing.Hash = texture.Hash
			return tx.Save(&existing).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(texture).Error
		default:
			return err
		}
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "texture", "upsert", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "texture", "upsert", "success")
	return nil
}

func (r *GormTextureRepository) DeleteByProfileAndType(profileID string, textureType domain.TextureType) error {
	err := r.db.Delete(&domain.Texture{}, "profile_id = ? AND type = ?", profileID, textureType).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "texture", "delete_by_profile_and_type", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "texture", "delete_by_profile_and_type", "success")
	return nil
}
