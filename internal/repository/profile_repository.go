package repository

import (
	"context"
	"errors"

	"github.com/craftauth/yggdrasil/internal/domain"
	"github.com/craftauth/yggdrasil/internal/observability"

	"gorm.io/gorm"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileRepository interface {
	FindByID(id string) (*domain.Profile, error)
	FindByName(name string) (*domain.Profile, error)
	ListByUser(userID string) ([]domain.Profile, error)
	Create(profile *domain.Profile) error
	Update(profile *domain.Profile) error
}

type GormProfileRepository struct{ db *gorm.DB }

func NewProfileRepository(db *gorm.DB) ProfileRepository { return &GormProfileRepository{db: db} }

func (r *GormProfileRepository) FindByID(id string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "profile", "find_by_id", "not_found")
			return nil, ErrProfileNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "profile", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "profile", "find_by_id", "success")
	return &p, nil
}

func (r *GormProfileRepository) FindByName(name string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.Where("name = ?", name).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "profile", "find_by_name", "not_found")
			return nil, ErrProfileNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "profile", "find_by_name", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "profile", "find_by_name", "success")
	return &p, nil
}

func (r *GormProfileRepository) ListByUser(userID string) ([]domain.Profile, error) {
	var profiles []domain.Profile
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&profiles).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "profile", "list_by_user", "error")
		return profiles, err
	}
	observability.RecordRepositoryOperation(context.Background(), "profile", "list_by_user", "success")
	return profiles, err
}

func (r *GormProfileRepository) Create(profile *domain.Profile) error {
	err := r.db.Create(profile).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "profile", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "profile", "create", "success")
	return nil
}

func (r *GormProfileRepository) Update(profile *domain.Profile) error {
	err := r.db.Save(profile).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "profile", "update", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "profile", "update", "success")
	return nil
}
