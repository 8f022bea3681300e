// internal/services/profile_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/daemon"
	"github.com/javajoker/mpnode/internal/models"
)

const DefaultProfileName = "DEFAULT"

type AddressGenerator interface {
	NewAddress(ctx context.Context, opts daemon.AddressOptions) (string, error)
}

type ProfileService struct {
	db     *gorm.DB
	wallet AddressGenerator
}

func NewProfileService(db *gorm.DB, wallet AddressGenerator) *ProfileService {
	return &ProfileService{
		db:     db,
		wallet: wallet,
	}
}

func (s *ProfileService) FindOne(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, lookupError(err, "profile", id)
	}
	return &profile, nil
}

func (s *ProfileService) FindByName(ctx context.Context, name string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&profile).Error; err != nil {
		return nil, lookupError(err, "profile", name)
	}
	return &profile, nil
}

func (s *ProfileService) FindDefault(ctx context.Context) (*models.Profile, error) {
	return s.FindByName(ctx, DefaultProfileName)
}

// SeedDefaultProfile creates the default profile with a fresh wallet address.
func (s *ProfileService) SeedDefaultProfile(ctx context.Context) (*models.Profile, error) {
	profile, err := s.FindDefault(ctx)
	if err == nil {
		return profile, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	address, err := s.wallet.NewAddress(ctx, daemon.AddressOptions{Label: "_profile_" + DefaultProfileName})
	if err != nil {
		return nil, fmt.Errorf("failed to get address for default profile: %w", err)
	}

	profile = &models.Profile{
		Name:    DefaultProfileName,
		Address: address,
	}
	if err := s.db.WithContext(ctx).Create(profile).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.FindDefault(ctx)
		}
		return nil, fmt.Errorf("failed to create default profile: %w", err)
	}

	logrus.WithField("address", address).Info("Default profile created")
	return profile, nil
}
