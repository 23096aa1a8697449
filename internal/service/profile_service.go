package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/geoattend-api/internal/dto"
	"github.com/noah-isme/geoattend-api/internal/models"
	"github.com/noah-isme/geoattend-api/internal/repository"
)

// ProfileService reads and edits the authenticated user's own profile.
type ProfileService interface {
	Me(ctx context.Context, userID uint) (dto.ProfileResponse, error)
	UpdateMe(ctx context.Context, userID uint, req dto.UpdateProfileRequest) (dto.ProfileResponse, error)
}

type profileService struct {
	users        repository.UserRepository
	validator    *validator.Validate
	policy       *bluemonday.Policy
	storeTimeout time.Duration
	logger       zerolog.Logger
}

// NewProfileService constructs the profile service.
func NewProfileService(users repository.UserRepository, validate *validator.Validate, storeTimeout time.Duration, logger zerolog.Logger) ProfileService {
	if storeTimeout <= 0 {
		storeTimeout = 3 * time.Second
	}
	return &profileService{
		users:        users,
		validator:    validate,
		policy:       bluemonday.StrictPolicy(),
		storeTimeout: storeTimeout,
		logger:       logger.With().Str("component", "profile_service").Logger(),
	}
}

func (s *profileService) Me(ctx context.Context, userID uint) (dto.ProfileResponse, error) {
	if userID == 0 {
		return dto.ProfileResponse{}, ErrUnauthorized
	}

	user, err := s.load(ctx, userID)
	if err != nil {
		return dto.ProfileResponse{}, err
	}
	return toProfile(user), nil
}

func (s *profileService) UpdateMe(ctx context.Context, userID uint, req dto.UpdateProfileRequest) (dto.ProfileResponse, error) {
	if userID == 0 {
		return dto.ProfileResponse{}, ErrUnauthorized
	}

	req.Name = strings.TrimSpace(s.policy.Sanitize(req.Name))
	req.Gender = strings.ToLower(strings.TrimSpace(s.policy.Sanitize(req.Gender)))
	if s.validator != nil {
		if err := s.validator.Struct(req); err != nil {
			return dto.ProfileResponse{}, err
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.users.UpdateProfile(opCtx, userID, req.Name, req.Gender); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProfileResponse{}, ErrUserNotFound
		}
		return dto.ProfileResponse{}, fmt.Errorf("%w: update profile: %v", ErrPersistenceFailure, err)
	}

	user, err := s.load(ctx, userID)
	if err != nil {
		return dto.ProfileResponse{}, err
	}
	s.logger.Info().Uint("user_id", userID).Msg("profile updated")
	return toProfile(user), nil
}

func (s *profileService) load(ctx context.Context, userID uint) (models.User, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.users.GetByID(opCtx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("%w: load user: %v", ErrPersistenceFailure, err)
	}
	return user, nil
}

func toProfile(user models.User) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:     user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Gender: user.Gender,
		Role:   user.Role,
	}
}
