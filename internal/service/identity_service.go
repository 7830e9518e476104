package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"github.com/gekymedia/gekychat-sub007/internal/apperr"
	"github.com/gekymedia/gekychat-sub007/internal/cache"
	"github.com/gekymedia/gekychat-sub007/internal/models"
	"github.com/gekymedia/gekychat-sub007/internal/repository"
	"github.com/gekymedia/gekychat-sub007/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// IdentityService maps phone numbers and API credentials to users.
type IdentityService struct {
	store       repository.Store
	users       *cache.UserCache
	countryCode string
	log         *zap.Logger
}

func NewIdentityService(store repository.Store, users *cache.UserCache, countryCode string, log *zap.Logger) *IdentityService {
	return &IdentityService{store: store, users: users, countryCode: countryCode, log: log}
}

// LoadUser returns the user row for an authenticated ID.
func (s *IdentityService) LoadUser(ctx context.Context, userID uint) (*models.User, error) {
	u, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, storeError(err)
	}
	return u, nil
}

// Normalize canonicalizes a raw phone number using the default country code.
func (s *IdentityService) Normalize(raw string) (string, error) {
	phone := validation.NormalizePhone(raw, s.countryCode)
	if phone == "" {
		return "", apperr.ErrInvalidPhone
	}
	return phone, nil
}

// ResolveUser finds the user for a normalized phone: exact match first, then
// the last nine digits. Several suffix matches resolve to the lowest ID.
func (s *IdentityService) ResolveUser(ctx context.Context, phone string) (*models.User, error) {
	if id, ok := s.users.GetUserIDByPhone(ctx, phone); ok {
		if u, err := s.store.Users().FindByID(ctx, id); err == nil {
			return u, nil
		}
	}

	u, err := s.lookup(ctx, phone)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetUserIDByPhone(ctx, phone, u.ID); err != nil {
		s.log.Debug("phone cache write failed", zap.Error(err))
	}
	return u, nil
}

func (s *IdentityService) lookup(ctx context.Context, phone string) (*models.User, error) {
	u, err := s.store.Users().FindByPhone(ctx, phone)
	if err == nil {
		return u, nil
	}
	if !repository.IsNotFound(err) {
		return nil, storeError(err)
	}

	suffix := validation.PhoneSuffix(phone)
	if len(suffix) < 9 {
		return nil, apperr.ErrRecipientNotFound
	}
	candidates, err := s.store.Users().FindByPhoneSuffix(ctx, suffix, 2)
	if err != nil {
		return nil, storeError(err)
	}
	if len(candidates) == 0 {
		return nil, apperr.ErrRecipientNotFound
	}
	if len(candidates) > 1 {
		s.log.Warn("ambiguous phone suffix match, using lowest id",
			zap.String("suffix", suffix),
			zap.Uint("user_id", candidates[0].ID),
			zap.Uint("other_user_id", candidates[1].ID))
	}
	return &candidates[0], nil
}

// ResolveOrAutoCreate resolves phone, creating an unverified user when the
// caller is allowed to. A concurrent create of the same phone yields the
// winner's row with autoCreated=false.
func (s *IdentityService) ResolveOrAutoCreate(ctx context.Context, phone string, caller Caller) (*models.User, bool, error) {
	u, err := s.ResolveUser(ctx, phone)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, apperr.ErrRecipientNotFound) {
		return nil, false, err
	}
	if !caller.CanAutoCreate {
		return nil, false, apperr.ErrRecipientNotFound
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, apperr.Internal(err)
	}
	user := &models.User{
		Phone:         phone,
		PasswordHash:  string(hash),
		PhoneVerified: false,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if !repository.IsDuplicate(err) {
			return nil, false, storeError(err)
		}
		winner, err := s.store.Users().FindByPhone(ctx, phone)
		if err != nil {
			return nil, false, storeError(err)
		}
		return winner, false, nil
	}

	s.log.Info("auto-created user",
		zap.Uint("user_id", user.ID),
		zap.Uint("caller_user_id", caller.UserID),
		zap.Uint("platform_client_id", caller.PlatformClientID))
	return user, true, nil
}

// AuthenticateClient checks platform credentials. Unknown, revoked and
// mismatched clients are indistinguishable to the caller.
func (s *IdentityService) AuthenticateClient(ctx context.Context, clientID, secret string) (*models.PlatformClient, error) {
	if clientID == "" || secret == "" {
		return nil, apperr.ErrInvalidCredentials
	}
	client, err := s.store.PlatformClients().FindByClientID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, storeError(err)
	}

	sum := sha256.Sum256([]byte(secret))
	if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(client.SecretHash)) != 1 {
		return nil, apperr.ErrInvalidCredentials
	}
	if client.IsRevoked() {
		return nil, apperr.ErrInvalidCredentials
	}
	if client.Owner.ID != 0 && client.Owner.IsBanned {
		return nil, apperr.ErrUserBanned
	}
	return client, nil
}
