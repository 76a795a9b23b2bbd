package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/skindd/doclogs/internal/platform/apperr"
)

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

type Service struct {
	store  Store
	hasher Hasher
	logger zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewService(store Store, hasher Hasher, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		hasher: hasher,
		logger: logger.With().Str("component", "identity").Logger(),
	}
}

func checkPassword(field, password string) error {
	if password == "" {
		return apperr.Validation(field + " is required")
	}
	if len(password) > maxPasswordBytes {
		return apperr.Validation(fmt.Sprintf("%s must be at most %d bytes", field, maxPasswordBytes))
	}
	return nil
}

func (s *Service) Register(ctx context.Context, doctorID, username, password string) (*Doctor, error) {
	doctorID = strings.TrimSpace(doctorID)
	username = strings.TrimSpace(username)
	if doctorID == "" || username == "" {
		return nil, apperr.Validation("doctorId, username and password are required")
	}
	if err := checkPassword("password", password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}

	d := &Doctor{DoctorID: doctorID, Username: username, CredentialHash: hash}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info().Str("doctor_id", doctorID).Msg("doctor registered")
	return d, nil
}

// Login returns ErrInvalidCredentials for an unknown id and for a wrong
// password alike. Unknown ids are still compared against a dummy hash so both
// paths cost one bcrypt comparison. Passwords over 72 bytes never match.
func (s *Service) Login(ctx context.Context, doctorID, password string) (*Doctor, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" || password == "" {
		return nil, apperr.Validation("doctorId and password are required")
	}

	d, err := s.store.GetByID(ctx, doctorID)
	if err != nil {
		if !errors.Is(err, ErrIdentityNotFound) {
			return nil, err
		}
		_ = s.hasher.Compare(s.dummy(), password)
		s.logger.Info().Msg("login failed")
		return nil, ErrInvalidCredentials
	}

	// Longer input cannot match: bcrypt would truncate it to a stored prefix.
	if len(password) > maxPasswordBytes {
		_ = s.hasher.Compare(s.dummy(), password[:maxPasswordBytes])
		s.logger.Info().Msg("login failed")
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(d.CredentialHash, password); err != nil {
		s.logger.Info().Msg("login failed")
		return nil, ErrInvalidCredentials
	}
	return d, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("doclogs-placeholder-credential")
		if err != nil {
			s.logger.Error().Err(err).Msg("dummy hash")
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// ResetCredential requires doctorID and username to match the same record.
func (s *Service) ResetCredential(ctx context.Context, doctorID, username, newPassword string) error {
	doctorID = strings.TrimSpace(doctorID)
	username = strings.TrimSpace(username)
	if doctorID == "" || username == "" {
		return apperr.Validation("doctorId, username and newPassword are required")
	}
	if err := checkPassword("newPassword", newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash credential: %w", err)
	}
	if err := s.store.UpdateCredential(ctx, doctorID, username, hash); err != nil {
		return err
	}
	s.logger.Info().Str("doctor_id", doctorID).Msg("credential reset")
	return nil
}

func (s *Service) Exists(ctx context.Context, doctorID string) (bool, error) {
	return s.store.Exists(ctx, doctorID)
}
