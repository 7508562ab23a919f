package person

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const PasswordMinimumLength = 8

var (
	ErrHashingPasswordFailed = errors.New("hashing password failed")
	ErrInvalidEmailFormat    = errors.New("invalid email format")
	ErrPasswordTooShort      = errors.New("password too short")
	ErrInvalidCredentials    = errors.New("invalid email or password")
)

// dummyHash keeps VerifyCredentials at bcrypt cost when the email is unknown.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("cafe-dummy-password"), bcrypt.DefaultCost)

// SessionRevoker ends every refresh session of a person. It is invoked after a
// password change has been persisted.
type SessionRevoker interface {
	OnPasswordChanged(ctx context.Context, personID uint) (int64, error)
}

type PersonService interface {
	CreatePerson(ctx context.Context, email, password string) (*Person, error)
	ReadPersonByEmail(ctx context.Context, email string) (*Person, error)
	ReadPersonByID(ctx context.Context, id uint) (*Person, error)
	VerifyCredentials(ctx context.Context, email, password string) (*Person, error)
	UpdateEmail(ctx context.Context, id uint, email string) error
	UpdatePassword(ctx context.Context, id uint, password string) (sessionsRevoked int64, err error)
	ConfirmEmail(ctx context.Context, id uint) error
	UpdateLastSeen(ctx context.Context, id uint) error
	DeletePerson(ctx context.Context, id uint) error
}

type personService struct {
	repo       PersonRepository
	revoker    SessionRevoker
	logger     *zap.Logger
	bcryptCost int
}

func NewPersonService(repo PersonRepository, revoker SessionRevoker, logger *zap.Logger) PersonService {
	return &personService{
		repo:       repo,
		revoker:    revoker,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
}

/** CREATE */
func (s *personService) CreatePerson(ctx context.Context, email, password string) (*Person, error) {
	if err := s.validateEmail(email); err != nil {
		s.logger.Warn("invalid email format", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	if err := s.validatePassword(password); err != nil {
		s.logger.Warn("invalid password format", zap.Error(err))
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return nil, ErrHashingPasswordFailed
	}

	person := NewPerson(email, string(hashed))

	if err := s.repo.Create(ctx, person); err != nil {
		s.logger.Error("failed to create person in repository", zap.Error(err))
		return nil, err
	}
	return person, nil
}

func (s *personService) validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmailFormat
	}
	return nil
}

func (s *personService) validatePassword(password string) error {
	if len(password) < PasswordMinimumLength {
		return ErrPasswordTooShort
	}
	return nil
}

/** READ */
func (s *personService) ReadPersonByEmail(ctx context.Context, email string) (*Person, error) {
	person, err := s.repo.ReadByEmail(ctx, email)
	if err != nil {
		s.logger.Error("failed to get person by email", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	return person, nil
}

func (s *personService) ReadPersonByID(ctx context.Context, id uint) (*Person, error) {
	person, err := s.repo.ReadByID(ctx, id)
	if errors.Is(err, ErrPersonNotFound) {
		s.logger.Debug("person not found", zap.Uint("id", id))
		return nil, err
	}
	if err != nil {
		s.logger.Error("failed to get person by ID", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return person, nil
}

// VerifyCredentials returns the person owning email when password matches.
// Unknown email and wrong password are reported identically.
func (s *personService) VerifyCredentials(ctx context.Context, email, password string) (*Person, error) {
	person, err := s.repo.ReadByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrPersonNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("failed to load person for credential check", zap.Error(err))
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(person.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return person, nil
}

/** UPDATE */
func (s *personService) UpdateEmail(ctx context.Context, id uint, email string) error {
	if err := s.validateEmail(email); err != nil {
		s.logger.Warn("invalid email format", zap.Uint("id", id), zap.String("email", email), zap.Error(err))
		return err
	}

	person, err := s.repo.ReadByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to update email, person not found", zap.Uint("id", id), zap.Error(err))
		return err
	}

	person.Email = email
	person.EmailConfirmed = false
	if err := s.repo.Update(ctx, person); err != nil {
		s.logger.Error("failed to update email in repository", zap.Uint("id", id), zap.String("email", email), zap.Error(err))
		return err
	}
	return nil
}

// UpdatePassword stores the new hash and then ends every refresh session the
// person holds, returning how many tokens were revoked.
func (s *personService) UpdatePassword(ctx context.Context, id uint, password string) (int64, error) {
	if err := s.validatePassword(password); err != nil {
		s.logger.Warn("invalid password format", zap.Uint("id", id), zap.Error(err))
		return 0, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return 0, ErrHashingPasswordFailed
	}

	person, err := s.repo.ReadByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to update password, person not found", zap.Uint("id", id), zap.Error(err))
		return 0, err
	}

	person.Password = string(hashed)
	if err := s.repo.Update(ctx, person); err != nil {
		s.logger.Error("failed to update password in repository", zap.Uint("id", id), zap.Error(err))
		return 0, err
	}

	if s.revoker == nil {
		return 0, nil
	}
	revoked, err := s.revoker.OnPasswordChanged(ctx, id)
	if err != nil {
		s.logger.Error("password changed but session revocation failed", zap.Uint("id", id), zap.Error(err))
		return 0, err
	}
	s.logger.Info("password changed", zap.Uint("id", id), zap.Int64("sessions_revoked", revoked))
	return revoked, nil
}

func (s *personService) ConfirmEmail(ctx context.Context, id uint) error {
	person, err := s.repo.ReadByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to confirm email, person not found", zap.Uint("id", id), zap.Error(err))
		return err
	}
	if person.EmailConfirmed {
		return nil
	}

	person.EmailConfirmed = true
	if err := s.repo.Update(ctx, person); err != nil {
		s.logger.Error("failed to confirm email in repository", zap.Uint("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *personService) UpdateLastSeen(ctx context.Context, id uint) error {
	person, err := s.repo.ReadByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to update last seen, person not found", zap.Uint("id", id), zap.Error(err))
		return err
	}

	person.LastSeen = time.Now().UTC()
	if err := s.repo.Update(ctx, person); err != nil {
		s.logger.Error("failed to update last seen in repository", zap.Uint("id", id), zap.Error(err))
		return err
	}
	return nil
}

/** DELETE */
func (s *personService) DeletePerson(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete person", zap.Uint("id", id), zap.Error(err))
		return err
	}
	return nil
}
