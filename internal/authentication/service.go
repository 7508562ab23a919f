package authentication

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mehmetcc/cafe-authentication-service/internal/person"
	"github.com/mehmetcc/cafe-authentication-service/internal/utils"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrAccountNotConfirmed = errors.New("account email not confirmed")
	ErrLoginFailed         = errors.New("login failed")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// CredentialVerifier resolves identities; password storage lives behind it.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, email, password string) (*person.Person, error)
	ReadPersonByID(ctx context.Context, id uint) (*person.Person, error)
	UpdateLastSeen(ctx context.Context, id uint) error
}

// TokenPair is what a successful login or refresh hands to the transport.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type TokenSettings struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

type AuthenticationService interface {
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) (revoked bool, err error)
}

type authenticationService struct {
	verifier    CredentialVerifier
	store       RefreshTokenStore
	invalidator *SessionInvalidator
	logger      *zap.Logger
	hasher      tokenHasher
	settings    TokenSettings
}

func NewAuthenticationService(
	verifier CredentialVerifier,
	store RefreshTokenStore,
	invalidator *SessionInvalidator,
	logger *zap.Logger,
	settings TokenSettings,
) AuthenticationService {
	return &authenticationService{
		verifier:    verifier,
		store:       store,
		invalidator: invalidator,
		logger:      logger,
		hasher:      newTokenHasher(settings.RefreshSecret),
		settings:    settings,
	}
}

func (a *authenticationService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := a.verifier.VerifyCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, person.ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if !user.EmailConfirmed {
		return nil, ErrAccountNotConfirmed
	}

	pair, err := a.startFamily(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := a.verifier.UpdateLastSeen(ctx, user.ID); err != nil {
		a.logger.Warn("failed to record last seen", zap.Uint("person_id", user.ID), zap.Error(err))
	}
	return pair, nil
}

// startFamily issues the root token of a new rotation chain for a verified person.
func (a *authenticationService) startFamily(ctx context.Context, user *person.Person) (*TokenPair, error) {
	accessJWT, err := a.issueAccessToken(user)
	if err != nil {
		return nil, err
	}

	secret, id, err := a.hasher.newSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	root := &RefreshTokenRecord{
		ID:        id,
		PersonID:  user.ID,
		ExpiresAt: time.Now().UTC().Add(a.settings.RefreshTTL),
	}
	if err := a.store.Create(ctx, root); err != nil {
		return nil, err
	}

	a.logger.Info("refresh token family started",
		zap.Uint("person_id", user.ID),
		zap.String("family", shortID(root.FamilyID)))

	return &TokenPair{
		AccessToken:      accessJWT,
		RefreshToken:     secret,
		RefreshExpiresAt: root.ExpiresAt,
	}, nil
}

// Refresh exchanges an Active refresh token for a new pair. Any presented
// token that is no longer Active burns its whole family.
func (a *authenticationService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if checkRefreshSecret(refreshToken) != nil {
		return nil, ErrInvalidRefreshToken
	}
	id := a.hasher.recordID(refreshToken)

	current, err := a.store.FindByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if current.IsExpired(now) {
		return nil, ErrInvalidRefreshToken
	}

	if !current.IsActive() {
		a.logger.Warn("refresh token reuse detected",
			zap.String("token", shortID(current.ID)),
			zap.String("status", string(current.Status)),
			zap.Uint("person_id", current.PersonID))
		if err := a.revokeFamily(ctx, current); err != nil {
			return nil, err
		}
		return nil, ErrInvalidRefreshToken
	}

	user, err := a.verifier.ReadPersonByID(ctx, current.PersonID)
	if errors.Is(err, person.ErrPersonNotFound) {
		if err := a.revokeFamily(ctx, current); err != nil {
			return nil, err
		}
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	accessJWT, err := a.issueAccessToken(user)
	if err != nil {
		return nil, err
	}

	secret, nextID, err := a.hasher.newSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	next := &RefreshTokenRecord{
		ID:        nextID,
		PersonID:  current.PersonID,
		FamilyID:  current.FamilyID,
		ExpiresAt: now.Add(a.settings.RefreshTTL),
	}
	if err := a.store.Create(ctx, next); err != nil {
		return nil, err
	}

	rotated, err := a.store.MarkRotated(ctx, current.ID, next.ID)
	if err != nil {
		a.discard(ctx, next)
		return nil, err
	}
	if !rotated {
		// Another request consumed this token first.
		a.logger.Warn("refresh token rotation lost race",
			zap.String("token", shortID(current.ID)),
			zap.Uint("person_id", current.PersonID))
		a.discard(ctx, next)
		if err := a.revokeFamily(ctx, current); err != nil {
			return nil, err
		}
		return nil, ErrInvalidRefreshToken
	}

	return &TokenPair{
		AccessToken:      accessJWT,
		RefreshToken:     secret,
		RefreshExpiresAt: next.ExpiresAt,
	}, nil
}

func (a *authenticationService) Logout(ctx context.Context, refreshToken string) (bool, error) {
	return a.invalidator.Logout(ctx, refreshToken)
}

func (a *authenticationService) revokeFamily(ctx context.Context, record *RefreshTokenRecord) error {
	revoked, err := a.store.RevokeFamily(ctx, record.FamilyID)
	if err != nil {
		a.logger.Error("failed to revoke refresh token family",
			zap.String("family", shortID(record.FamilyID)),
			zap.Error(err))
		return err
	}
	a.logger.Warn("refresh token family revoked",
		zap.String("family", shortID(record.FamilyID)),
		zap.Uint("person_id", record.PersonID),
		zap.Int64("revoked", revoked))
	return nil
}

// discard retires a replacement token that will never reach a client.
func (a *authenticationService) discard(ctx context.Context, record *RefreshTokenRecord) {
	if _, err := a.store.RevokeOne(ctx, record.ID); err != nil {
		a.logger.Error("failed to discard unused refresh token",
			zap.String("token", shortID(record.ID)),
			zap.Error(err))
	}
}

func (a *authenticationService) issueAccessToken(user *person.Person) (string, error) {
	return utils.IssueAccessToken(
		strconv.FormatUint(uint64(user.ID), 10),
		user.Email,
		user.Role,
		a.settings.AccessSecret,
		a.settings.AccessTTL,
	)
}
