package authentication

import (
	"context"

	"go.uber.org/zap"
)

// SessionInvalidator ends sessions without minting anything: logout of a
// single refresh token and revocation of everything a person holds after a
// password change.
type SessionInvalidator struct {
	store  RefreshTokenStore
	hasher tokenHasher
	logger *zap.Logger
}

func NewSessionInvalidator(store RefreshTokenStore, refreshSecret string, logger *zap.Logger) *SessionInvalidator {
	return &SessionInvalidator{
		store:  store,
		hasher: newTokenHasher(refreshSecret),
		logger: logger,
	}
}

// Logout revokes the token if it is currently Active. Unknown and already used
// tokens report false without an error; only a structurally invalid token is
// rejected.
func (s *SessionInvalidator) Logout(ctx context.Context, refreshToken string) (bool, error) {
	if err := checkRefreshSecret(refreshToken); err != nil {
		return false, err
	}
	id := s.hasher.recordID(refreshToken)

	revoked, err := s.store.RevokeOne(ctx, id)
	if err != nil {
		s.logger.Error("logout revoke failed", zap.String("token", shortID(id)), zap.Error(err))
		return false, err
	}
	if !revoked {
		s.logger.Debug("logout of non-active refresh token", zap.String("token", shortID(id)))
	}
	return revoked, nil
}

// OnPasswordChanged revokes every non-revoked token across all of the
// person's families and returns how many changed.
func (s *SessionInvalidator) OnPasswordChanged(ctx context.Context, personID uint) (int64, error) {
	revoked, err := s.store.RevokeAllForPerson(ctx, personID)
	if err != nil {
		s.logger.Error("revoking sessions after password change failed", zap.Uint("person_id", personID), zap.Error(err))
		return 0, err
	}
	s.logger.Info("sessions revoked after password change",
		zap.Uint("person_id", personID),
		zap.Int64("revoked", revoked))
	return revoked, nil
}
