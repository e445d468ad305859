// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passpoll.
//
// go-passpoll is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package webauthn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-passpoll/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passpoll/pkg/metrics"
	"github.com/jeremyhahn/go-passpoll/pkg/polling"
)

// MaxUsernameLength bounds user names accepted at registration.
const MaxUsernameLength = 64

// TokenIssuer mints a session token for an authenticated user id.
type TokenIssuer interface {
	Encode(userID string) (string, error)
}

// ServiceParams contains dependencies for creating a ceremony Service.
type ServiceParams struct {
	// Config is the relying party configuration (required).
	Config *Config

	// Users persists users and their passkeys (required).
	Users polling.UserRepository

	// Tokens mints session tokens after a successful login (required).
	Tokens TokenIssuer

	// Registrations and Authentications hold pending ceremonies. New stores
	// with Config.ChallengeTTL are created when nil.
	Registrations   *RegistrationStore
	Authentications *AuthenticationStore

	// Logger defaults to a no-op logger.
	Logger logger.Logger

	// Now overrides the clock used for passkey timestamps.
	Now func() time.Time
}

// Service runs WebAuthn registration and authentication ceremonies against
// the user repository.
type Service struct {
	webauthn        *webauthn.WebAuthn
	config          *Config
	users           polling.UserRepository
	tokens          TokenIssuer
	registrations   *RegistrationStore
	authentications *AuthenticationStore
	logger          logger.Logger
	now             func() time.Time
}

// NewService creates a new ceremony service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	s := &Service{
		webauthn:        wa,
		config:          params.Config,
		users:           params.Users,
		tokens:          params.Tokens,
		registrations:   params.Registrations,
		authentications: params.Authentications,
		logger:          params.Logger,
		now:             params.Now,
	}
	if s.registrations == nil {
		s.registrations = NewChallengeStore[RegistrationCeremony](params.Config.ChallengeTTL)
	}
	if s.authentications == nil {
		s.authentications = NewChallengeStore[AuthenticationCeremony](params.Config.ChallengeTTL)
	}
	if s.logger == nil {
		s.logger = logger.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// Registrations returns the pending registration store.
func (s *Service) Registrations() *RegistrationStore {
	return s.registrations
}

// Authentications returns the pending authentication store.
func (s *Service) Authentications() *AuthenticationStore {
	return s.authentications
}

// StartRegistration begins a registration ceremony for a new user name.
// It returns the creation options for the client and the nonce under which
// the ceremony was stored.
func (s *Service) StartRegistration(ctx context.Context, username string) (opts *protocol.CredentialCreation, nonce string, err error) {
	const op = "start registration"
	defer s.record(metrics.OpBeginRegistration, time.Now(), &err)

	if err := ValidateUsername(username); err != nil {
		return nil, "", NewError(op, err)
	}

	if _, err := s.users.GetUser(ctx, username); err == nil {
		return nil, "", NewError(op, ErrUserAlreadyExists)
	} else if !polling.IsUserNotFound(err) {
		return nil, "", NewError(op, err)
	}

	userID := uuid.New()
	options, state, err := s.webauthn.BeginRegistration(newCeremonyUser(userID, username, nil))
	if err != nil {
		return nil, "", classify(op, ErrUnknown, err)
	}

	nonce, err = NewNonce()
	if err != nil {
		return nil, "", classify(op, ErrUnknown, err)
	}
	s.registrations.Insert(nonce, RegistrationCeremony{
		Username: username,
		UserID:   userID.String(),
		State:    state,
	})
	metrics.SetPendingChallenges(metrics.CeremonyRegistration, s.registrations.Count())

	s.logger.DebugContext(ctx, "registration started",
		logger.String("user_name", username),
		logger.String("user_id", userID.String()))
	return options, nonce, nil
}

// FinishRegistration verifies the attestation for the ceremony stored under
// nonce and creates the user with its first passkey. The ceremony is
// consumed whatever the outcome.
func (s *Service) FinishRegistration(ctx context.Context, nonce string, response *protocol.ParsedCredentialCreationData) (user *polling.User, err error) {
	const op = "finish registration"
	defer s.record(metrics.OpFinishRegistration, time.Now(), &err)

	ceremony, ok := s.registrations.Take(nonce)
	metrics.SetPendingChallenges(metrics.CeremonyRegistration, s.registrations.Count())
	if !ok || nonce == "" {
		return nil, NewError(op, ErrCorruptSession)
	}
	if response == nil {
		return nil, NewError(op, ErrBadRequest)
	}

	userID, err := uuid.Parse(ceremony.UserID)
	if err != nil {
		return nil, NewError(op, ErrCorruptSession)
	}

	credential, err := s.webauthn.CreateCredential(
		newCeremonyUser(userID, ceremony.Username, nil), *ceremony.State, response)
	if err != nil {
		s.logger.WarnContext(ctx, "registration rejected",
			logger.String("user_name", ceremony.Username),
			logger.Error(err))
		return nil, classify(op, ErrBadRequest, err)
	}

	created, err := s.users.CreateUser(ctx, &polling.User{
		UserID:     ceremony.UserID,
		UserName:   ceremony.Username,
		Keys:       []polling.Passkey{FromWebAuthnCredential(credential, s.now())},
		OwnedPolls: []int64{},
		PollsVoted: []polling.Vote{},
	})
	if err != nil {
		return nil, NewError(op, err)
	}

	s.logger.InfoContext(ctx, "user registered",
		logger.String("user_name", created.UserName),
		logger.String("user_id", created.UserID))
	return created, nil
}

// StartAuthentication begins a login ceremony for an existing user. Any
// earlier unfinished login of the same user is discarded.
func (s *Service) StartAuthentication(ctx context.Context, username string) (opts *protocol.CredentialAssertion, err error) {
	const op = "start authentication"
	defer s.record(metrics.OpBeginLogin, time.Now(), &err)

	user, err := s.users.GetUser(ctx, username)
	if err != nil {
		return nil, NewError(op, err)
	}

	s.authentications.Remove(user.UserID)

	userID, err := uuid.Parse(user.UserID)
	if err != nil {
		return nil, classify(op, ErrInvalidInput, err)
	}

	options, state, err := s.webauthn.BeginLogin(newCeremonyUser(userID, user.UserName, user.Keys))
	if err != nil {
		return nil, classify(op, ErrUnknown, err)
	}

	s.authentications.Insert(user.UserID, AuthenticationCeremony{
		UserID: user.UserID,
		State:  state,
	})
	metrics.SetPendingChallenges(metrics.CeremonyAuthentication, s.authentications.Count())

	s.logger.DebugContext(ctx, "authentication started", logger.String("user_name", username))
	return options, nil
}

// FinishAuthentication verifies the assertion for username, persists the
// updated signature counter and returns a session token.
func (s *Service) FinishAuthentication(ctx context.Context, username string, response *protocol.ParsedCredentialAssertionData) (token string, err error) {
	const op = "finish authentication"
	defer s.record(metrics.OpFinishLogin, time.Now(), &err)

	user, err := s.users.GetUser(ctx, username)
	if err != nil {
		return "", NewError(op, err)
	}

	// The slot is consumed before verification so concurrent finishes of one
	// challenge cannot both succeed.
	ceremony, ok := s.authentications.Take(user.UserID)
	metrics.SetPendingChallenges(metrics.CeremonyAuthentication, s.authentications.Count())
	if !ok || ceremony.UserID != user.UserID {
		return "", NewError(op, ErrCorruptSession)
	}
	if response == nil {
		return "", NewError(op, ErrBadRequest)
	}

	userID, err := uuid.Parse(user.UserID)
	if err != nil {
		return "", classify(op, ErrInvalidInput, err)
	}

	credential, err := s.webauthn.ValidateLogin(newCeremonyUser(userID, user.UserName, user.Keys), *ceremony.State, response)
	if err != nil {
		s.logger.WarnContext(ctx, "authentication rejected",
			logger.String("user_name", username),
			logger.Error(err))
		return "", classify(op, ErrBadRequest, err)
	}
	if credential.Authenticator.CloneWarning {
		s.logger.WarnContext(ctx, "possible cloned authenticator",
			logger.String("user_name", username))
		return "", NewError(op, ErrClonedAuthenticator)
	}

	now := s.now()
	matched := false
	for i := range user.Keys {
		if updatePasskey(&user.Keys[i], credential, now) {
			matched = true
		}
	}
	if !matched {
		return "", classify(op, ErrBadRequest, errors.New("asserted credential is not registered"))
	}

	if err := s.users.UpdateCredentials(ctx, user.UserName, user.Keys); err != nil {
		return "", NewError(op, err)
	}

	token, err = s.tokens.Encode(user.UserID)
	if err != nil {
		return "", classify(op, ErrToken, err)
	}

	s.logger.InfoContext(ctx, "user authenticated", logger.String("user_name", username))
	return token, nil
}

// StartCleanup sweeps expired ceremonies from both stores every
// Config.CleanupInterval until ctx is cancelled or the returned function
// is called.
func (s *Service) StartCleanup(ctx context.Context) context.CancelFunc {
	stopReg := s.registrations.StartCleanupRoutine(ctx, s.config.CleanupInterval, func(n int) {
		metrics.RecordExpiredChallenges(metrics.CeremonyRegistration, n)
		metrics.SetPendingChallenges(metrics.CeremonyRegistration, s.registrations.Count())
	})
	stopAuth := s.authentications.StartCleanupRoutine(ctx, s.config.CleanupInterval, func(n int) {
		metrics.RecordExpiredChallenges(metrics.CeremonyAuthentication, n)
		metrics.SetPendingChallenges(metrics.CeremonyAuthentication, s.authentications.Count())
	})
	return func() {
		stopReg()
		stopAuth()
	}
}

func (s *Service) record(op string, start time.Time, err *error) {
	status := metrics.StatusSuccess
	if *err != nil {
		status = metrics.StatusError
		metrics.RecordError(op, "webauthn", errorType(*err))
	}
	metrics.RecordOperation(op, "webauthn", status, time.Since(start))
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrCorruptSession):
		return "corrupt_session"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrUserAlreadyExists):
		return "user_exists"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDatabase):
		return "database"
	case errors.Is(err, ErrToken):
		return "token"
	default:
		return "unknown"
	}
}

// ValidateUsername checks that name is non-empty, at most
// MaxUsernameLength bytes and free of whitespace and control characters.
func ValidateUsername(name string) error {
	if name == "" {
		return polling.InvalidInput("username is required")
	}
	if len(name) > MaxUsernameLength {
		return polling.InvalidInput("username exceeds %d characters", MaxUsernameLength)
	}
	if strings.IndexFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return polling.InvalidInput("username must not contain whitespace")
	}
	return nil
}
