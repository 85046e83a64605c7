// Package services contains server-side business logic. This file implements
// IdentityService: registration, login, refresh-token rotation, email
// verification and deletion. Every state change is stored together with the
// events it causes; the outbox relay publishes them afterwards.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/metrics"
	"github.com/dmitrijs2005/accountkeeper/internal/server/auth"
	"github.com/dmitrijs2005/accountkeeper/internal/server/events"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/outbox"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const verificationTokenLength = 32

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// hashPassword is a seam so tests can use a cheap bcrypt cost.
var hashPassword = auth.HashPassword

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// VerificationResult is the outcome of a successful VerifyEmail call.
type VerificationResult string

const (
	VerificationVerified        VerificationResult = "verified"
	VerificationAlreadyVerified VerificationResult = "already_verified"
)

// RegisterRequest is the input of Register. Role defaults to common.DefaultRole
// and DisplayName to Username.
type RegisterRequest struct {
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	DisplayName string  `json:"displayName"`
	Location    *string `json:"location"`
	Occupation  *string `json:"occupation"`
	Role        string  `json:"role"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Email, validation.Required, validation.Match(emailPattern)),
		validation.Field(&r.Password, validation.Required, validation.By(maxBytes(auth.MaxPasswordBytes))),
		validation.Field(&r.Role, validation.In(common.DefaultRole, common.AdminRole)),
	)
}

// maxBytes bounds the encoded length; validation.Length counts runes.
func maxBytes(n int) validation.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); len(s) > n {
			return fmt.Errorf("must be at most %d bytes long", n)
		}
		return nil
	}
}

// VerifyEmailRequest is the input of VerifyEmail. Location and Occupation are
// echoed from the verification link into the MailVerified event.
type VerifyEmailRequest struct {
	IdentityID string  `json:"identityId"`
	Token      string  `json:"token"`
	Location   *string `json:"location"`
	Occupation *string `json:"occupation"`
}

func (r VerifyEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IdentityID, validation.Required),
		validation.Field(&r.Token, validation.Required),
	)
}

type IdentityService struct {
	repomanager repomanager.RepositoryManager
	tokens      *auth.TokenIssuer
	log         logging.Logger
	now         func() time.Time
}

func NewIdentityService(m repomanager.RepositoryManager, tokens *auth.TokenIssuer, log logging.Logger) *IdentityService {
	return &IdentityService{
		repomanager: m,
		tokens:      tokens,
		log:         log.With("module", "identity"),
		now:         time.Now,
	}
}

// Register creates an identity and queues MailVerifyRequested and UserCreated
// in the same unit of work. A taken id or email yields common.ErrAlreadyExists.
func (s *IdentityService) Register(ctx context.Context, req RegisterRequest) (pair *TokenPair, err error) {
	defer observe("register", time.Now(), &err)

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if req.Role == "" {
		req.Role = common.DefaultRole
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	hash, err := hashPassword(req.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: password: %v", common.ErrValidation, err)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	verificationToken, err := common.MakeRandBase64String(verificationTokenLength)
	if err != nil {
		return nil, fmt.Errorf("verification token: %w", err)
	}

	identity := &models.Identity{
		ID:                     uuid.NewString(),
		Username:               req.Username,
		Email:                  req.Email,
		PasswordHash:           hash,
		EmailVerificationToken: &verificationToken,
		Role:                   req.Role,
		Version:                1,
		CreatedAt:              s.now().UTC(),
	}
	pair, err = s.issueInto(identity)
	if err != nil {
		return nil, err
	}

	err = s.repomanager.WithTx(ctx, func(ctx context.Context, tx repomanager.RepositoryManager) error {
		if err := tx.Identities().Create(ctx, identity); err != nil {
			return err
		}
		if err := s.appendEvent(ctx, tx.Outbox(), events.MailVerifyRequested{
			IdentityID:        identity.ID,
			Email:             identity.Email,
			VerificationToken: verificationToken,
			Username:          identity.Username,
			DisplayName:       req.DisplayName,
			Location:          req.Location,
			Occupation:        req.Occupation,
		}); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx.Outbox(), events.UserCreated{
			IdentityID:  identity.ID,
			Username:    identity.Username,
			DisplayName: req.DisplayName,
			Email:       identity.Email,
			Role:        identity.Role,
			Location:    req.Location,
			Occupation:  req.Occupation,
		})
	})
	if err != nil {
		return nil, storeError("register", err)
	}

	s.log.Info(ctx, "identity registered", "identity_id", identity.ID)
	return pair, nil
}

// Login checks the password and rotates the refresh token. An unknown email
// and a wrong password are indistinguishable to the caller.
func (s *IdentityService) Login(ctx context.Context, email, password string) (pair *TokenPair, err error) {
	defer observe("login", time.Now(), &err)

	identity, err := s.repomanager.Identities().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, storeError("login", err)
	}

	ok, err := auth.CheckPassword(identity.PasswordHash, password)
	if err != nil {
		s.log.Error(ctx, "stored password hash is unusable", "identity_id", identity.ID, "error", err)
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}

	return s.rotate(ctx, identity, func(ctx context.Context) (*models.Identity, error) {
		fresh, err := s.repomanager.Identities().Get(ctx, identity.ID)
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return fresh, err
	})
}

// RefreshToken exchanges a live refresh token for a new pair. The presented
// token stops working once the rotation is stored.
func (s *IdentityService) RefreshToken(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	defer observe("refresh", time.Now(), &err)

	load := func(ctx context.Context) (*models.Identity, error) {
		if refreshToken == "" {
			return nil, common.ErrorUnauthorized
		}
		identity, err := s.repomanager.Identities().GetByRefreshToken(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, common.ErrorUnauthorized
			}
			return nil, err
		}
		if !identity.RefreshTokenExpiry.After(s.now()) {
			return nil, common.ErrorUnauthorized
		}
		return identity, nil
	}

	identity, err := load(ctx)
	if err != nil {
		return nil, storeError("refresh", err)
	}
	return s.rotate(ctx, identity, load)
}

// VerifyEmail completes the verification of identity req.IdentityID when
// req.Token matches. A second call after success reports
// VerificationAlreadyVerified.
func (s *IdentityService) VerifyEmail(ctx context.Context, req VerifyEmailRequest) (result VerificationResult, err error) {
	defer observe("verify_email", time.Now(), &err)

	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	for attempt := 0; ; attempt++ {
		identity, err := s.repomanager.Identities().Get(ctx, req.IdentityID)
		if err != nil {
			return "", storeError("verify email", err)
		}
		if identity.EmailVerificationToken == nil {
			return VerificationAlreadyVerified, nil
		}
		if subtle.ConstantTimeCompare([]byte(*identity.EmailVerificationToken), []byte(req.Token)) != 1 {
			return "", common.ErrInvalidToken
		}

		verifiedAt := s.now().UTC()
		identity.EmailVerificationToken = nil
		identity.EmailVerifiedAt = &verifiedAt

		err = s.repomanager.WithTx(ctx, func(ctx context.Context, tx repomanager.RepositoryManager) error {
			if err := tx.Identities().Replace(ctx, identity); err != nil {
				return err
			}
			return s.appendEvent(ctx, tx.Outbox(), events.MailVerified{
				IdentityID: identity.ID,
				Username:   identity.Username,
				Email:      identity.Email,
				Location:   req.Location,
				Occupation: req.Occupation,
			})
		})
		if err == nil {
			s.log.Info(ctx, "email verified", "identity_id", identity.ID)
			return VerificationVerified, nil
		}
		if !errors.Is(err, common.ErrVersionConflict) || attempt == 1 {
			return "", storeError("verify email", err)
		}
	}
}

// Delete removes the identity and queues UserDeleted. actorID must be the
// identity itself or an identity holding common.AdminRole.
func (s *IdentityService) Delete(ctx context.Context, actorID, id string) (err error) {
	defer observe("delete", time.Now(), &err)

	if err := authorize(ctx, s.repomanager, actorID, id); err != nil {
		return err
	}

	if _, err := s.repomanager.Identities().Get(ctx, id); err != nil {
		return storeError("delete", err)
	}

	err = s.repomanager.WithTx(ctx, func(ctx context.Context, tx repomanager.RepositoryManager) error {
		if err := tx.Identities().Delete(ctx, id); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx.Outbox(), events.UserDeleted{IdentityID: id})
	})
	if err != nil {
		return storeError("delete", err)
	}

	s.log.Info(ctx, "identity deleted", "identity_id", id, "actor_id", actorID)
	return nil
}

// authorize allows actorID to act on id when they are the same identity or
// the actor is an admin.
func authorize(ctx context.Context, m repomanager.RepositoryManager, actorID, id string) error {
	if actorID == "" {
		return common.ErrorUnauthorized
	}
	if actorID == id {
		return nil
	}
	actor, err := m.Identities().Get(ctx, actorID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorUnauthorized
		}
		return storeError("authorize", err)
	}
	if !actor.HasRole(common.AdminRole) {
		return common.ErrForbidden
	}
	return nil
}

// rotate stores a fresh token pair on identity. On a version conflict it
// reloads once through reload and tries again.
func (s *IdentityService) rotate(ctx context.Context, identity *models.Identity,
	reload func(ctx context.Context) (*models.Identity, error)) (*TokenPair, error) {

	for attempt := 0; ; attempt++ {
		pair, err := s.issueInto(identity)
		if err != nil {
			return nil, err
		}

		err = s.repomanager.Identities().Replace(ctx, identity)
		if err == nil {
			return pair, nil
		}
		if !errors.Is(err, common.ErrVersionConflict) || attempt == 1 {
			return nil, storeError("rotate", err)
		}

		s.log.Debug(ctx, "refresh token rotation raced, retrying", "identity_id", identity.ID)
		identity, err = reload(ctx)
		if err != nil {
			return nil, storeError("rotate", err)
		}
	}
}

// issueInto mints a token pair and stores the new refresh token on identity.
func (s *IdentityService) issueInto(identity *models.Identity) (*TokenPair, error) {
	refresh, expiry, err := s.tokens.IssueRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	access, err := s.tokens.IssueAccessToken(identity.ID, identity.Email, identity.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	identity.RefreshToken = refresh
	identity.RefreshTokenExpiry = expiry
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *IdentityService) appendEvent(ctx context.Context, repo outbox.Repository, e events.Event) error {
	env, err := events.NewEnvelope(uuid.NewString(), e, s.now())
	if err != nil {
		return err
	}
	return repo.Append(ctx, &models.OutboxRecord{
		ID:         env.ID,
		EventKind:  string(env.Kind),
		IdentityID: env.IdentityID,
		Payload:    env.Payload,
		OccurredAt: env.OccurredAt,
	})
}

var knownErrors = []error{
	common.ErrorNotFound,
	common.ErrAlreadyExists,
	common.ErrVersionConflict,
	common.ErrorUnauthorized,
	common.ErrForbidden,
	common.ErrValidation,
	common.ErrInvalidToken,
}

// storeError passes domain errors through and marks everything else as a
// dependency failure.
func storeError(op string, err error) error {
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrDependency, err)
}

func observe(op string, start time.Time, err *error) {
	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.OperationsTotal.WithLabelValues(op, metrics.Outcome(*err)).Inc()
}
