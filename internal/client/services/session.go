// Package services contains application services for the accountkeeper
// client. SessionService keeps the token pair in the local database and
// refreshes it transparently when the server rejects an expired access token.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/accountkeeper/internal/client/client"
	"github.com/dmitrijs2005/accountkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/golang-jwt/jwt/v5"
)

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
)

// ErrNotLoggedIn is returned by calls that need a session when there is none.
var ErrNotLoggedIn = errors.New("not logged in")

// Session is the locally stored login. Identity fields come from the access
// token's claims.
type Session struct {
	IdentityID   string
	Email        string
	Role         string
	AccessToken  string
	RefreshToken string
}

type RegisterInput struct {
	Username    string
	Email       string
	DisplayName string
	Location    *string
	Occupation  *string
}

type SessionService interface {
	Register(ctx context.Context, in RegisterInput, password []byte) (*Session, error)
	Login(ctx context.Context, email string, password []byte) (*Session, error)
	Logout(ctx context.Context) error
	Current(ctx context.Context) (*Session, error)
	VerifyEmail(ctx context.Context, identityID, token string) (string, error)
	Profile(ctx context.Context, id string) (*client.Profile, error)
	UpdateProfile(ctx context.Context, upd client.ProfileUpdate) (*client.Profile, error)
	PictureUpload(ctx context.Context) (*client.PictureUpload, error)
	DeleteAccount(ctx context.Context) error
	Ping(ctx context.Context) error
}

type sessionService struct {
	client client.Client
	db     *sql.DB
}

func NewSessionService(c client.Client, db *sql.DB) SessionService {
	return &sessionService{client: c, db: db}
}

func (s *sessionService) getMetadataRepo(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

func (s *sessionService) Register(ctx context.Context, in RegisterInput, password []byte) (*Session, error) {
	pair, err := s.client.Register(ctx, client.RegisterRequest{
		Username:    in.Username,
		Email:       in.Email,
		Password:    string(password),
		DisplayName: in.DisplayName,
		Location:    in.Location,
		Occupation:  in.Occupation,
	})
	if err != nil {
		return nil, err
	}
	return s.save(ctx, pair)
}

func (s *sessionService) Login(ctx context.Context, email string, password []byte) (*Session, error) {
	pair, err := s.client.Login(ctx, email, string(password))
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	return s.save(ctx, pair)
}

// Logout forgets the local session. Tokens are not revoked server-side.
func (s *sessionService) Logout(ctx context.Context) error {
	return s.getMetadataRepo(s.db).Clear(ctx)
}

// Current returns the stored session or ErrNotLoggedIn.
func (s *sessionService) Current(ctx context.Context) (*Session, error) {
	values, err := s.getMetadataRepo(s.db).GetMany(ctx, keyAccessToken, keyRefreshToken)
	if err != nil {
		return nil, err
	}
	access, refresh := values[keyAccessToken], values[keyRefreshToken]
	if access == nil || refresh == nil {
		return nil, ErrNotLoggedIn
	}
	return sessionFromPair(&client.TokenPair{AccessToken: string(access), RefreshToken: string(refresh)})
}

func (s *sessionService) VerifyEmail(ctx context.Context, identityID, token string) (string, error) {
	if identityID == "" {
		sess, err := s.Current(ctx)
		if err != nil {
			return "", err
		}
		identityID = sess.IdentityID
	}
	return s.client.VerifyEmail(ctx, identityID, token)
}

// Profile fetches the profile with the given id, or the caller's own when id
// is empty.
func (s *sessionService) Profile(ctx context.Context, id string) (*client.Profile, error) {
	if id == "" {
		sess, err := s.Current(ctx)
		if err != nil {
			return nil, err
		}
		id = sess.IdentityID
	}
	return s.client.GetProfile(ctx, id)
}

func (s *sessionService) UpdateProfile(ctx context.Context, upd client.ProfileUpdate) (*client.Profile, error) {
	var p *client.Profile
	err := s.withSession(ctx, func(sess *Session) (err error) {
		p, err = s.client.UpdateProfile(ctx, sess.AccessToken, sess.IdentityID, upd)
		return err
	})
	return p, err
}

func (s *sessionService) PictureUpload(ctx context.Context) (*client.PictureUpload, error) {
	var u *client.PictureUpload
	err := s.withSession(ctx, func(sess *Session) (err error) {
		u, err = s.client.PictureUpload(ctx, sess.AccessToken, sess.IdentityID)
		return err
	})
	return u, err
}

// DeleteAccount deletes the caller's identity and, on success, the local
// session.
func (s *sessionService) DeleteAccount(ctx context.Context) error {
	err := s.withSession(ctx, func(sess *Session) error {
		return s.client.DeleteUser(ctx, sess.AccessToken, sess.IdentityID)
	})
	if err != nil {
		return err
	}
	return s.Logout(ctx)
}

func (s *sessionService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// withSession runs fn with the current session. When the server answers
// 401 the token pair is refreshed once and fn is retried.
func (s *sessionService) withSession(ctx context.Context, fn func(sess *Session) error) error {
	sess, err := s.Current(ctx)
	if err != nil {
		return err
	}

	err = fn(sess)
	if !errors.Is(err, client.ErrUnauthorized) {
		return err
	}

	pair, err := s.client.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			_ = s.Logout(ctx)
			return ErrNotLoggedIn
		}
		return fmt.Errorf("refresh error: %w", err)
	}
	if sess, err = s.save(ctx, pair); err != nil {
		return err
	}
	return fn(sess)
}

// save stores both tokens in one transaction.
func (s *sessionService) save(ctx context.Context, pair *client.TokenPair) (*Session, error) {
	sess, err := sessionFromPair(pair)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.getMetadataRepo(tx).SetMany(ctx, map[string][]byte{
			keyAccessToken:  []byte(pair.AccessToken),
			keyRefreshToken: []byte(pair.RefreshToken),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("session saving error: %w", err)
	}
	return sess, nil
}

type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// sessionFromPair reads the identity out of the access token. The client
// has no signing key; the server checks the signature on every call.
func sessionFromPair(pair *client.TokenPair) (*Session, error) {
	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(pair.AccessToken, &claims); err != nil {
		return nil, fmt.Errorf("malformed access token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("malformed access token: no subject")
	}
	return &Session{
		IdentityID:   claims.Subject,
		Email:        claims.Email,
		Role:         claims.Role,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}
