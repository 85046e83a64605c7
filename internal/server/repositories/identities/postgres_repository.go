package identities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

const selectColumns = `id, username, email, password_hash, email_verification_token, email_verified_at,
       refresh_token, refresh_token_expiry, role, version, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, i *models.Identity) error {
	query :=
		`INSERT INTO identities (id, username, email, password_hash, email_verification_token, email_verified_at,
		                         refresh_token, refresh_token_expiry, role, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		i.ID, i.Username, i.Email, i.PasswordHash, i.EmailVerificationToken, i.EmailVerifiedAt,
		i.RefreshToken, i.RefreshTokenExpiry, i.Role, i.Version, i.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Identity, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM identities WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM identities WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByRefreshToken(ctx context.Context, token string) (*models.Identity, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM identities WHERE refresh_token = $1`, token)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Identity, error) {
	var (
		i          models.Identity
		token      sql.NullString
		verifiedAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&i.ID, &i.Username, &i.Email, &i.PasswordHash, &token, &verifiedAt,
		&i.RefreshToken, &i.RefreshTokenExpiry, &i.Role, &i.Version, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidKey(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if token.Valid {
		i.EmailVerificationToken = &token.String
	}
	if verifiedAt.Valid {
		i.EmailVerifiedAt = &verifiedAt.Time
	}
	return &i, nil
}

func (r *PostgresRepository) Replace(ctx context.Context, i *models.Identity) error {
	query :=
		`UPDATE identities
		    SET username = $2, email = $3, password_hash = $4, email_verification_token = $5,
		        email_verified_at = $6, refresh_token = $7, refresh_token_expiry = $8, role = $9,
		        version = version + 1
		  WHERE id = $1 AND version = $10`

	res, err := r.db.ExecContext(ctx, query,
		i.ID, i.Username, i.Email, i.PasswordHash, i.EmailVerificationToken,
		i.EmailVerifiedAt, i.RefreshToken, i.RefreshTokenExpiry, i.Role, i.Version)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	if err := dbx.ExpectAffected(res, common.ErrVersionConflict); err != nil {
		return err
	}

	i.Version++
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		if dbx.IsInvalidKey(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectAffected(res, common.ErrorNotFound)
}
