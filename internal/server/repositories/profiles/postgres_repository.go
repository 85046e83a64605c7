package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, p *models.Profile) (bool, error) {
	query :=
		`INSERT INTO profiles (id, username, display_name, email, role, location, occupation,
		                       profile_picture_path, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		p.ID, p.Username, p.DisplayName, p.Email, p.Role, p.Location, p.Occupation,
		p.ProfilePicturePath, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Profile, error) {
	query :=
		`SELECT id, username, display_name, email, role, location, occupation,
		        profile_picture_path, created_at, updated_at
		   FROM profiles
		  WHERE id = $1`

	var (
		p                              models.Profile
		location, occupation, pictures sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Username, &p.DisplayName, &p.Email, &p.Role,
		&location, &occupation, &pictures, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidKey(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	p.Location = nullable(location)
	p.Occupation = nullable(occupation)
	p.ProfilePicturePath = nullable(pictures)
	return &p, nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *models.Profile) error {
	query :=
		`UPDATE profiles
		    SET display_name = $2, location = $3, occupation = $4, profile_picture_path = $5, updated_at = $6
		  WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		p.ID, p.DisplayName, p.Location, p.Occupation, p.ProfilePicturePath, p.UpdatedAt)
	if err != nil {
		if dbx.IsInvalidKey(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectAffected(res, common.ErrorNotFound)
}

func (r *PostgresRepository) DeleteIfPresent(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		if dbx.IsInvalidKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
