package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

const tableUsers = "users"

var userColumns = []interface{}{
	"id", "email", "name", "password", "role", "branch_id", "is_active", "created_at",
}

func (s *Store) InsertUser(ctx context.Context, u *models.User) error {
	_, err := s.exec(ctx, s.db, s.dialect.Insert(tableUsers).Rows(goqu.Record{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"password":   u.Password,
		"role":       string(u.Role),
		"branch_id":  u.BranchID,
		"is_active":  u.IsActive,
		"created_at": u.CreatedAt,
	}).Prepared(true))
	if isUniqueViolation(err) {
		return circulation.Conflict(circulation.ErrEmailTaken, u.Email)
	}
	return classify(err)
}

func (s *Store) UserByID(ctx context.Context, id string) (*models.User, error) {
	return s.userWhere(ctx, goqu.C("id").Eq(id), id)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.userWhere(ctx, goqu.C("email").Eq(email), email)
}

func (s *Store) userWhere(ctx context.Context, where exp.Expression, key string) (*models.User, error) {
	var u models.User
	err := s.get(ctx, s.db, &u, s.dialect.From(tableUsers).Select(userColumns...).
		Where(where).Prepared(true))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, circulation.NotFound(circulation.ErrUserNotFound, key)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, branchID string) ([]models.User, error) {
	ds := s.dialect.From(tableUsers).Select(userColumns...).Order(goqu.C("created_at").Asc())
	if branchID != "" {
		ds = ds.Where(goqu.C("branch_id").Eq(branchID))
	}
	users := []models.User{}
	if err := s.selectAll(ctx, s.db, &users, ds.Prepared(true)); err != nil {
		return nil, classify(err)
	}
	return users, nil
}

func (s *Store) CountUsers(ctx context.Context, role models.Role) (int64, error) {
	ds := s.dialect.From(tableUsers).Select(goqu.COUNT("*"))
	if role != "" {
		ds = ds.Where(goqu.C("role").Eq(string(role)))
	}
	var n int64
	if err := s.get(ctx, s.db, &n, ds.Prepared(true)); err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func (s *Store) SetUserRole(ctx context.Context, id string, role models.Role) error {
	return s.updateUser(ctx, id, goqu.Record{"role": string(role)})
}

// DemoteAdmin locks every admin row before counting, so two admins demoting
// each other queue and the second sees the first demotion. SQLite runs one
// connection and needs no row locks.
func (s *Store) DemoteAdmin(ctx context.Context, id string, role models.Role) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		ds := s.dialect.From(tableUsers).Select("id").
			Where(goqu.C("role").Eq(string(models.RoleAdmin))).
			Order(goqu.C("id").Asc())
		if s.driver != DriverSQLite {
			ds = ds.ForUpdate(exp.Wait)
		}
		var admins []string
		if err := s.selectAll(ctx, tx, &admins, ds.Prepared(true)); err != nil {
			return err
		}
		others := 0
		for _, a := range admins {
			if a != id {
				others++
			}
		}
		if others == 0 {
			return circulation.Conflict(circulation.ErrLastAdmin, id)
		}
		n, err := s.exec(ctx, tx, s.dialect.Update(tableUsers).
			Set(goqu.Record{"role": string(role)}).
			Where(goqu.C("id").Eq(id)).Prepared(true))
		if err != nil {
			return err
		}
		if n == 0 {
			return circulation.NotFound(circulation.ErrUserNotFound, id)
		}
		return nil
	})
}

func (s *Store) SetUserActive(ctx context.Context, id string, active bool) error {
	return s.updateUser(ctx, id, goqu.Record{"is_active": active})
}

func (s *Store) updateUser(ctx context.Context, id string, set goqu.Record) error {
	n, err := s.exec(ctx, s.db, s.dialect.Update(tableUsers).Set(set).
		Where(goqu.C("id").Eq(id)).Prepared(true))
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return circulation.NotFound(circulation.ErrUserNotFound, id)
	}
	return nil
}
