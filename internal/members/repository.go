package members

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubs-council/members-service/internal/shared"
)

// Repository provides PostgreSQL backed persistence for memberships.
// Roles live in a JSONB column shaped like the membership document; the
// store enforces nothing beyond the (cid, uid) uniqueness constraint, so
// documents are validated on read as well as write.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const membershipColumns = `cid, uid, poc, creation_time, last_edited_time, roles`

// Get returns the membership for (cid, uid), or a not-found error.
func (r *Repository) Get(ctx context.Context, cid, uid string) (*Membership, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE cid=$1 AND uid=$2`, cid, uid)
	m, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound("no such record")
		}
		return nil, err
	}
	return m, nil
}

// ListByClub returns all memberships of a club.
func (r *Repository) ListByClub(ctx context.Context, cid string) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE cid=$1 ORDER BY uid`, cid)
	if err != nil {
		return nil, err
	}
	return collectMemberships(rows)
}

// ListByUser returns a user's memberships across all clubs.
func (r *Repository) ListByUser(ctx context.Context, uid string) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE uid=$1 ORDER BY cid`, uid)
	if err != nil {
		return nil, err
	}
	return collectMemberships(rows)
}

// ListAll returns every membership document.
func (r *Repository) ListAll(ctx context.Context) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+membershipColumns+` FROM memberships ORDER BY cid, uid`)
	if err != nil {
		return nil, err
	}
	return collectMemberships(rows)
}

// Insert persists a new membership. A (cid, uid) uniqueness violation
// surfaces as a conflict error.
func (r *Repository) Insert(ctx context.Context, m *Membership) error {
	rolesJSON, err := json.Marshal(m.Roles)
	if err != nil {
		return fmt.Errorf("members: encode roles: %w", err)
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO memberships (cid, uid, poc, creation_time, last_edited_time, roles)
VALUES ($1, $2, $3, $4, $5, $6)`, m.CID, m.UID, m.POC, m.CreationTime, m.LastEditedTime, rolesJSON)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrConflict("a record with same uid and cid already exists")
		}
		return err
	}
	return nil
}

// UpdateRoles replaces the full role list plus the touched scalar fields.
func (r *Repository) UpdateRoles(ctx context.Context, cid, uid string, roles []Role, poc bool, editedAt time.Time) error {
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return fmt.Errorf("members: encode roles: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE memberships SET roles=$3, poc=$4, last_edited_time=$5 WHERE cid=$1 AND uid=$2`,
		cid, uid, rolesJSON, poc, editedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound("no such record")
	}
	return nil
}

// Delete removes the membership document entirely.
func (r *Repository) Delete(ctx context.Context, cid, uid string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM memberships WHERE cid=$1 AND uid=$2`, cid, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound("no such record")
	}
	return nil
}

// ReassignClub moves every membership from oldCID to newCID and returns
// the number of moved records.
func (r *Repository) ReassignClub(ctx context.Context, oldCID, newCID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE memberships SET cid=$2 WHERE cid=$1`, oldCID, newCID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanMembership(row pgx.Row) (*Membership, error) {
	var m Membership
	var rolesJSON []byte
	if err := row.Scan(&m.CID, &m.UID, &m.POC, &m.CreationTime, &m.LastEditedTime, &rolesJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rolesJSON, &m.Roles); err != nil {
		return nil, fmt.Errorf("members: decode roles for %s/%s: %w", m.CID, m.UID, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("members: invalid stored document %s/%s: %w", m.CID, m.UID, err)
	}
	return &m, nil
}

func collectMemberships(rows pgx.Rows) ([]Membership, error) {
	defer rows.Close()
	var out []Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
