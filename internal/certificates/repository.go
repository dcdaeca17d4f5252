package certificates

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubs-council/members-service/internal/shared"
)

// Repository provides PostgreSQL backed persistence for certificates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const certificateColumns = `id, certificate_number, uid, state, certificate_data, request_reason, key_hash,
requested_at, cc_approver, cc_approved_at, slo_approver, slo_approved_at, rejected_by, rejected_at`

// Insert persists a new certificate. The unique index on
// certificate_number turns a sequence collision into a conflict error
// instead of a silent duplicate.
func (r *Repository) Insert(ctx context.Context, c *Certificate) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO certificates (`+certificateColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.Number, c.UID, string(c.State), []byte(c.Data), c.RequestReason, c.KeyHash,
		c.RequestedAt, c.CCApprover, c.CCApprovedAt, c.SLOApprover, c.SLOApprovedAt, c.RejectedBy, c.RejectedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrConflict("certificate number already issued")
		}
		return err
	}
	return nil
}

// GetByNumber returns the certificate carrying the given number.
func (r *Repository) GetByNumber(ctx context.Context, number string) (*Certificate, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE certificate_number=$1`, number)
	c, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound("no such certificate")
		}
		return nil, err
	}
	return c, nil
}

// ListByState returns certificates in a given state, newest first.
func (r *Repository) ListByState(ctx context.Context, state State) ([]Certificate, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE state=$1 ORDER BY requested_at DESC`, string(state))
	if err != nil {
		return nil, err
	}
	return collectCertificates(rows)
}

// ListByUser returns a user's certificates, newest first.
func (r *Repository) ListByUser(ctx context.Context, uid string) ([]Certificate, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE uid=$1 ORDER BY requested_at DESC`, uid)
	if err != nil {
		return nil, err
	}
	return collectCertificates(rows)
}

// CountByYearCode counts certificates whose number carries the academic
// year code. Count-then-insert is not atomic: two concurrent requests in
// the same year can compute the same sequence; the unique number index
// makes that a conflict rather than a duplicate.
func (r *Repository) CountByYearCode(ctx context.Context, code string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM certificates WHERE certificate_number LIKE $1`,
		numberPrefix+"/"+code+"/%").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Update persists the state and stamp fields after a transition.
func (r *Repository) Update(ctx context.Context, c *Certificate) error {
	tag, err := r.pool.Exec(ctx, `UPDATE certificates SET state=$2, cc_approver=$3, cc_approved_at=$4,
slo_approver=$5, slo_approved_at=$6, rejected_by=$7, rejected_at=$8 WHERE certificate_number=$1`,
		c.Number, string(c.State), c.CCApprover, c.CCApprovedAt, c.SLOApprover, c.SLOApprovedAt, c.RejectedBy, c.RejectedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound("no such certificate")
	}
	return nil
}

func scanCertificate(row pgx.Row) (*Certificate, error) {
	var c Certificate
	var state string
	var data []byte
	if err := row.Scan(&c.ID, &c.Number, &c.UID, &state, &data, &c.RequestReason, &c.KeyHash,
		&c.RequestedAt, &c.CCApprover, &c.CCApprovedAt, &c.SLOApprover, &c.SLOApprovedAt,
		&c.RejectedBy, &c.RejectedAt); err != nil {
		return nil, err
	}
	c.State = State(state)
	c.Data = data
	return &c, nil
}

func collectCertificates(rows pgx.Rows) ([]Certificate, error) {
	defer rows.Close()
	var out []Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
