package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MonthBackfiller patches role records written before months were tracked.
// Rows are read raw because pre-migration documents do not pass the current
// domain validation.
type MonthBackfiller struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewMonthBackfiller constructs a MonthBackfiller.
func NewMonthBackfiller(pool *pgxpool.Pool, logger *slog.Logger) *MonthBackfiller {
	return &MonthBackfiller{pool: pool, logger: logger}
}

type rawRole map[string]any

// Handle processes TaskTypeBackfillMonths tasks.
func (b *MonthBackfiller) Handle(ctx context.Context, t *asynq.Task) error {
	var payload BackfillMonthsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	rows, err := b.pool.Query(ctx, `SELECT cid, uid, roles FROM memberships`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type patch struct {
		cid   string
		uid   string
		roles []rawRole
	}
	var patches []patch
	for rows.Next() {
		var cid, uid string
		var doc []byte
		if err := rows.Scan(&cid, &uid, &doc); err != nil {
			return err
		}
		var roles []rawRole
		if err := json.Unmarshal(doc, &roles); err != nil {
			b.logger.Warn("skipping unreadable roles document",
				slog.String("cid", cid), slog.String("uid", uid), slog.Any("error", err))
			continue
		}
		if !backfillRoles(roles) {
			continue
		}
		patches = append(patches, patch{cid: cid, uid: uid, roles: roles})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	b.logger.Info("month backfill scan complete",
		slog.Int("to_patch", len(patches)),
		slog.Bool("dry_run", payload.DryRun))
	if payload.DryRun {
		return nil
	}

	for _, p := range patches {
		doc, err := json.Marshal(p.roles)
		if err != nil {
			return err
		}
		// last_edited_time is left alone: a migration is not a member edit.
		if _, err := b.pool.Exec(ctx,
			`UPDATE memberships SET roles = $1 WHERE cid = $2 AND uid = $3`,
			doc, p.cid, p.uid); err != nil {
			return err
		}
	}
	b.logger.Info("month backfill applied", slog.Int("patched", len(patches)))
	return nil
}

// backfillRoles defaults missing months in place and reports whether any
// role changed. End months are only defaulted when an end year exists; an
// open-ended role stays open-ended.
func backfillRoles(roles []rawRole) bool {
	changed := false
	for _, r := range roles {
		if numberMissing(r["start_month"]) {
			r["start_month"] = 1
			changed = true
		}
		if !numberMissing(r["end_year"]) && numberMissing(r["end_month"]) {
			r["end_month"] = 1
			changed = true
		}
	}
	return changed
}

// numberMissing treats both an absent field and an explicit zero as unset.
func numberMissing(v any) bool {
	if v == nil {
		return true
	}
	f, ok := v.(float64)
	return ok && f == 0
}
