package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/reid/internal/config"
	"github.com/your-org/reid/internal/models"
	"github.com/your-org/reid/internal/vision"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	return NewPostgresStoreDSN(cfg.DSN(), cfg.MaxConns)
}

// NewPostgresStoreDSN connects to the database at dsn.
func NewPostgresStoreDSN(dsn string, maxConns int) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func vectorArg(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

// --- Visitors ---

// RecordSighting upserts the visitor behind a resolved detection and makes
// sure it has an open visit on the sighting's camera.
func (s *PostgresStore) RecordSighting(ctx context.Context, sg models.Sighting) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var visitorID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO visitors (global_id, first_seen_at, last_seen_at, embedding)
		VALUES ($1, $2, $2, $3)
		ON CONFLICT (global_id) DO UPDATE SET
			last_seen_at = GREATEST(visitors.last_seen_at, EXCLUDED.last_seen_at),
			embedding    = COALESCE(EXCLUDED.embedding, visitors.embedding)
		RETURNING id`,
		sg.GlobalID, sg.Timestamp, vectorArg(sg.Embedding),
	).Scan(&visitorID)
	if err != nil {
		return fmt.Errorf("upsert visitor %s: %w", sg.GlobalID, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO visit_events (id, visitor_id, camera_id, in_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (visitor_id, camera_id) WHERE out_time IS NULL DO NOTHING`,
		uuid.New(), visitorID, sg.CameraID, sg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("open visit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit sighting: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListVisitors(ctx context.Context, limit, offset int) ([]models.Visitor, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM visitors`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count visitors: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, global_id, first_seen_at, last_seen_at
		FROM visitors
		ORDER BY last_seen_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list visitors: %w", err)
	}
	defer rows.Close()

	var visitors []models.Visitor
	for rows.Next() {
		var v models.Visitor
		if err := rows.Scan(&v.ID, &v.GlobalID, &v.FirstSeenAt, &v.LastSeenAt); err != nil {
			return nil, 0, fmt.Errorf("scan visitor: %w", err)
		}
		visitors = append(visitors, v)
	}
	return visitors, total, rows.Err()
}

// GetVisitor returns nil when no visitor has globalID.
func (s *PostgresStore) GetVisitor(ctx context.Context, globalID string) (*models.Visitor, error) {
	v := &models.Visitor{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, global_id, first_seen_at, last_seen_at
		FROM visitors WHERE global_id = $1`, globalID,
	).Scan(&v.ID, &v.GlobalID, &v.FirstSeenAt, &v.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get visitor: %w", err)
	}
	return v, nil
}

// --- Visits ---

func (s *PostgresStore) ListVisits(ctx context.Context, visitorID int64, limit int) ([]models.VisitEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, visitor_id, camera_id, in_time, out_time
		FROM visit_events
		WHERE visitor_id = $1
		ORDER BY in_time DESC
		LIMIT $2`, visitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	var visits []models.VisitEvent
	for rows.Next() {
		var ve models.VisitEvent
		if err := rows.Scan(&ve.ID, &ve.VisitorID, &ve.CameraID, &ve.InTime, &ve.OutTime); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		visits = append(visits, ve)
	}
	return visits, rows.Err()
}

// Stats counts open visits and visits started since UTC midnight of now.
func (s *PostgresStore) Stats(ctx context.Context, now time.Time) (models.VisitStats, error) {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var st models.VisitStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE out_time IS NULL),
			COUNT(*) FILTER (WHERE in_time >= $1)
		FROM visit_events`, midnight,
	).Scan(&st.ActiveVisitors, &st.TotalToday)
	if err != nil {
		return st, fmt.Errorf("visit stats: %w", err)
	}
	return st, nil
}

// CloseOpenVisits stamps out_time = at on every open visit and returns how
// many were closed.
func (s *PostgresStore) CloseOpenVisits(ctx context.Context, at time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE visit_events SET out_time = $1 WHERE out_time IS NULL`, at)
	if err != nil {
		return 0, fmt.Errorf("close open visits: %w", err)
	}
	return tag.RowsAffected(), nil
}

// LoadIdentities returns visitors seen since `since` that carry an
// embedding, for warm-starting the identity index.
func (s *PostgresStore) LoadIdentities(ctx context.Context, since time.Time) ([]vision.Identity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT v.global_id, v.first_seen_at, v.last_seen_at, v.embedding,
		       (SELECT COUNT(*) FROM visit_events e WHERE e.visitor_id = v.id)
		FROM visitors v
		WHERE v.embedding IS NOT NULL AND v.last_seen_at >= $1
		ORDER BY v.first_seen_at, v.id`, since)
	if err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	defer rows.Close()

	var out []vision.Identity
	for rows.Next() {
		var (
			id     vision.Identity
			vec    pgvector.Vector
			visits int
		)
		if err := rows.Scan(&id.ID, &id.FirstSeen, &id.LastSeen, &vec, &visits); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		id.Feature = vec.Slice()
		id.Observations = visits
		out = append(out, id)
	}
	return out, rows.Err()
}
