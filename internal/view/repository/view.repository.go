package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"aeriegateway/internal/view/model"
	"aeriegateway/pkg/logger"

	"github.com/lib/pq"
)

var (
	// ErrViewNotFound covers both a missing id and a caller who does not own
	// the view; mutations cannot tell the two apart.
	ErrViewNotFound   = errors.New("view not found")
	ErrViewNotCreated = errors.New("view not created")
)

const (
	orderByTimeUpdated = `ORDER BY (view->'meta'->>'timeUpdated')::bigint DESC`
	// A non-string name is payload, not a title.
	selectName = `CASE WHEN jsonb_typeof(view->'name') = 'string' THEN view->>'name' END`

	uniqueViolation = "23505"
)

type ViewRepository struct {
	DB *sql.DB
}

func NewViewRepository(db *sql.DB) *ViewRepository {
	return &ViewRepository{DB: db}
}

func (r *ViewRepository) List(ctx context.Context) ([]model.Summary, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, `+selectName+`, view->'meta' FROM ui.view `+orderByTimeUpdated)
	if err != nil {
		logQueryError("list views", err)
		return nil, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()

	summaries := []model.Summary{}
	for rows.Next() {
		var s model.Summary
		var name sql.NullString
		var meta []byte
		if err := rows.Scan(&s.ID, &name, &meta); err != nil {
			return nil, fmt.Errorf("scan view summary: %w", err)
		}
		s.Name = name.String
		if err := json.Unmarshal(meta, &s.Meta); err != nil {
			return nil, fmt.Errorf("decode meta of view %s: %w", s.ID, err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	return summaries, nil
}

func (r *ViewRepository) Get(ctx context.Context, id string) (*model.View, error) {
	var doc []byte
	err := r.DB.QueryRowContext(ctx, `SELECT view FROM ui.view WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrViewNotFound
	}
	if err != nil {
		logQueryError("get view "+id, err)
		return nil, fmt.Errorf("get view %s: %w", id, err)
	}
	return decodeView(doc)
}

// ListForOwner returns the views owned by username or by the system owner,
// most recently updated first.
func (r *ViewRepository) ListForOwner(ctx context.Context, username string) ([]model.View, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT view FROM ui.view
		WHERE view->'meta'->>'owner' = $1 OR view->'meta'->>'owner' = $2
		`+orderByTimeUpdated, username, model.SystemOwner)
	if err != nil {
		logQueryError("list views for "+username, err)
		return nil, fmt.Errorf("list views for %s: %w", username, err)
	}
	defer rows.Close()

	var views []model.View
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan view: %w", err)
		}
		v, err := decodeView(doc)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list views for %s: %w", username, err)
	}
	return views, nil
}

func (r *ViewRepository) Create(ctx context.Context, v *model.View) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode view: %w", err)
	}
	result, err := r.DB.ExecContext(ctx, `INSERT INTO ui.view (id, view) VALUES ($1, $2)`, v.ID, doc)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		logger.Sugar.Warnf("View id %s already exists", v.ID)
		return ErrViewNotCreated
	}
	if err != nil {
		logQueryError("create view "+v.ID, err)
		return fmt.Errorf("create view %s: %w", v.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create view %s: %w", v.ID, err)
	}
	if n == 0 {
		return ErrViewNotCreated
	}
	return nil
}

// Update replaces the payload of a view owned by owner in one statement. The
// stored id and meta are kept; only meta.timeUpdated moves, and never backwards.
func (r *ViewRepository) Update(ctx context.Context, id, owner string, payload model.Payload, now int64) (*model.View, error) {
	body, err := json.Marshal(payload.Without("id", "meta"))
	if err != nil {
		return nil, fmt.Errorf("encode view payload: %w", err)
	}

	var doc []byte
	err = r.DB.QueryRowContext(ctx, `
		UPDATE ui.view
		SET view = $1::jsonb || jsonb_build_object(
			'id', id,
			'meta', (view->'meta') || jsonb_build_object(
				'timeUpdated', GREATEST($2::bigint, (view->'meta'->>'timeUpdated')::bigint)))
		WHERE id = $3 AND view->'meta'->>'owner' = $4
		RETURNING view`, body, now, id, owner).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrViewNotFound
	}
	if err != nil {
		logQueryError("update view "+id, err)
		return nil, fmt.Errorf("update view %s: %w", id, err)
	}
	return decodeView(doc)
}

func (r *ViewRepository) Delete(ctx context.Context, id, owner string) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM ui.view WHERE id = $1 AND view->'meta'->>'owner' = $2`, id, owner)
	if err != nil {
		logQueryError("delete view "+id, err)
		return fmt.Errorf("delete view %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete view %s: %w", id, err)
	}
	if n != 1 {
		return ErrViewNotFound
	}
	return nil
}

func decodeView(doc []byte) (*model.View, error) {
	var v model.View
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("decode view: %w", err)
	}
	return &v, nil
}

func logQueryError(op string, err error) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		logger.Sugar.Errorf("Failed to %s: %v (code %s)", op, err, pqErr.Code)
		return
	}
	logger.Sugar.Errorf("Failed to %s: %v", op, err)
}
