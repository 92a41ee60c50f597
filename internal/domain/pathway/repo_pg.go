package pathway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// storePG keeps every list in one pathway_entry table, partitioned by the
// list column. Events live in pathway_event keyed by (entity_id, seq).
type storePG struct {
	pool *pgxpool.Pool
	list List
}

func NewStorePG(pool *pgxpool.Pool, list List) Store {
	return &storePG{pool: pool, list: list}
}

const entryCols = `id, list, patient_id, display_name, pathway_kind, priority,
	clock_start_date, clock_status, current_status_label, last_updated,
	archived, version, extensions`

func scanEntry(row pgx.Row) (*TrackedEntity, error) {
	var e TrackedEntity
	var ext map[string]json.RawMessage
	err := row.Scan(&e.ID, &e.List, &e.PatientID, &e.DisplayName, &e.PathwayKind, &e.Priority,
		&e.ClockStartDate, &e.ClockStatus, &e.CurrentStatusLabel, &e.LastUpdated,
		&e.Archived, &e.Version, &ext)
	if len(ext) > 0 {
		e.Extensions = ext
	}
	return &e, err
}

func extensionsOrEmpty(ext map[string]json.RawMessage) map[string]json.RawMessage {
	if ext == nil {
		return map[string]json.RawMessage{}
	}
	return ext
}

func (r *storePG) Create(ctx context.Context, e *TrackedEntity) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.List = r.list
	e.Version = 1

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO pathway_entry (id, list, patient_id, display_name, pathway_kind, priority,
			clock_start_date, clock_status, current_status_label, last_updated,
			archived, version, extensions)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		e.ID, e.List, e.PatientID, e.DisplayName, e.PathwayKind, e.Priority,
		e.ClockStartDate, e.ClockStatus, e.CurrentStatusLabel, e.LastUpdated,
		e.Archived, e.Version, extensionsOrEmpty(e.Extensions))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert pathway entry: %w", err)
	}
	if err := insertEvents(ctx, tx, e.ID, 0, e.Events); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertEvents(ctx context.Context, q queryable, entityID uuid.UUID, fromSeq int, events []EventRecord) error {
	for i, ev := range events {
		_, err := q.Exec(ctx, `
			INSERT INTO pathway_event (entity_id, seq, id, event_date, code, description, actor)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			entityID, fromSeq+i+1, ev.ID, ev.Date, ev.Code, ev.Description, ev.Actor)
		if err != nil {
			return fmt.Errorf("insert pathway event %d: %w", fromSeq+i+1, err)
		}
	}
	return nil
}

func (r *storePG) GetByID(ctx context.Context, id uuid.UUID) (*TrackedEntity, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx,
		`SELECT `+entryCols+` FROM pathway_entry WHERE id = $1 AND list = $2`, id, r.list))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadEvents(ctx, []*TrackedEntity{e}); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *storePG) GetByPatient(ctx context.Context, patientID string) (*TrackedEntity, error) {
	want := NormalizeID(patientID)
	if want == "" {
		return nil, ErrNotFound
	}
	e, err := scanEntry(r.pool.QueryRow(ctx, `
		SELECT `+entryCols+` FROM pathway_entry
		WHERE list = $1 AND regexp_replace(patient_id, '\D', '', 'g') = $2
		ORDER BY archived ASC, created_at ASC LIMIT 1`, r.list, want))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadEvents(ctx, []*TrackedEntity{e}); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *storePG) List(ctx context.Context, includeArchived bool) ([]*TrackedEntity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryCols+` FROM pathway_entry
		WHERE list = $1 AND ($2 OR NOT archived)
		ORDER BY created_at ASC`, r.list, includeArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*TrackedEntity
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadEvents(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *storePG) loadEvents(ctx context.Context, items []*TrackedEntity) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*TrackedEntity, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, e := range items {
		byID[e.ID] = e
		ids = append(ids, e.ID)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT entity_id, id, event_date, code, description, actor
		FROM pathway_event WHERE entity_id = ANY($1)
		ORDER BY entity_id, seq`, ids)
	if err != nil {
		return fmt.Errorf("query pathway events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var entityID uuid.UUID
		var ev EventRecord
		if err := rows.Scan(&entityID, &ev.ID, &ev.Date, &ev.Code, &ev.Description, &ev.Actor); err != nil {
			return fmt.Errorf("scan pathway event: %w", err)
		}
		if e := byID[entityID]; e != nil {
			e.Events = append(e.Events, ev)
		}
	}
	return rows.Err()
}

func (r *storePG) Save(ctx context.Context, e *TrackedEntity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE pathway_entry SET display_name=$3, pathway_kind=$4, priority=$5,
			clock_start_date=$6, clock_status=$7, current_status_label=$8,
			last_updated=$9, archived=$10, extensions=$11, version = version + 1
		WHERE id = $1 AND version = $2`,
		e.ID, e.Version, e.DisplayName, e.PathwayKind, e.Priority,
		e.ClockStartDate, e.ClockStatus, e.CurrentStatusLabel,
		e.LastUpdated, e.Archived, extensionsOrEmpty(e.Extensions))
	if err != nil {
		return fmt.Errorf("update pathway entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pathway_entry WHERE id = $1)`, e.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	var stored int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM pathway_event WHERE entity_id = $1`, e.ID).Scan(&stored); err != nil {
		return fmt.Errorf("count pathway events: %w", err)
	}
	if stored > len(e.Events) {
		return ErrHistoryRewritten
	}
	if err := insertEvents(ctx, tx, e.ID, stored, e.Events[stored:]); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	e.Version++
	return nil
}
