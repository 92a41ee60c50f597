package mdt

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const discussionCols = `id, patient_id, patient_name, meeting_date, specialty, diagnosis,
	outcome, decided, recorded_by, created_at, updated_at`

func scanDiscussion(row pgx.Row) (*Discussion, error) {
	var d Discussion
	err := row.Scan(&d.ID, &d.PatientID, &d.PatientName, &d.MeetingDate, &d.Specialty, &d.Diagnosis,
		&d.Outcome, &d.Decided, &d.RecordedBy, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, d *Discussion) error {
	d.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO mdt_discussion (id, patient_id, patient_name, meeting_date, specialty,
			diagnosis, outcome, decided, recorded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		d.ID, d.PatientID, d.PatientName, d.MeetingDate, d.Specialty,
		d.Diagnosis, d.Outcome, d.Decided, d.RecordedBy).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Discussion, error) {
	d, err := scanDiscussion(r.pool.QueryRow(ctx, `SELECT `+discussionCols+` FROM mdt_discussion WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func (r *repoPG) Update(ctx context.Context, d *Discussion) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE mdt_discussion SET diagnosis=$2, outcome=$3, decided=$4, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Diagnosis, d.Outcome, d.Decided)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID string) ([]*Discussion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+discussionCols+` FROM mdt_discussion
		WHERE regexp_replace(patient_id, '\D', '', 'g') = $1
		ORDER BY meeting_date ASC, created_at ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Discussion
	for rows.Next() {
		d, err := scanDiscussion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
