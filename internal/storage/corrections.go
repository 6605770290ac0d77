package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ppiankov/beacon/internal/model"
)

// CorrectionJournal appends every correction state change; nothing is ever updated or deleted
type CorrectionJournal struct {
	db *sqlx.DB
}

// NewCorrectionJournal wraps an open database
func NewCorrectionJournal(db *sqlx.DB) *CorrectionJournal {
	return &CorrectionJournal{db: db}
}

type correctionRow struct {
	Seq         int64         `db:"seq"`
	ID          string        `db:"id"`
	WrongText   string        `db:"wrong_text"`
	CorrectText string        `db:"correct_text"`
	Topics      string        `db:"topics"`
	Status      string        `db:"status"`
	CreatedAt   int64         `db:"created_at"`
	AppliedAt   sql.NullInt64 `db:"applied_at"`
}

// Record appends a snapshot of c
func (j *CorrectionJournal) Record(ctx context.Context, c model.Correction) error {
	topics, err := json.Marshal(c.Topics)
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}

	row := correctionRow{
		ID:          c.ID,
		WrongText:   c.WrongText,
		CorrectText: c.CorrectText,
		Topics:      string(topics),
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt.UnixMilli(),
	}
	if c.AppliedAt != nil {
		row.AppliedAt = sql.NullInt64{Int64: c.AppliedAt.UnixMilli(), Valid: true}
	}

	_, err = j.db.NamedExecContext(ctx, `
		INSERT INTO correction_journal (id, wrong_text, correct_text, topics, status, created_at, applied_at)
		VALUES (:id, :wrong_text, :correct_text, :topics, :status, :created_at, :applied_at)`, row)
	if err != nil {
		return fmt.Errorf("insert correction: %w", err)
	}
	return nil
}

// Load returns the latest snapshot of every correction, oldest first
func (j *CorrectionJournal) Load(ctx context.Context) ([]model.Correction, error) {
	var rows []correctionRow
	err := j.db.SelectContext(ctx, &rows, `
		SELECT c.seq, c.id, c.wrong_text, c.correct_text, c.topics, c.status, c.created_at, c.applied_at
		FROM correction_journal c
		JOIN (SELECT id, MAX(seq) AS seq FROM correction_journal GROUP BY id) latest
		  ON latest.seq = c.seq
		ORDER BY c.created_at, c.seq`)
	if err != nil {
		return nil, fmt.Errorf("select corrections: %w", err)
	}

	out := make([]model.Correction, 0, len(rows))
	for _, r := range rows {
		c := model.Correction{
			ID:          r.ID,
			WrongText:   r.WrongText,
			CorrectText: r.CorrectText,
			Status:      model.CorrectionStatus(r.Status),
			CreatedAt:   time.UnixMilli(r.CreatedAt).UTC(),
		}
		if err := json.Unmarshal([]byte(r.Topics), &c.Topics); err != nil {
			return nil, fmt.Errorf("decode topics for %s: %w", r.ID, err)
		}
		if r.AppliedAt.Valid {
			t := time.UnixMilli(r.AppliedAt.Int64).UTC()
			c.AppliedAt = &t
		}
		out = append(out, c)
	}
	return out, nil
}
