package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ppiankov/beacon/internal/model"
)

// QuestionLog is the append-only question log
type QuestionLog struct {
	db *sqlx.DB
}

// NewQuestionLog wraps an open database
func NewQuestionLog(db *sqlx.DB) *QuestionLog {
	return &QuestionLog{db: db}
}

type questionRow struct {
	ID         int64   `db:"id"`
	TS         int64   `db:"ts"`
	UserID     string  `db:"user_id"`
	Text       string  `db:"text"`
	Topic      string  `db:"topic"`
	Confidence float64 `db:"confidence"`
	Answered   bool    `db:"answered"`
	TokensUsed int     `db:"tokens_used"`
	CostUSD    float64 `db:"cost_usd"`
}

func (r questionRow) event() model.QuestionEvent {
	return model.QuestionEvent{
		ID:         r.ID,
		Timestamp:  time.UnixMilli(r.TS).UTC(),
		UserID:     r.UserID,
		Text:       r.Text,
		Topic:      r.Topic,
		Confidence: r.Confidence,
		Answered:   r.Answered,
		TokensUsed: r.TokensUsed,
		CostUSD:    r.CostUSD,
	}
}

// Append adds an event and returns it with its assigned ID
func (l *QuestionLog) Append(ctx context.Context, e model.QuestionEvent) (model.QuestionEvent, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	res, err := l.db.NamedExecContext(ctx, `
		INSERT INTO questions (ts, user_id, text, topic, confidence, answered, tokens_used, cost_usd)
		VALUES (:ts, :user_id, :text, :topic, :confidence, :answered, :tokens_used, :cost_usd)`,
		questionRow{
			TS:         e.Timestamp.UnixMilli(),
			UserID:     e.UserID,
			Text:       e.Text,
			Topic:      e.Topic,
			Confidence: e.Confidence,
			Answered:   e.Answered,
			TokensUsed: e.TokensUsed,
			CostUSD:    e.CostUSD,
		})
	if err != nil {
		return e, fmt.Errorf("insert question: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return e, fmt.Errorf("question id: %w", err)
	}
	e.ID = id
	return e, nil
}

// Window returns events logged at or after since, oldest first
func (l *QuestionLog) Window(ctx context.Context, since time.Time) ([]model.QuestionEvent, error) {
	var rows []questionRow
	err := l.db.SelectContext(ctx, &rows, `
		SELECT id, ts, user_id, text, topic, confidence, answered, tokens_used, cost_usd
		FROM questions
		WHERE ts >= ?
		ORDER BY ts, id`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}

	events := make([]model.QuestionEvent, len(rows))
	for i, r := range rows {
		events[i] = r.event()
	}
	return events, nil
}

// BackfillTopic sets the topic of an event that has none yet. Classified events are left alone.
func (l *QuestionLog) BackfillTopic(ctx context.Context, id int64, topic string, confidence float64) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE questions SET topic = ?, confidence = ?
		WHERE id = ? AND topic = ''`, topic, confidence, id)
	if err != nil {
		return fmt.Errorf("backfill topic: %w", err)
	}
	return nil
}
