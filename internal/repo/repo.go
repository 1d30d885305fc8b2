package repo

import (
	"context"
	"database/sql"
	"errors"

	"lessonline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func scanSession(row *sql.Row) (domain.Session, error) {
	var s domain.Session
	var start, goal string
	err := row.Scan(&s.ID, &s.Name, &s.Dims, &start, &goal, &s.TimeBudget, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if s.Start, err = parseVec(start); err != nil {
		return s, err
	}
	if s.Goal, err = parseVec(goal); err != nil {
		return s, err
	}
	return s, nil
}

func (r Repo) InsertSession(ctx context.Context, tx *sql.Tx, s domain.Session) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO sessions(id,name,dims,start_vec,goal_vec,time_budget,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.Name, s.Dims, formatVec(s.Start), formatVec(s.Goal), s.TimeBudget, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return scanSession(r.DB.QueryRowContext(ctx,
		`SELECT id,name,dims,start_vec,goal_vec,time_budget,created_at,updated_at FROM sessions WHERE id=?`, id))
}

func (r Repo) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,name,dims,start_vec,goal_vec,time_budget,created_at,updated_at FROM sessions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Session
	for rows.Next() {
		var s domain.Session
		var start, goal string
		if err := rows.Scan(&s.ID, &s.Name, &s.Dims, &start, &goal, &s.TimeBudget, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if s.Start, err = parseVec(start); err != nil {
			return nil, err
		}
		if s.Goal, err = parseVec(goal); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}

func (r Repo) TouchSession(ctx context.Context, tx *sql.Tx, id, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at=? WHERE id=?`, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) RenameSession(ctx context.Context, tx *sql.Tx, id, name, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE sessions SET name=?, updated_at=? WHERE id=?`, name, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceSteps rewrites the full ordered step list of a session. The step
// list is small and the rewrite keeps positions dense, so a delete-and-insert
// is simpler than positional updates.
func (r Repo) ReplaceSteps(ctx context.Context, tx *sql.Tx, sessionID string, steps []domain.Step) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_steps WHERE session_id=?`, sessionID); err != nil {
		return err
	}
	for i, s := range steps {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_steps(session_id,position,template_idx,duration,plane) VALUES (?,?,?,?,?)`,
			sessionID, i, s.TemplateIdx, s.Duration, s.Plane); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) ListSteps(ctx context.Context, sessionID string) ([]domain.Step, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT template_idx,duration,plane FROM session_steps WHERE session_id=? ORDER BY position`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Step
	for rows.Next() {
		var s domain.Step
		if err := rows.Scan(&s.TemplateIdx, &s.Duration, &s.Plane); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}

// UpsertLibrary stores a session-specific library document.
func (r Repo) UpsertLibrary(ctx context.Context, tx *sql.Tx, sessionID string, yamlDoc string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO libraries(session_id,yaml) VALUES (?,?)
ON CONFLICT(session_id) DO UPDATE SET yaml=excluded.yaml`, sessionID, yamlDoc)
	return err
}

// GetLibrary returns the session-specific library document, or ErrNotFound
// when the session uses the shared catalog.
func (r Repo) GetLibrary(ctx context.Context, sessionID string) (string, error) {
	var doc string
	err := r.DB.QueryRowContext(ctx, `SELECT yaml FROM libraries WHERE session_id=?`, sessionID).Scan(&doc)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return doc, err
}

func (r Repo) ListEvents(ctx context.Context, sessionID string, limit int) ([]domain.Event, error) {
	query := `SELECT id,ts,type,COALESCE(session_id,'') AS session_id,entity_kind,COALESCE(entity_id,'') AS entity_id,actor_id,payload_json FROM events`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id=?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.SessionID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, nil
}
