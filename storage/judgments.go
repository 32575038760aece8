package storage

import (
	"context"
	"database/sql"

	"post-judge/model"
)

const judgmentColumns = `post_id, persona, succeeded, error_code, empathy, humor, brevity, originality, expression, total_score, comment, judged_at`

func scanJudgment(row rowScanner) (*model.Judgment, error) {
	j := &model.Judgment{}
	var persona string
	var code, comment sql.NullString
	var empathy, humor, brevity, originality, expression, total sql.NullInt64

	if err := row.Scan(&j.PostID, &persona, &j.Succeeded, &code,
		&empathy, &humor, &brevity, &originality, &expression, &total, &comment, &j.JudgedAt); err != nil {
		return nil, err
	}
	j.Persona = model.Persona(persona)
	if code.Valid {
		c := model.ErrorCode(code.String)
		j.ErrorCode = &c
	}
	if j.Succeeded {
		j.Scores = &model.Scores{
			Empathy:     int(empathy.Int64),
			Humor:       int(humor.Int64),
			Brevity:     int(brevity.Int64),
			Originality: int(originality.Int64),
			Expression:  int(expression.Int64),
		}
	}
	if comment.Valid {
		j.Comment = &comment.String
	}
	return j, nil
}

// PutJudgment inserts or overwrites the judgment for (post_id, persona).
func (db *DB) PutJudgment(ctx context.Context, j *model.Judgment) error {
	query := `
	INSERT INTO judgments (` + judgmentColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(post_id, persona) DO UPDATE SET
		succeeded = excluded.succeeded,
		error_code = excluded.error_code,
		empathy = excluded.empathy,
		humor = excluded.humor,
		brevity = excluded.brevity,
		originality = excluded.originality,
		expression = excluded.expression,
		total_score = excluded.total_score,
		comment = excluded.comment,
		judged_at = excluded.judged_at
	`

	var empathy, humor, brevity, originality, expression, total *int
	if j.Succeeded && j.Scores != nil {
		s := *j.Scores
		t := s.Total()
		empathy, humor, brevity, originality, expression, total = &s.Empathy, &s.Humor, &s.Brevity, &s.Originality, &s.Expression, &t
	}
	var code *string
	if j.ErrorCode != nil {
		c := string(*j.ErrorCode)
		code = &c
	}

	_, err := db.conn.ExecContext(ctx, query,
		j.PostID, string(j.Persona), j.Succeeded, code,
		empathy, humor, brevity, originality, expression, total,
		j.Comment, j.JudgedAt,
	)
	return err
}

// GetJudgment retrieves the judgment for (postID, persona).
func (db *DB) GetJudgment(ctx context.Context, postID string, persona model.Persona) (*model.Judgment, error) {
	query := `SELECT ` + judgmentColumns + ` FROM judgments WHERE post_id = ? AND persona = ?`
	j, err := scanJudgment(db.conn.QueryRowContext(ctx, query, postID, string(persona)))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return j, err
}

// ListJudgments returns every judgment for a post, ordered by persona.
func (db *DB) ListJudgments(ctx context.Context, postID string) ([]*model.Judgment, error) {
	query := `SELECT ` + judgmentColumns + ` FROM judgments WHERE post_id = ? ORDER BY persona`
	rows, err := db.conn.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Judgment
	for rows.Next() {
		j, err := scanJudgment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// DeleteJudgment removes the judgment for (postID, persona). Missing rows are not an error.
func (db *DB) DeleteJudgment(ctx context.Context, postID string, persona model.Persona) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM judgments WHERE post_id = ? AND persona = ?`, postID, string(persona))
	return err
}
