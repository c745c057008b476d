package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// --- Interviews ---

func (s *Store) CreateInterview(iv Interview) error {
	active := 0
	if iv.IsActive {
		active = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO interviews (id, created_at, updated_at, is_active, question)
		VALUES (?, ?, ?, ?, ?)`,
		iv.ID, formatTime(iv.CreatedAt), formatTime(iv.UpdatedAt), active, iv.Question,
	)
	return err
}

func (s *Store) GetInterview(id string) (Interview, error) {
	return s.getInterview(`SELECT id, created_at, updated_at, is_active, question FROM interviews WHERE id = ?`, id)
}

// GetActiveInterview returns the interview only if it is still active.
// Ended or missing interviews both yield ErrNotFound; send is scoped to
// active interviews.
func (s *Store) GetActiveInterview(id string) (Interview, error) {
	return s.getInterview(`SELECT id, created_at, updated_at, is_active, question FROM interviews WHERE id = ? AND is_active = 1`, id)
}

func (s *Store) getInterview(query string, args ...any) (Interview, error) {
	var iv Interview
	var createdAt, updatedAt string
	var active int
	err := s.db.QueryRow(query, args...).Scan(&iv.ID, &createdAt, &updatedAt, &active, &iv.Question)
	if err == sql.ErrNoRows {
		return Interview{}, ErrNotFound
	}
	if err != nil {
		return Interview{}, err
	}
	iv.IsActive = active != 0
	if iv.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return Interview{}, err
	}
	if iv.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return Interview{}, err
	}
	return iv, nil
}

// ListInterviews returns all interviews, newest first.
func (s *Store) ListInterviews() ([]Interview, error) {
	rows, err := s.db.Query(`SELECT id, created_at, updated_at, is_active, question FROM interviews ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Interview
	for rows.Next() {
		var iv Interview
		var createdAt, updatedAt string
		var active int
		if err := rows.Scan(&iv.ID, &createdAt, &updatedAt, &active, &iv.Question); err != nil {
			return nil, err
		}
		iv.IsActive = active != 0
		if iv.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
			return nil, err
		}
		if iv.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
			return nil, err
		}
		results = append(results, iv)
	}
	return results, rows.Err()
}

// EndInterview flips is_active to false and bumps updated_at. Calling it on an
// already-ended interview is a no-op update, which keeps the operation
// idempotent. ErrNotFound if the interview does not exist.
func (s *Store) EndInterview(id string, endedAt time.Time) error {
	res, err := s.db.Exec(`UPDATE interviews SET is_active = 0, updated_at = ? WHERE id = ?`,
		formatTime(endedAt), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Messages ---

func (s *Store) CreateMessage(m Message) error {
	_, err := s.db.Exec(`
		INSERT INTO messages (id, interview_id, role, content, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.InterviewID, m.Role, m.Content, formatTime(m.Timestamp),
	)
	return err
}

// ListMessages returns the interview's messages in ascending timestamp order
// with their image uploads attached. This is the exact sequence the
// conversation assembler consumes.
func (s *Store) ListMessages(interviewID string) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, interview_id, role, content, timestamp
		FROM messages WHERE interview_id = ? ORDER BY timestamp ASC`, interviewID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Message
	for rows.Next() {
		var m Message
		var ts string
		if err := rows.Scan(&m.ID, &m.InterviewID, &m.Role, &m.Content, &ts); err != nil {
			return nil, err
		}
		if m.Timestamp, err = parseTime(ts, "timestamp"); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		images, err := s.ListImageUploads(results[i].ID)
		if err != nil {
			return nil, fmt.Errorf("loading images for message %s: %w", results[i].ID, err)
		}
		results[i].Images = images
	}
	return results, nil
}

// --- Image uploads ---

func (s *Store) CreateImageUpload(img ImageUpload) error {
	_, err := s.db.Exec(`
		INSERT INTO image_uploads (id, message_id, image, uploaded_at)
		VALUES (?, ?, ?, ?)`,
		img.ID, img.MessageID, img.Image, formatTime(img.UploadedAt),
	)
	return err
}

func (s *Store) ListImageUploads(messageID string) ([]ImageUpload, error) {
	rows, err := s.db.Query(`
		SELECT id, message_id, image, uploaded_at
		FROM image_uploads WHERE message_id = ? ORDER BY uploaded_at ASC`, messageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []ImageUpload{}
	for rows.Next() {
		var img ImageUpload
		var uploadedAt string
		if err := rows.Scan(&img.ID, &img.MessageID, &img.Image, &uploadedAt); err != nil {
			return nil, err
		}
		if img.UploadedAt, err = parseTime(uploadedAt, "uploaded_at"); err != nil {
			return nil, err
		}
		results = append(results, img)
	}
	return results, rows.Err()
}
