package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"flash-notes/internal/models"
)

const (
	defaultNotesPageSize = 20
	maxNotesPageSize     = 50
	notePreviewCards     = 3
	maxTitleLength       = 80
)

// ErrNoteNotFound is returned when a note id does not exist.
var ErrNoteNotFound = errors.New("note not found")

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type NoteService struct {
	db  *sql.DB
	now func() time.Time
}

func NewNoteService(db *sql.DB) *NoteService {
	return &NoteService{db: db, now: time.Now}
}

// CreateNote assigns an id and creation time and stores the note.
func (s *NoteService) CreateNote(ctx context.Context, note models.Note) (*models.Note, error) {
	note.ID = uuid.NewString()
	note.CreatedAt = s.now().UTC()
	if err := insertNote(ctx, s.db, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// CreateNoteWithFlashcards stores a note and its cards in one transaction.
func (s *NoteService) CreateNoteWithFlashcards(ctx context.Context, note models.Note, drafts []CardDraft) (*models.Note, []models.Flashcard, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now().UTC()
	note.ID = uuid.NewString()
	note.CreatedAt = now
	if err = insertNote(ctx, tx, &note); err != nil {
		return nil, nil, err
	}

	var cards []models.Flashcard
	cards, err = insertFlashcards(ctx, tx, note.ID, note.UserID, drafts, now)
	if err != nil {
		return nil, nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit note: %w", err)
	}
	return &note, cards, nil
}

func (s *NoteService) GetNote(ctx context.Context, id string) (*models.Note, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, source_type, raw_text, created_at
		FROM notes WHERE id = ?;
	`, id)
	var note models.Note
	if err := row.Scan(
		&note.ID,
		&note.UserID,
		&note.Title,
		&note.SourceType,
		&note.RawText,
		&note.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("note %s: %w", id, ErrNoteNotFound)
		}
		return nil, fmt.Errorf("scan note: %w", err)
	}
	return &note, nil
}

// NotePage clamps page to at least 1 and limit to 1..50, defaulting to 20.
func NotePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultNotesPageSize
	}
	return page, min(limit, maxNotesPageSize)
}

// ListNotes returns one page of notes, newest first, with the total count.
func (s *NoteService) ListNotes(ctx context.Context, page, limit int) ([]models.NoteListing, int, error) {
	page, limit = NotePage(page, limit)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes;").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.user_id, n.title, n.source_type, n.raw_text, n.created_at,
		       (SELECT COUNT(*) FROM flashcards f WHERE f.note_id = n.id)
		FROM notes n
		ORDER BY n.created_at DESC, n.rowid DESC
		LIMIT ? OFFSET ?;
	`, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var listings []models.NoteListing
	for rows.Next() {
		var listing models.NoteListing
		if err := rows.Scan(
			&listing.Note.ID,
			&listing.Note.UserID,
			&listing.Note.Title,
			&listing.Note.SourceType,
			&listing.Note.RawText,
			&listing.Note.CreatedAt,
			&listing.FlashcardsCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan note: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notes: %w", err)
	}
	// The pool holds one connection; release it before the preview queries.
	rows.Close()

	for i := range listings {
		preview, err := queryFlashcards(ctx, s.db, `
			SELECT `+flashcardColumns+`
			FROM flashcards
			WHERE note_id = ?
			ORDER BY created_at ASC, rowid ASC
			LIMIT ?;
		`, listings[i].Note.ID, notePreviewCards)
		if err != nil {
			return nil, 0, err
		}
		listings[i].Preview = preview
	}
	return listings, total, nil
}

func insertNote(ctx context.Context, ex execer, note *models.Note) error {
	if _, err := ex.ExecContext(ctx, `
		INSERT INTO notes (id, user_id, title, source_type, raw_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, note.ID, nullStringArg(note.UserID), note.Title, note.SourceType, note.RawText, note.CreatedAt); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// titleFrom returns the first 80 characters of the first non-blank candidate.
func titleFrom(fallback string, candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		runes := []rune(c)
		if len(runes) > maxTitleLength {
			runes = runes[:maxTitleLength]
		}
		return strings.TrimSpace(string(runes))
	}
	return fallback
}

func nullStringArg(v sql.NullString) any {
	if v.Valid {
		return v.String
	}
	return nil
}

func nullTimeArg(t sql.NullTime) any {
	if t.Valid {
		return t.Time
	}
	return nil
}
