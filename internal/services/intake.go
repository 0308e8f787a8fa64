package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"flash-notes/internal/logging"
	"flash-notes/internal/models"
)

const (
	noTextTitle       = "Uploaded note (no text detected)"
	defaultNoteTitle  = "New Note"
	uploadedNoteTitle = "Uploaded note"
	pdfMimeType       = "application/pdf"
)

// Analyzer is the provider chain the intake pipeline runs text through.
type Analyzer interface {
	Analyze(ctx context.Context, text string, preferSecondary bool) Outcome
}

type IntakeRequest struct {
	Text            string
	UserID          string
	PreferSecondary bool

	File     []byte
	FileName string
	MimeType string
}

// IntakeOutcome describes what was stored for one intake request. Note is
// always set. Err carries the analysis failure for degraded and no_input
// outcomes.
type IntakeOutcome struct {
	Kind       OutcomeKind
	Provider   string
	Note       *models.Note
	Summary    string
	ShortNote  string
	Flashcards []models.Flashcard
	SourceText string
	Err        error
}

// IntakeService turns uploaded study material into a stored note and cards.
type IntakeService struct {
	notes              *NoteService
	analyzer           Analyzer
	images             TextExtractor
	pdfs               TextExtractor
	heuristicOnFailure bool
	logger             *zap.Logger
}

func NewIntakeService(
	notes *NoteService,
	analyzer Analyzer,
	images TextExtractor,
	pdfs TextExtractor,
	heuristicOnFailure bool,
	logger *zap.Logger,
) *IntakeService {
	return &IntakeService{
		notes:              notes,
		analyzer:           analyzer,
		images:             images,
		pdfs:               pdfs,
		heuristicOnFailure: heuristicOnFailure,
		logger:             logging.OrNop(logger),
	}
}

// ProcessIntake resolves the source text, runs analysis and persists the
// result. The returned error is reserved for storage failures; analysis
// problems are reported through the outcome.
func (s *IntakeService) ProcessIntake(ctx context.Context, req IntakeRequest) (*IntakeOutcome, error) {
	sourceType := sourceTypeOf(req)
	text := req.Text
	if strings.TrimSpace(text) == "" && len(req.File) > 0 {
		text = s.extract(ctx, sourceType, req)
	}

	base := models.Note{
		UserID:     sql.NullString{String: req.UserID, Valid: req.UserID != ""},
		SourceType: sourceType,
	}

	if strings.TrimSpace(text) == "" {
		return s.storeEmpty(ctx, base)
	}

	outcome := s.analyzer.Analyze(ctx, text, req.PreferSecondary)
	switch outcome.Kind {
	case OutcomeSuccess:
		return s.storeSuccess(ctx, base, text, outcome)
	case OutcomeNoInput:
		return s.storeEmpty(ctx, base)
	default:
		return s.storeDegraded(ctx, base, text, outcome)
	}
}

func (s *IntakeService) storeEmpty(ctx context.Context, note models.Note) (*IntakeOutcome, error) {
	note.Title = noTextTitle
	stored, err := s.notes.CreateNote(ctx, note)
	if err != nil {
		return nil, err
	}
	s.logger.Info("intake had no text", zap.String("note_id", stored.ID))
	return &IntakeOutcome{Kind: OutcomeNoInput, Note: stored, Err: ErrEmptySourceText}, nil
}

func (s *IntakeService) storeDegraded(ctx context.Context, note models.Note, text string, outcome Outcome) (*IntakeOutcome, error) {
	note.Title = titleFrom(uploadedNoteTitle, text)
	note.RawText = text

	var cards []CardDraft
	if s.heuristicOnFailure {
		cards = GenerateFallbackCards(text)
	}
	stored, flashcards, err := s.notes.CreateNoteWithFlashcards(ctx, note, cards)
	if err != nil {
		return nil, err
	}
	s.logger.Warn("analysis degraded",
		zap.String("note_id", stored.ID),
		zap.Int("heuristic_cards", len(flashcards)),
		zap.Error(outcome.Err),
	)
	return &IntakeOutcome{
		Kind:       OutcomeDegraded,
		Note:       stored,
		Flashcards: flashcards,
		SourceText: text,
		Err:        outcome.Err,
	}, nil
}

func (s *IntakeService) storeSuccess(ctx context.Context, note models.Note, text string, outcome Outcome) (*IntakeOutcome, error) {
	result := outcome.Result
	note.Title = titleFrom(defaultNoteTitle, result.Summary, text)
	note.RawText = text

	cards := result.Flashcards
	if len(cards) > maxFlashcardsPerNote {
		cards = cards[:maxFlashcardsPerNote]
	}
	stored, flashcards, err := s.notes.CreateNoteWithFlashcards(ctx, note, cards)
	if err != nil {
		return nil, err
	}
	return &IntakeOutcome{
		Kind:       OutcomeSuccess,
		Provider:   outcome.Provider,
		Note:       stored,
		Summary:    result.Summary,
		ShortNote:  result.ShortNote,
		Flashcards: flashcards,
		SourceText: text,
	}, nil
}

// extract never fails the request: an unreadable upload counts as no text.
func (s *IntakeService) extract(ctx context.Context, sourceType models.SourceType, req IntakeRequest) string {
	extractor := s.images
	if sourceType == models.SourcePDF {
		extractor = s.pdfs
	}
	if extractor == nil {
		return ""
	}
	text, err := extractor.ExtractText(ctx, req.File, req.MimeType)
	if err != nil {
		s.logger.Warn("text extraction failed",
			zap.String("source_type", string(sourceType)),
			zap.String("file", req.FileName),
			zap.Error(err),
		)
		return ""
	}
	return text
}

func sourceTypeOf(req IntakeRequest) models.SourceType {
	if len(req.File) == 0 {
		return models.SourceText
	}
	if req.MimeType == pdfMimeType || strings.EqualFold(filepath.Ext(req.FileName), ".pdf") {
		return models.SourcePDF
	}
	return models.SourceImage
}
