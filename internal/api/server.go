package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"flash-notes/internal/logging"
	"flash-notes/internal/models"
	"flash-notes/internal/services"
)

const (
	maxMultipartMemory = 8 << 20  // 8 MB
	maxUploadSize      = 20 << 20 // 20 MB
	maxJSONBody        = 1 << 20
)

const timeLayout = time.RFC3339

type Server struct {
	router     chi.Router
	notes      *services.NoteService
	flashcards *services.FlashcardService
	quizzes    *services.QuizService
	intake     *services.IntakeService
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewServer(
	notes *services.NoteService,
	flashcards *services.FlashcardService,
	quizzes *services.QuizService,
	intake *services.IntakeService,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		notes:      notes,
		flashcards: flashcards,
		quizzes:    quizzes,
		intake:     intake,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logging.OrNop(logger),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", s.handleListNotes)
			r.Post("/", s.handleCreateNote)
			r.Get("/{id}", s.handleGetNote)
		})

		r.Route("/flashcards", func(r chi.Router) {
			r.Post("/review", s.handleReview)
			r.Get("/due", s.handleDueFlashcards)
			r.Get("/stats", s.handleFlashcardStats)
		})

		r.Route("/quizzes/{noteId}", func(r chi.Router) {
			r.Get("/", s.handleGetQuiz)
			r.Post("/", s.handleSubmitQuiz)
		})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	page, limit := services.NotePage(queryInt(r, "page", 1), queryInt(r, "limit", 20))

	listings, total, err := s.notes.ListNotes(r.Context(), page, limit)
	if err != nil {
		s.serverError(w, "list notes", err)
		return
	}

	out := make([]map[string]any, 0, len(listings))
	for _, l := range listings {
		item := noteJSON(&l.Note)
		item["flashcardsCount"] = l.FlashcardsCount
		item["flashcardsPreview"] = flashcardsJSON(l.Preview)
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"page":  page,
		"limit": limit,
		"total": total,
		"notes": out,
	})
}

type createNoteRequest struct {
	Text         string `json:"text"`
	UserID       string `json:"userId"`
	UseSecondary bool   `json:"useSecondary"`
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseIntake(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := s.intake.ProcessIntake(r.Context(), req)
	if err != nil {
		s.serverError(w, "process intake", err)
		return
	}

	switch outcome.Kind {
	case services.OutcomeSuccess:
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":         true,
			"provider":   outcome.Provider,
			"note":       noteJSON(outcome.Note),
			"summary":    outcome.Summary,
			"shortNote":  outcome.ShortNote,
			"flashcards": flashcardsJSON(outcome.Flashcards),
		})
	case services.OutcomeNoInput:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "no_text",
			"message": "No text was provided or extracted. Please paste text or upload a clearer image.",
			"noteId":  outcome.Note.ID,
		})
	default:
		body := map[string]any{
			"error":         "analysis_failed",
			"message":       "Automated analysis failed. Please enter text manually or try again.",
			"noteId":        outcome.Note.ID,
			"extractedText": outcome.SourceText,
		}
		if len(outcome.Flashcards) > 0 {
			body["flashcards"] = flashcardsJSON(outcome.Flashcards)
		}
		writeJSON(w, http.StatusBadGateway, body)
	}
}

// parseIntake accepts either a multipart form (optionally with a file) or
// a JSON body.
func (s *Server) parseIntake(w http.ResponseWriter, r *http.Request) (services.IntakeRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body createNoteRequest
		if err := decodeJSON(r, &body); err != nil {
			return services.IntakeRequest{}, err
		}
		return services.IntakeRequest{
			Text:            body.Text,
			UserID:          strings.TrimSpace(body.UserID),
			PreferSecondary: body.UseSecondary,
		}, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return services.IntakeRequest{}, errors.New("invalid multipart form")
	}
	if form := r.MultipartForm; form != nil {
		defer form.RemoveAll()
	}

	req := services.IntakeRequest{
		Text:            r.FormValue("text"),
		UserID:          strings.TrimSpace(r.FormValue("userId")),
		PreferSecondary: formFlag(r.FormValue("useSecondary")) || formFlag(r.FormValue("useCohere")),
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return req, nil
	case err != nil:
		return services.IntakeRequest{}, errors.New("invalid file upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		return services.IntakeRequest{}, errors.New("read uploaded file")
	}
	if len(data) > maxUploadSize {
		return services.IntakeRequest{}, fmt.Errorf("file exceeds %d MB", maxUploadSize>>20)
	}
	req.File = data
	req.FileName = header.Filename
	req.MimeType = header.Header.Get("Content-Type")
	return req, nil
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := s.notes.GetNote(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNoteNotFound) {
			writeError(w, http.StatusNotFound, "note not found")
			return
		}
		s.serverError(w, "get note", err)
		return
	}

	cards, err := s.flashcards.ListFlashcardsByNote(r.Context(), id)
	if err != nil {
		s.serverError(w, "list flashcards", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"note":       noteJSON(note),
		"flashcards": flashcardsJSON(cards),
	})
}

type reviewRequest struct {
	ID      string `json:"id" validate:"required"`
	Quality *int   `json:"quality" validate:"required,min=0,max=5"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "id and quality (0-5) are required")
		return
	}

	card, err := s.flashcards.SubmitReview(r.Context(), req.ID, *req.Quality)
	if err != nil {
		if errors.Is(err, services.ErrFlashcardNotFound) {
			writeError(w, http.StatusNotFound, "flashcard not found")
			return
		}
		s.serverError(w, "submit review", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"flashcard": flashcardJSON(card),
	})
}

func (s *Server) handleDueFlashcards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.flashcards.DueFlashcards(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		s.serverError(w, "due flashcards", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"flashcards": flashcardsJSON(cards),
	})
}

func (s *Server) handleFlashcardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.flashcards.Stats(r.Context())
	if err != nil {
		s.serverError(w, "flashcard stats", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"stats": stats,
	})
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := s.quizzes.GetQuiz(r.Context(), chi.URLParam(r, "noteId"))
	if err != nil {
		s.quizError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"quizId":    quiz.ID,
		"questions": quiz.Questions,
	})
}

type submitQuizRequest struct {
	QuizID  string `json:"quizId"`
	Answers []int  `json:"answers"`
}

func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitQuizRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.quizzes.SubmitQuiz(r.Context(), chi.URLParam(r, "noteId"), req.QuizID, req.Answers)
	if err != nil {
		s.quizError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"score": result.Score,
		"total": result.Total,
	})
}

func (s *Server) quizError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNoteNotFound):
		writeError(w, http.StatusNotFound, "note not found")
	case errors.Is(err, services.ErrInvalidQuizID):
		writeError(w, http.StatusBadRequest, "invalid quiz id")
	default:
		s.serverError(w, "quiz", err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "server_error")
}

func noteJSON(n *models.Note) map[string]any {
	return map[string]any{
		"id":         n.ID,
		"userId":     nullString(n.UserID),
		"title":      n.Title,
		"sourceType": n.SourceType,
		"rawText":    n.RawText,
		"createdAt":  n.CreatedAt.Format(timeLayout),
	}
}

func flashcardJSON(c *models.Flashcard) map[string]any {
	return map[string]any{
		"id":          c.ID,
		"noteId":      c.NoteID,
		"front":       c.Front,
		"back":        c.Back,
		"easeFactor":  c.EaseFactor,
		"interval":    c.Interval,
		"repetitions": c.Repetitions,
		"nextReview":  nullTimeToString(c.NextReview),
		"stability":   c.Stability,
		"difficulty":  c.Difficulty,
		"lapses":      c.Lapses,
		"createdAt":   c.CreatedAt.Format(timeLayout),
	}
}

func flashcardsJSON(cards []models.Flashcard) []map[string]any {
	out := make([]map[string]any, 0, len(cards))
	for i := range cards {
		out = append(out, flashcardJSON(&cards[i]))
	}
	return out
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid json body")
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func formFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func nullTimeToString(t sql.NullTime) *string {
	if t.Valid {
		str := t.Time.Format(timeLayout)
		return &str
	}
	return nil
}

func nullString(v sql.NullString) *string {
	if v.Valid {
		str := v.String
		return &str
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
