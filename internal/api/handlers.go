package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"readingtracker/internal/models"
	"readingtracker/internal/reminder"
	"readingtracker/internal/storage"
	"readingtracker/internal/tracker"
)

type handler struct {
	tracker   *tracker.Tracker
	reminders *reminder.Service
	logger    *zap.Logger
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps domain errors to HTTP status codes
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tracker.ErrValidation), errors.Is(err, reminder.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	default:
		h.logger.Error("API request failed",
			zap.Error(err),
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// GET /api/books?status=reading&q=dune
func (h *handler) listBooks(w http.ResponseWriter, r *http.Request) {
	var filter tracker.BookFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		filter.Status = &status
	}
	filter.Search = r.URL.Query().Get("q")

	books, err := h.tracker.ListBooks(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if books == nil {
		books = []models.Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *handler) getBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.tracker.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

type sessionsResponse struct {
	Sessions     []models.ReadingSession `json:"sessions"`
	TotalMinutes float64                 `json:"total_minutes"`
}

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.tracker.SessionsForBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []models.ReadingSession{}
	}
	writeJSON(w, http.StatusOK, sessionsResponse{
		Sessions:     sessions,
		TotalMinutes: tracker.TotalReadingTime(sessions).Minutes(),
	})
}

func (h *handler) listNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.tracker.NotesForBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	report, err := h.tracker.Report(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) listReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.reminders.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if reminders == nil {
		reminders = []models.Reminder{}
	}
	writeJSON(w, http.StatusOK, reminders)
}
