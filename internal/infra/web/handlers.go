package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"log-archiver/internal/domain"
	"log-archiver/internal/domain/model"
	"log-archiver/internal/infra/metrics"
)

type slotDTO struct {
	HourRange   string     `json:"hour_range"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	RecordCount int64      `json:"record_count"`
	StorageKey  string     `json:"storage_key,omitempty"`
	UploadedAt  *time.Time `json:"uploaded_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type jobDTO struct {
	Date      string    `json:"date"`
	Slots     []slotDTO `json:"slots"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSlotDTO(s *model.HourSlot) slotDTO {
	return slotDTO{
		HourRange:   s.HourRange,
		Status:      string(s.Status),
		Attempts:    s.Attempts,
		LastError:   s.LastError,
		RecordCount: s.RecordCount,
		StorageKey:  s.StorageKey,
		UploadedAt:  s.UploadedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func toJobDTO(j *model.Job) jobDTO {
	out := jobDTO{Date: j.Date, CreatedAt: j.CreatedAt, UpdatedAt: j.UpdatedAt}
	for i := range j.HourSlots {
		out.Slots = append(out.Slots, toSlotDTO(&j.HourSlots[i]))
	}
	return out
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.daily.GetJob(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toJobDTO(job))
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.daily.CreateDailyJob(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toJobDTO(job))
}

// processSlot is the synchronous manual trigger for backfill/testing.
func (s *Server) processSlot(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	hourRange := chi.URLParam(r, "hourRange")

	slot, err := s.processor.ProcessSlot(r.Context(), date, hourRange)
	if err != nil {
		if errors.Is(err, domain.ErrSlotTerminal) && slot != nil {
			// Surface the terminal state rather than a bare error.
			s.writeJSON(w, http.StatusConflict, toSlotDTO(slot))
			return
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSlotDTO(slot))
}

func (s *Server) sweep(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("dry_run") == "true"

	db, err := s.retention.SweepDatabase(r.Context(), dryRun)
	if err != nil {
		s.writeError(w, err)
		return
	}
	st, err := s.retention.SweepStorage(r.Context(), dryRun)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !dryRun {
		metrics.AddRetentionDeleted("database", db.Deleted)
		metrics.AddRetentionDeleted("storage", st.Deleted)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"database": db, "storage": st})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrSlotTerminal):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error().Err(err).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
