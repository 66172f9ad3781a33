package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"minshare/internal/auth"
	"minshare/internal/core"
	"minshare/internal/log"
)

func (s *Server) currentKey(w http.ResponseWriter, r *http.Request, id auth.Identity) (core.StatusKey, bool) {
	key, err := s.engine.CurrentKey(id.MemberID)
	if err != nil {
		s.writeError(w, r, err)
		return core.StatusKey{}, false
	}
	return key, true
}

func (s *Server) writeStatus(w http.ResponseWriter, code int, st core.PeriodStatus) {
	NewResponse().Status(code).JSON(newStatusResponse(st, s.engine.Resolver().Time())).Write(w)
}

// handleStatus returns the caller's current period, creating it on first access.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	key, ok := s.currentKey(w, r, id)
	if !ok {
		return
	}
	st, err := s.engine.Status(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeStatus(w, http.StatusOK, st)
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := parseTransaction(p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	key, ok := s.currentKey(w, r, id)
	if !ok {
		return
	}
	st, err := s.engine.RecordTransaction(r.Context(), key, in.Amount, in.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeStatus(w, http.StatusCreated, st)
}

func (s *Server) handleMarkFullUsage(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	key, ok := s.currentKey(w, r, id)
	if !ok {
		return
	}
	st, err := s.engine.MarkFullUsage(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeStatus(w, http.StatusOK, st)
}

func (s *Server) handleDonateSurplus(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}
	target, err := core.ParseAllocationTarget(p.Get("target"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	key, ok := s.currentKey(w, r, id)
	if !ok {
		return
	}
	st, err := s.engine.DonateSurplus(r.Context(), key, target)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeStatus(w, http.StatusOK, st)
}

func (s *Server) handleResetPeriod(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	key, ok := s.currentKey(w, r, id)
	if !ok {
		return
	}
	st, err := s.engine.ResetPeriod(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeStatus(w, http.StatusOK, st)
}

// handleStatusStream pushes the caller's current period as Server-Sent
// Events: one "status" event on connect and one per change.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	key, ok := s.currentKey(w, r, id)
	if !ok {
		return
	}
	ctx := r.Context()
	updates, err := s.engine.Watch(ctx, key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Streaming unsupported", log.FieldError, err.Error())
		return
	}

	atomic.AddInt64(&s.appMetrics.openStreams, 1)
	defer atomic.AddInt64(&s.appMetrics.openStreams, -1)

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(newStatusResponse(st, s.engine.Resolver().Time()))
			if err != nil {
				log.FromContext(ctx).ErrorContext(ctx, "Encode stream event", log.FieldError, err.Error())
				return
			}
			if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
