package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"invoice-console/internal/backend"
	"invoice-console/internal/events"
	"invoice-console/internal/history"
	"invoice-console/internal/session"
	"invoice-console/internal/sheet"
	"invoice-console/internal/util"
	"invoice-console/internal/view"
)

// uploadResponse is the body returned after staging files. Sheet is set only
// when the uploaded file is an inspectable workbook (the template slot).
type uploadResponse struct {
	State session.State `json:"state"`
	Sheet *sheet.Info   `json:"sheet,omitempty"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create(h.cfg.StrictDefault)
	h.metrics.UpdateSessions(h.sessions.Count())
	h.logger.Info("session created", "session_id", s.ID)
	h.writeJSONStatus(w, http.StatusCreated, s.Snapshot())
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, s *session.Session, slot string) {
	if slot != "po" && slot != "timesheets" && slot != "template" {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown file slot %q", slot))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed or oversized upload: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		h.writeError(w, http.StatusBadRequest, "no files in request")
		return
	}
	if slot != "timesheets" && len(parts) > 1 {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("slot %q takes a single file", slot))
		return
	}

	wantExt := ".pdf"
	if slot == "template" {
		wantExt = ".xlsx"
	}

	staged := make([]session.StagedFile, 0, len(parts))
	for _, part := range parts {
		name := filepath.Base(part.Filename)
		if !strings.EqualFold(filepath.Ext(name), wantExt) {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: slot %q expects a %s file", name, slot, wantExt))
			return
		}
		f, err := part.Open()
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: %v", name, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: %v", name, err))
			return
		}
		staged = append(staged, session.StagedFile{Name: name, Size: int64(len(data)), Data: data})
	}

	resp := uploadResponse{}
	switch slot {
	case "po":
		s.StagePO(staged[0])
	case "template":
		s.StageTemplate(staged[0])
		info, err := sheet.Inspect(bytes.NewReader(staged[0].Data))
		if err != nil {
			h.logger.Warn("template workbook not inspectable", "file", staged[0].Name, "err", err)
		} else {
			resp.Sheet = info
		}
	case "timesheets":
		s.StageTimesheets(staged...)
	}

	for _, f := range staged {
		h.metrics.RecordUpload(slot, f.Size)
		h.publish(events.Event{
			Type:      events.TypeFileStaged,
			SessionID: s.ID,
			Slot:      slot,
			File:      f.Name,
		})
	}
	h.logger.Info("files staged", "session_id", s.ID, "slot", slot, "count", len(staged))

	resp.State = s.Snapshot()
	h.writeJSON(w, resp)
}

func (h *Handler) handleRemoveTimesheet(w http.ResponseWriter, r *http.Request, s *session.Session, rawIndex string) {
	idx, err := strconv.Atoi(rawIndex)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("bad timesheet index %q", rawIndex))
		return
	}

	var removed string
	for _, ts := range s.Snapshot().Timesheets {
		if ts.Index == idx {
			removed = ts.Name
		}
	}

	if err := s.RemoveTimesheet(idx); err != nil {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	h.publish(events.Event{
		Type:      events.TypeFileRemoved,
		SessionID: s.ID,
		Slot:      "timesheets",
		File:      removed,
	})
	h.writeJSON(w, s.Snapshot())
}

func (h *Handler) handleSetConfig(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var body struct {
		Config string `json:"config"`
		Strict *bool  `json:"strict"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	strict := s.Snapshot().Strict
	if body.Strict != nil {
		strict = *body.Strict
	}
	s.SetConfig(body.Config, strict)
	h.writeJSON(w, s.Snapshot())
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request, s *session.Session) {
	// Reject a malformed engineer config before spending a round trip.
	st := s.Snapshot()
	if strings.TrimSpace(st.Config) != "" {
		if _, err := util.DecodeJSONObject([]byte(st.Config)); err != nil {
			h.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid engineer config: %v", err))
			return
		}
	}

	req, err := s.BeginGenerate()
	if err != nil {
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}

	var uploadBytes int64
	uploadBytes += int64(len(req.PO.Data)) + int64(len(req.Template.Data))
	for _, ts := range req.Timesheets {
		uploadBytes += int64(len(ts.Data))
	}

	attemptID := uuid.NewString()
	start := time.Now()
	h.insertAttempt(&history.Attempt{
		ID:             attemptID,
		SessionID:      s.ID,
		TSStart:        start.UnixMilli(),
		Status:         history.StatusInFlight,
		TimesheetCount: len(req.Timesheets),
		UploadBytes:    uploadBytes,
		Strict:         req.Strict,
	})

	h.metrics.UpdateInFlight(1)
	defer h.metrics.UpdateInFlight(-1)
	h.publish(events.Event{Type: events.TypeGenerateStart, SessionID: s.ID})
	h.logger.Info("generation started",
		"session_id", s.ID,
		"attempt_id", attemptID,
		"timesheets", len(req.Timesheets),
		"strict", req.Strict,
	)

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.GenerateTimeout)
	defer cancel()
	resp, err := h.backend.Generate(ctx, req)
	dur := time.Since(start)

	if err != nil {
		s.FinishGenerate(nil)
		h.finishAttempt(attemptID, history.StatusError, dur, history.ErrorTransport, err.Error(), nil)
		h.metrics.RecordGeneration("error", dur, 0)
		h.publish(events.Event{Type: events.TypeGenerateFailed, SessionID: s.ID, Error: err.Error()})
		h.logger.Error("generation failed", "session_id", s.ID, "attempt_id", attemptID, "err", err)
		h.writeJSONStatus(w, http.StatusBadGateway, view.TransportFailure(err))
		return
	}

	s.FinishGenerate(resp)

	if !resp.Success {
		msg := view.JoinErrors(resp.Errors)
		h.finishAttempt(attemptID, history.StatusFailed, dur, errorClassOf(resp.ErrorType), msg, nil)
		h.metrics.RecordGeneration("failed", dur, 0)
		h.publish(events.Event{Type: events.TypeGenerateFailed, SessionID: s.ID, Error: msg})
		h.logger.Warn("generation rejected",
			"session_id", s.ID,
			"attempt_id", attemptID,
			"error_type", resp.ErrorType,
			"duration", dur,
		)
		h.writeJSON(w, view.FromResponse(resp))
		return
	}

	h.finishAttempt(attemptID, history.StatusOK, dur, history.ErrorNone, "", resp)
	var total float64
	if resp.Summary != nil {
		total = resp.Summary.GrandTotalUSD
	}
	h.metrics.RecordGeneration("ok", dur, total)
	h.publish(events.Event{
		Type:       events.TypeGenerateDone,
		SessionID:  s.ID,
		GrandTotal: view.FormatUSD(total),
	})
	h.logger.Info("generation complete",
		"session_id", s.ID,
		"attempt_id", attemptID,
		"grand_total_usd", total,
		"duration", dur,
	)
	h.writeJSON(w, view.FromResponse(resp))
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request, s *session.Session) {
	resp := s.Result()
	if resp == nil {
		h.writeError(w, http.StatusNotFound, "no result yet")
		return
	}
	h.writeJSON(w, view.FromResponse(resp))
}

func (h *Handler) handleDownloadReport(w http.ResponseWriter, r *http.Request, s *session.Session) {
	data, err := view.DecodeReport(s.Result())
	if err != nil {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", view.ReportFilename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (h *Handler) handleReportPreview(w http.ResponseWriter, r *http.Request, s *session.Session) {
	data, err := view.DecodeReport(s.Result())
	if err != nil {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	info, err := sheet.Inspect(bytes.NewReader(data))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, fmt.Sprintf("report not readable: %v", err))
		return
	}
	h.writeJSON(w, info)
}

func (h *Handler) handleDownloadAudit(w http.ResponseWriter, r *http.Request, s *session.Session) {
	data, err := view.AuditJSON(s.Result())
	if err != nil {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", view.AuditFilename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (h *Handler) handleBackendHealth(w http.ResponseWriter, r *http.Request) {
	if h.poller == nil {
		h.writeJSON(w, map[string]bool{"online": false})
		return
	}
	h.writeJSON(w, h.poller.Status())
}

func (h *Handler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotFound, "history storage is disabled")
		return
	}

	q := r.URL.Query()
	opts := history.ListOptions{
		Limit:  parseInt(q.Get("limit"), 50),
		Offset: parseInt(q.Get("offset"), 0),
	}
	if raw := q.Get("status"); raw != "" {
		status := history.Status(raw)
		switch status {
		case history.StatusInFlight, history.StatusOK, history.StatusFailed, history.StatusError:
			opts.Status = &status
		default:
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", raw))
			return
		}
	}
	if q.Get("window") != "" {
		opts.Window = parseWindow(r)
	}

	attempts, err := h.history.List(opts)
	if err != nil {
		h.logger.Error("failed to list attempts", "err", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	h.writeJSON(w, map[string]any{
		"attempts": attempts,
		"count":    len(attempts),
	})
}

func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request, id string) {
	if h.history == nil {
		h.writeError(w, http.StatusNotFound, "history storage is disabled")
		return
	}
	a, err := h.history.GetByID(id)
	if err != nil {
		h.logger.Error("failed to load attempt", "id", id, "err", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load attempt")
		return
	}
	if a == nil {
		h.writeError(w, http.StatusNotFound, "unknown attempt")
		return
	}
	h.writeJSON(w, a)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotFound, "history storage is disabled")
		return
	}

	window := parseWindow(r)
	o, err := h.history.Overview(window)
	if err != nil {
		h.logger.Error("failed to compute overview", "err", err)
		h.writeError(w, http.StatusInternalServerError, "failed to compute overview")
		return
	}
	inFlight, err := h.history.InFlightCount()
	if err != nil {
		h.logger.Error("failed to count in-flight attempts", "err", err)
	}

	h.writeJSON(w, map[string]any{
		"window":    window.String(),
		"overview":  o,
		"in_flight": inFlight,
		"sessions":  h.sessions.Count(),
	})
}

func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		h.writeError(w, http.StatusNotFound, "events are disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.bus.Subscribe()
	defer h.bus.Unsubscribe(ch)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			frame, err := events.FormatSSE(ev)
			if err != nil {
				h.logger.Error("failed to format event", "err", err)
				continue
			}
			fmt.Fprint(w, frame)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// publish forwards an event when the bus is configured.
func (h *Handler) publish(ev events.Event) {
	if h.bus != nil {
		h.bus.Publish(ev)
	}
}

func (h *Handler) insertAttempt(a *history.Attempt) {
	if h.history == nil {
		return
	}
	if err := h.history.Insert(a); err != nil {
		h.logger.Error("failed to record attempt", "attempt_id", a.ID, "err", err)
	}
}

func (h *Handler) finishAttempt(id string, status history.Status, dur time.Duration, class history.ErrorClass, errMsg string, resp *backend.GenerateResponse) {
	if h.history == nil {
		return
	}

	end := time.Now().UnixMilli()
	durMs := int(dur.Milliseconds())
	upd := history.AttemptUpdate{
		TSEnd:      &end,
		Status:     &status,
		DurationMs: &durMs,
	}
	if class != history.ErrorNone {
		upd.ErrorClass = &class
	}
	if errMsg != "" {
		upd.Error = &errMsg
	}
	if resp != nil && resp.Summary != nil {
		upd.ContractNumber = &resp.Summary.ContractNumber
		engineers := resp.Summary.TotalEngineers
		upd.EngineerCount = &engineers
		total := resp.Summary.GrandTotalUSD
		upd.GrandTotalUSD = &total
	}

	if err := h.history.Update(id, upd); err != nil {
		h.logger.Error("failed to finish attempt", "attempt_id", id, "err", err)
	}
}

// errorClassOf maps a backend error_type to a stored error class.
func errorClassOf(errorType string) history.ErrorClass {
	switch errorType {
	case "config_error":
		return history.ErrorConfig
	case "validation_error":
		return history.ErrorValidation
	case "transport_error":
		return history.ErrorTransport
	default:
		return history.ErrorProcessing
	}
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "err", err)
	}
}
