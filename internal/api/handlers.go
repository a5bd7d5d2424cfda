package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/topicbench/offtopic/internal/dataset"
	"github.com/topicbench/offtopic/internal/session"
)

// turnView is a dialog turn with its position and speaker side resolved
// for the UI.
type turnView struct {
	Index int    `json:"index"`
	Role  string `json:"role"`
	Text  string `json:"text"`
	IsBot bool   `json:"is_bot"`
}

func turnViews(turns []dataset.Turn) []turnView {
	out := make([]turnView, len(turns))
	for i, t := range turns {
		out[i] = turnView{Index: i, Role: t.Role, Text: t.Text, IsBot: t.IsBot()}
	}
	return out
}

type sessionView struct {
	Key               session.Key              `json:"key"`
	Dialog            string                   `json:"dialog"`
	SystemInstruction string                   `json:"system_instruction"`
	Turns             []turnView               `json:"turns"`
	BotTurnIndices    []int                    `json:"bot_turn_indices"`
	Rules             []ruleView               `json:"rules"`
	Annotations       []session.AnnotationUnit `json:"annotations"`
}

type ruleView struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

func (s *Server) view() sessionView {
	sess := s.sess
	rules := sess.Rules()
	rv := make([]ruleView, len(rules))
	for i, r := range rules {
		rv[i] = ruleView{Index: r.Index, Text: r.Text}
	}
	turns := sess.Turns()
	return sessionView{
		Key:               sess.Key(),
		Dialog:            string(sess.Dialog()),
		SystemInstruction: sess.SystemInstruction(),
		Turns:             turnViews(turns),
		BotTurnIndices:    dataset.BotTurnIndices(turns),
		Rules:             rv,
		Annotations:       sess.Annotations(),
	}
}

func (s *Server) domains(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"domains": s.index.Domains()})
}

func (s *Server) scenarios(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		writeError(w, http.StatusBadRequest, errors.New("domain query parameter is required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"domain":    domain,
		"scenarios": s.index.Scenarios(domain),
	})
}

func (s *Server) rows(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	scenario := r.URL.Query().Get("scenario")
	if domain == "" || scenario == "" {
		writeError(w, http.StatusBadRequest, errors.New("domain and scenario query parameters are required"))
		return
	}
	matching := s.index.Matching(domain, scenario)
	writeJSON(w, http.StatusOK, map[string]any{
		"domain":   domain,
		"scenario": scenario,
		"count":    len(matching),
	})
}

func (s *Server) row(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	scenario := r.URL.Query().Get("scenario")
	rowIdx, err := strconv.Atoi(r.URL.Query().Get("row"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("row query parameter must be an integer"))
		return
	}

	rec, ok := s.index.Row(domain, scenario, rowIdx)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no row %d for %s/%s", rowIdx, domain, scenario))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"domain":             rec.Domain,
		"scenario":           rec.Scenario,
		"row_index":          rowIdx,
		"system_instruction": rec.SystemInstruction,
		"conversation":       turnViews(dataset.DecodeTurns(rec.Dialog(dataset.DialogClean))),
		"conversation_with_distractors": turnViews(
			dataset.DecodeTurns(rec.Dialog(dataset.DialogWithDistractors))),
	})
}

type sessionRequest struct {
	Domain   string `json:"domain"`
	Scenario string `json:"scenario"`
	RowIndex int    `json:"row_index"`
	Dialog   string `json:"dialog"`
}

func (req sessionRequest) dialogSource() (dataset.DialogSource, error) {
	switch req.Dialog {
	case "", string(dataset.DialogClean):
		return dataset.DialogClean, nil
	case string(dataset.DialogWithDistractors):
		return dataset.DialogWithDistractors, nil
	}
	return "", fmt.Errorf("unknown dialog source: %q", req.Dialog)
}

// sessionCreate rebuilds the active session from scratch. Switching
// scenario is always an explicit rebuild; nothing from the previous
// session carries over.
func (s *Server) sessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	src, err := req.dialogSource()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, ok := s.index.Row(req.Domain, req.Scenario, req.RowIndex)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no row %d for %s/%s", req.RowIndex, req.Domain, req.Scenario))
		return
	}

	key := session.Key{Split: s.split, Domain: req.Domain, Scenario: req.Scenario, RowIndex: req.RowIndex}
	turns := dataset.DecodeTurns(rec.Dialog(src))

	s.mu.Lock()
	s.sess = session.New(key, src, rec.SystemInstruction, turns)
	view := s.view()
	s.mu.Unlock()

	s.logger.Info("session started", "key", key.String(), "dialog", string(src), "turns", len(turns))
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) sessionGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		writeError(w, http.StatusNotFound, errors.New("no active session"))
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

// rulesSegment runs auto-segmentation. The default mode splits lines and
// then sentences; "lines" keeps whole lines for instructions whose lines
// are already rule-sized.
func (s *Server) rulesSegment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		writeError(w, http.StatusNotFound, errors.New("no active session"))
		return
	}

	var added []int
	switch req.Mode {
	case "", "sentences":
		added = s.sess.SegmentRules()
	case "lines":
		added = s.sess.SegmentRuleLines()
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown segment mode: %q", req.Mode))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"added": added,
		"rules": s.view().Rules,
	})
}

func (s *Server) rulesAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		writeError(w, http.StatusNotFound, errors.New("no active session"))
		return
	}

	idx := s.sess.AddRule(req.Text)
	if idx < 0 {
		writeError(w, http.StatusUnprocessableEntity, errors.New("rule text is empty or already present"))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"index": idx,
		"rules": s.view().Rules,
	})
}

func (s *Server) annotationAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BotTurnIndex int    `json:"bot_turn_index"`
		Distractor   string `json:"distractor"`
		RuleIndices  []int  `json:"rule_indices"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		writeError(w, http.StatusNotFound, errors.New("no active session"))
		return
	}

	unit, err := s.sess.AddAnnotation(req.BotTurnIndex, req.Distractor, req.RuleIndices)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	s.logger.Info("annotation added",
		"key", s.sess.Key().String(),
		"bot_turn", unit.BotTurnIndex,
		"rules", unit.RuleIndices,
	)
	writeJSON(w, http.StatusCreated, unit)
}

func (s *Server) annotationRemove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse annotation id: %w", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		writeError(w, http.StatusNotFound, errors.New("no active session"))
		return
	}
	if !s.sess.RemoveAnnotation(id) {
		writeError(w, http.StatusNotFound, fmt.Errorf("no annotation with id %s", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": id.String()})
}

func (s *Server) sessionSave(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		writeError(w, http.StatusNotFound, errors.New("no active session"))
		return
	}

	path, err := s.store.Save(s.sess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("save session: %w", err))
		return
	}

	s.logger.Info("session saved", "key", s.sess.Key().String(), "path", path)
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// sessionLoad rebuilds the session from a prior save of the requested
// conversation, so work can continue across restarts.
func (s *Server) sessionLoad(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	key := session.Key{Split: s.split, Domain: req.Domain, Scenario: req.Scenario, RowIndex: req.RowIndex}
	file, err := s.store.Load(key)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, fmt.Errorf("no saved work for %s", key.String()))
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Errorf("load save: %w", err))
		return
	}

	rec, ok := s.index.Row(req.Domain, req.Scenario, req.RowIndex)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no row %d for %s/%s", req.RowIndex, req.Domain, req.Scenario))
		return
	}

	src := dataset.DialogSource(file.Dialog)
	if src != dataset.DialogWithDistractors {
		src = dataset.DialogClean
	}
	turns := dataset.DecodeTurns(rec.Dialog(src))

	s.mu.Lock()
	s.sess = session.Restore(key, src, file.SystemInstruction, turns, file.SystemRules, file.Annotations)
	view := s.view()
	s.mu.Unlock()

	s.logger.Info("session loaded from save", "key", key.String(), "annotations", len(file.Annotations))
	writeJSON(w, http.StatusOK, view)
}

// sessionExport downloads the current session as the annotation JSON
// payload, without requiring a save first.
func (s *Server) sessionExport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		writeError(w, http.StatusNotFound, errors.New("no active session"))
		return
	}

	key := s.sess.Key()
	payload := map[string]any{
		"split":              key.Split,
		"domain":             key.Domain,
		"scenario":           key.Scenario,
		"row_index":          key.RowIndex,
		"system_instruction": s.sess.SystemInstruction(),
		"system_rules":       s.sess.RuleTexts(),
		"annotations":        s.sess.Annotations(),
		"exported_at":        time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "offtopic_"+key.Domain+"_"+key.Scenario+".json"))
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) savesList(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saves": names})
}

func (s *Server) savesDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.store.Delete(name); err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, fmt.Errorf("no save named %q", name))
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}
