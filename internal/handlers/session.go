package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/campfire/internal/logger"
	"github.com/jwebster45206/campfire/pkg/checkpoint"
	"github.com/jwebster45206/campfire/pkg/directive"
	"github.com/jwebster45206/campfire/pkg/engine"
	"github.com/jwebster45206/campfire/pkg/state"
	"github.com/jwebster45206/campfire/pkg/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionRecord is what the service persists per session: the save blob
// plus the onExit blocks the current passage registered.
type SessionRecord struct {
	Save         checkpoint.SaveData `json:"save"`
	PendingExits [][]*directive.Node `json:"pendingExits,omitempty"`
}

// CreateSessionRequest optionally seeds the new session's game data.
type CreateSessionRequest struct {
	GameData map[string]any `json:"gameData,omitempty"`
}

type CreateSessionResponse struct {
	ID               uuid.UUID      `json:"id"`
	CurrentPassageID string         `json:"currentPassageId"`
	GameData         map[string]any `json:"gameData"`
}

// ApplyResponse is the outcome of applying a passage or eval source.
type ApplyResponse struct {
	Nodes            []*directive.Node        `json:"nodes"`
	Errors           []*engine.DirectiveError `json:"errors"`
	Warnings         []string                 `json:"warnings"`
	CurrentPassageID string                   `json:"currentPassageId"`
	GameData         map[string]any           `json:"gameData"`
}

type EvalRequest struct {
	Source string `json:"source"`
}

// SessionHandler serves play sessions. Each session is one engine whose
// state round-trips through the blob store on every request; requests for
// the same session are serialized.
type SessionHandler struct {
	sessions storage.BlobStore
	saves    storage.BlobStore
	passages engine.PassageSource
	start    string
	opts     []engine.Option
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sessionLock
}

// sessionLock is a per-session mutex shared by every in-flight request for
// that session. The entry lives only while refs > 0.
type sessionLock struct {
	sync.Mutex
	refs int
}

// NewSessionHandler creates the handler. Session records and the sessions'
// own save slots share blobs under distinct prefixes.
func NewSessionHandler(blobs storage.BlobStore, passages engine.PassageSource, start string, logger *slog.Logger, opts ...engine.Option) *SessionHandler {
	return &SessionHandler{
		sessions: storage.WithPrefix(blobs, "session:"),
		saves:    storage.WithPrefix(blobs, "save:"),
		passages: passages,
		start:    start,
		opts:     opts,
		logger:   logger,
		locks:    make(map[uuid.UUID]*sessionLock),
	}
}

// ServeHTTP handles HTTP requests for sessions
// Routes:
// POST /v1/sessions                              - Create a session
// GET /v1/sessions/{id}                          - Read the session's save blob
// DELETE /v1/sessions/{id}                       - Delete a session
// POST /v1/sessions/{id}/passages/{passageId}    - Apply a story passage
// POST /v1/sessions/{id}/eval                    - Run eval statements
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 3)
	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	unlock := h.lock(id)
	defer unlock()

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleRead(w, r, id)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleDelete(w, r, id)
	case len(parts) == 3 && parts[1] == "passages" && r.Method == http.MethodPost:
		h.handlePassage(w, r, id, parts[2])
	case len(parts) == 2 && parts[1] == "eval" && r.Method == http.MethodPost:
		h.handleEval(w, r, id)
	case len(parts) == 1:
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
	default:
		h.writeError(w, http.StatusNotFound, "Not found")
	}
}

// lock serializes requests for id. The returned func releases the lock and
// drops the map entry once no other request holds or waits on it.
func (h *SessionHandler) lock(id uuid.UUID) func() {
	h.mu.Lock()
	l, ok := h.locks[id]
	if !ok {
		l = &sessionLock{}
		h.locks[id] = l
	}
	l.refs++
	h.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		h.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(h.locks, id)
		}
		h.mu.Unlock()
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.Warn("Invalid JSON in request body", "error", err)
			h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
			return
		}
	}

	id := uuid.New()
	eng := h.newEngine(id, state.NewStoreFrom(state.Snapshot{GameData: req.GameData}))
	eng.Checkpoints().SetCurrent(h.start)
	if err := h.persist(r.Context(), id, eng); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to save session")
		return
	}

	logger.WithSessionID(h.logger, id.String()).Info("Created session")
	w.WriteHeader(http.StatusCreated)
	h.encode(w, CreateSessionResponse{
		ID:               id,
		CurrentPassageID: eng.CurrentPassage(),
		GameData:         eng.Store().Data(),
	})
}

func (h *SessionHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	rec, ok := h.load(r.Context(), w, id)
	if !ok {
		return
	}
	h.encode(w, rec.Save)
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if _, ok := h.load(r.Context(), w, id); !ok {
		return
	}
	if err := h.sessions.Remove(r.Context(), id.String()); err != nil {
		h.logger.Error("Failed to delete session", "session_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handlePassage(w http.ResponseWriter, r *http.Request, id uuid.UUID, passageID string) {
	rec, ok := h.load(r.Context(), w, id)
	if !ok {
		return
	}
	eng := h.restore(id, rec)

	res, err := eng.ApplyPassage(r.Context(), passageID)
	if errors.Is(err, engine.ErrPassageNotFound) {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("Passage not found: %s", passageID))
		return
	}
	if err != nil {
		h.logger.Error("Passage evaluation failed", "session_id", id, "passage", passageID, "error", err)
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.persist(r.Context(), id, eng); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to save session")
		return
	}

	h.encode(w, ApplyResponse{
		Nodes:            res.Nodes,
		Errors:           nonNil(res.Errors),
		Warnings:         nonNilStrings(res.Warnings),
		CurrentPassageID: res.CurrentPassageID,
		GameData:         eng.Store().Data(),
	})
}

func (h *SessionHandler) handleEval(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req EvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Source) == "" {
		h.writeError(w, http.StatusBadRequest, "source field is required")
		return
	}
	rec, ok := h.load(r.Context(), w, id)
	if !ok {
		return
	}
	eng := h.restore(id, rec)
	errs := eng.Eval(r.Context(), req.Source)
	if err := h.persist(r.Context(), id, eng); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to save session")
		return
	}
	h.encode(w, ApplyResponse{
		Nodes:            []*directive.Node{},
		Errors:           nonNil(errs),
		Warnings:         []string{},
		CurrentPassageID: eng.CurrentPassage(),
		GameData:         eng.Store().Data(),
	})
}

func (h *SessionHandler) newEngine(id uuid.UUID, store *state.Store) *engine.Engine {
	opts := append([]engine.Option{
		engine.WithLogger(logger.WithSessionID(h.logger, id.String())),
		engine.WithBlobStore(storage.WithPrefix(h.saves, id.String()+":")),
		engine.WithPassages(h.passages),
		engine.WithStore(store),
	}, h.opts...)
	return engine.New(opts...)
}

func (h *SessionHandler) restore(id uuid.UUID, rec SessionRecord) *engine.Engine {
	eng := h.newEngine(id, state.NewStore())
	eng.Restore(rec.Save)
	eng.SetPendingExits(rec.PendingExits)
	return eng
}

// load reads a session record, writing the error response itself when it
// cannot.
func (h *SessionHandler) load(ctx context.Context, w http.ResponseWriter, id uuid.UUID) (SessionRecord, bool) {
	raw, err := h.sessions.Get(ctx, id.String())
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Session not found")
		return SessionRecord{}, false
	}
	if err != nil {
		h.logger.Error("Failed to load session", "session_id", id, "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "Failed to load session")
		return SessionRecord{}, false
	}
	var rec SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		h.logger.Error("Failed to unmarshal session", "session_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Session data is corrupt")
		return SessionRecord{}, false
	}
	return rec, true
}

func (h *SessionHandler) persist(ctx context.Context, id uuid.UUID, eng *engine.Engine) error {
	rec := SessionRecord{Save: eng.SaveData(), PendingExits: eng.PendingExits()}
	b, err := json.Marshal(rec)
	if err != nil {
		h.logger.Error("Failed to marshal session", "session_id", id, "error", err)
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := h.sessions.Set(ctx, id.String(), string(b)); err != nil {
		h.logger.Error("Failed to save session", "session_id", id, "error", err)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (h *SessionHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	h.encode(w, ErrorResponse{Error: msg})
}

func (h *SessionHandler) encode(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func nonNil(errs []*engine.DirectiveError) []*engine.DirectiveError {
	if errs == nil {
		return []*engine.DirectiveError{}
	}
	return errs
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
