// Package session owns the client-side view of a shared desktop.
//
// The Store merges inbound relay messages into the local window list and
// cursor set, applies local mutations and broadcasts them, and keeps the
// current workspace saved through a debounced autosave.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"aether-service/internal/debounce"
	"aether-service/internal/dispatch"
	"aether-service/internal/domain"
	"aether-service/internal/dto"
	"aether-service/internal/gateway"
	"aether-service/internal/protocol"
)

const (
	DefaultStaleAfter      = 5 * time.Second
	DefaultSweepInterval   = 1 * time.Second
	DefaultStructuralDelay = 1 * time.Second
	DefaultMoveDelay       = 2 * time.Second
	DefaultCursorRate      = rate.Limit(30)
)

var (
	// ErrNoGateway is returned by workspace operations when no gateway is configured
	ErrNoGateway = errors.New("no workspace gateway configured")
	// ErrInvalidWindow is returned for windows with a missing id or unknown type
	ErrInvalidWindow = errors.New("invalid window")
	// ErrDuplicateWindow is returned when a local window reuses an existing id
	ErrDuplicateWindow = errors.New("duplicate window id")
)

// Broadcaster sends a message to the other participants
type Broadcaster interface {
	Send(msg protocol.Message) error
}

// TaskDispatcher runs autosave writes off the caller's goroutine
type TaskDispatcher interface {
	Dispatch(name string, task dispatch.Task) error
}

// Config wires a Store. Zero durations use the package defaults.
type Config struct {
	Self        Participant
	Broadcaster Broadcaster
	Gateway     gateway.WorkspaceGateway
	// Dispatcher defaults to a private single-worker dispatcher closed by Close
	Dispatcher TaskDispatcher
	Logger     *zap.Logger
	Now        func() time.Time

	StaleAfter      time.Duration
	SweepInterval   time.Duration
	StructuralDelay time.Duration
	MoveDelay       time.Duration

	CursorRate  rate.Limit
	CursorBurst int

	// Jitter returns values in [0, 1) for new window placement
	Jitter func() float64
}

// Store is the session state owner. All methods are safe for concurrent use.
type Store struct {
	self        Participant
	broadcaster Broadcaster
	gateway     gateway.WorkspaceGateway
	dispatcher  TaskDispatcher
	owned       *dispatch.Dispatcher
	logger      *zap.Logger
	now         func() time.Time
	jitter      func() float64

	staleAfter      time.Duration
	sweepInterval   time.Duration
	structuralDelay time.Duration
	moveDelay       time.Duration

	limiter  *rate.Limiter
	autosave *debounce.Debouncer

	mu                 sync.Mutex
	windows            []domain.Window
	activeWindowID     string
	currentWorkspaceID string
	cursors            map[string]RemoteCursor

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// New creates an empty store
func New(cfg Config) *Store {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Jitter == nil {
		cfg.Jitter = rand.Float64
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.StructuralDelay <= 0 {
		cfg.StructuralDelay = DefaultStructuralDelay
	}
	if cfg.MoveDelay <= 0 {
		cfg.MoveDelay = DefaultMoveDelay
	}
	if cfg.CursorRate == 0 {
		cfg.CursorRate = DefaultCursorRate
	}
	if cfg.CursorBurst <= 0 {
		cfg.CursorBurst = 1
	}

	s := &Store{
		self:            cfg.Self,
		broadcaster:     cfg.Broadcaster,
		gateway:         cfg.Gateway,
		dispatcher:      cfg.Dispatcher,
		logger:          cfg.Logger.With(zap.String("user_id", cfg.Self.UserID)),
		now:             cfg.Now,
		jitter:          cfg.Jitter,
		staleAfter:      cfg.StaleAfter,
		sweepInterval:   cfg.SweepInterval,
		structuralDelay: cfg.StructuralDelay,
		moveDelay:       cfg.MoveDelay,
		limiter:         rate.NewLimiter(cfg.CursorRate, cfg.CursorBurst),
		windows:         []domain.Window{},
		cursors:         make(map[string]RemoteCursor),
		stop:            make(chan struct{}),
	}
	if s.dispatcher == nil {
		s.owned = dispatch.New(dispatch.Config{Logger: cfg.Logger})
		s.dispatcher = s.owned
	}
	s.autosave = debounce.New(s.runAutosave)
	return s
}

// Self returns the local participant
func (s *Store) Self() Participant {
	return s.self
}

// Start launches the stale-cursor sweeper
func (s *Store) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.sweepLoop()
	})
}

// Close stops the sweeper, drops a pending autosave and shuts down the
// private dispatcher if the store created one
func (s *Store) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
		s.autosave.CancelPending()
		if s.owned != nil {
			err = s.owned.Close(ctx)
		}
	})
	return err
}

func (s *Store) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepStale(s.now())
		case <-s.stop:
			return
		}
	}
}

// HandleRemoteMessage applies a message from another participant.
// Messages carrying the local user id are ignored.
func (s *Store) HandleRemoteMessage(msg protocol.Message) {
	if msg == nil || msg.Sender() == s.self.UserID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	msg.Accept(&remoteApplier{store: s, now: s.now()})
}

// remoteApplier merges inbound messages. It runs with the store mutex held.
type remoteApplier struct {
	store *Store
	now   time.Time
}

func (a *remoteApplier) VisitCursor(m *protocol.Cursor) {
	a.store.cursors[m.UserID] = RemoteCursor{
		ID:         m.UserID,
		Username:   m.Username,
		Color:      m.Color,
		Position:   m.Position,
		LastUpdate: a.now,
	}
}

func (a *remoteApplier) VisitWindowMove(m *protocol.WindowMove) {
	if i := a.store.indexLocked(m.WindowID); i >= 0 {
		a.store.windows[i].Position = m.Position
	}
}

func (a *remoteApplier) VisitWindowAction(m *protocol.WindowAction) {
	switch m.Action {
	case protocol.ActionAdd:
		a.store.windows = append(a.store.windows, m.Window)
	case protocol.ActionRemove:
		a.store.removeLocked(m.Window.ID)
	}
}

// SweepStale evicts remote cursors not updated within the stale threshold
// of now and returns how many were removed
func (s *Store) SweepStale(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, c := range s.cursors {
		if now.Sub(c.LastUpdate) > s.staleAfter {
			delete(s.cursors, id)
			removed++
		}
	}
	return removed
}

// AddWindow creates a focused window near the left of the scene and broadcasts it
func (s *Store) AddWindow(windowType domain.WindowType, title, content string) (domain.Window, error) {
	if !windowType.IsValid() {
		return domain.Window{}, fmt.Errorf("%w: unknown type %q", ErrInvalidWindow, windowType)
	}

	s.mu.Lock()
	offset := math.Mod(float64(len(s.windows))*0.5, 3)
	w := domain.Window{
		ID:       uuid.NewString(),
		Title:    title,
		Content:  content,
		Position: domain.Vec3{-2 + offset, s.jitter() * 0.5, s.jitter() * 0.5},
		Rotation: domain.Vec3{0, 0, 0},
		Scale:    domain.Vec3{1, 1, 1},
		Type:     windowType,
	}
	s.windows = append(s.windows, w)
	s.activeWindowID = w.ID
	s.mu.Unlock()

	s.broadcast(protocol.NewAddWindow(s.self.UserID, w))
	s.autosave.Trigger(s.structuralDelay)
	return w, nil
}

// InsertWindow adds a fully specified window, focuses it and broadcasts it
func (s *Store) InsertWindow(w domain.Window) error {
	if w.ID == "" || !w.Type.IsValid() {
		return fmt.Errorf("%w: id %q type %q", ErrInvalidWindow, w.ID, w.Type)
	}

	s.mu.Lock()
	if s.indexLocked(w.ID) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateWindow, w.ID)
	}
	s.windows = append(s.windows, w)
	s.activeWindowID = w.ID
	s.mu.Unlock()

	s.broadcast(protocol.NewAddWindow(s.self.UserID, w))
	s.autosave.Trigger(s.structuralDelay)
	return nil
}

// RemoveWindow deletes a window and broadcasts the removal. It reports
// false, and sends nothing, when no window has the id.
func (s *Store) RemoveWindow(id string) bool {
	s.mu.Lock()
	removed := s.removeLocked(id)
	s.mu.Unlock()
	if !removed {
		return false
	}

	s.broadcast(protocol.NewRemoveWindow(s.self.UserID, id))
	s.autosave.Trigger(s.structuralDelay)
	return true
}

// FocusWindow sets the locally focused window. Focus is never broadcast.
func (s *Store) FocusWindow(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(id) < 0 {
		return false
	}
	s.activeWindowID = id
	return true
}

// MoveWindow repositions a window and broadcasts the new position
func (s *Store) MoveWindow(id string, position domain.Vec3) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.windows[i].Position = position
	s.mu.Unlock()

	s.broadcast(&protocol.WindowMove{UserID: s.self.UserID, WindowID: id, Position: position})
	s.autosave.Trigger(s.moveDelay)
	return true
}

// MoveCursor announces the local pointer. Calls beyond the cursor rate are
// dropped and report false.
func (s *Store) MoveCursor(position domain.Vec3) bool {
	if !s.limiter.AllowN(s.now(), 1) {
		return false
	}
	s.broadcast(&protocol.Cursor{
		UserID:   s.self.UserID,
		Username: s.self.Username,
		Color:    s.self.Color,
		Position: position,
	})
	return true
}

// Windows returns a copy of the window list in insertion order
func (s *Store) Windows() []domain.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Window{}, s.windows...)
}

// Window looks up one window by id
func (s *Store) Window(id string) (domain.Window, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(id); i >= 0 {
		return s.windows[i], true
	}
	return domain.Window{}, false
}

// ActiveWindowID returns the focused window id, or "" when nothing is focused
func (s *Store) ActiveWindowID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeWindowID
}

// CurrentWorkspaceID returns the id autosave writes to, or "" when unset
func (s *Store) CurrentWorkspaceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentWorkspaceID
}

// RemoteCursors returns the live remote cursors ordered by user id
func (s *Store) RemoteCursors() []RemoteCursor {
	s.mu.Lock()
	out := make([]RemoteCursor, 0, len(s.cursors))
	for _, c := range s.cursors {
		out = append(out, c)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot returns the persistable window layout
func (s *Store) Snapshot() domain.WindowsState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SaveWorkspace stores the current layout under a new workspace and makes
// it the autosave target
func (s *Store) SaveWorkspace(ctx context.Context, name string) (*dto.WorkspaceResponse, error) {
	if s.gateway == nil {
		return nil, ErrNoGateway
	}
	s.autosave.CancelPending()

	ws, err := s.gateway.Create(ctx, name, s.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("save workspace: %w", err)
	}

	s.mu.Lock()
	s.currentWorkspaceID = ws.ID
	s.mu.Unlock()

	s.logger.Info("Workspace saved", zap.String("workspace_id", ws.ID), zap.String("name", ws.Name))
	return ws, nil
}

// LoadWorkspace replaces the window list and focus with a saved workspace
// and makes it the autosave target. Loaded windows are not broadcast.
func (s *Store) LoadWorkspace(ctx context.Context, id string) (*dto.WorkspaceResponse, error) {
	if s.gateway == nil {
		return nil, ErrNoGateway
	}
	s.autosave.CancelPending()

	ws, err := s.gateway.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load workspace %s: %w", id, err)
	}

	s.mu.Lock()
	s.windows = append([]domain.Window{}, ws.WindowsState.Windows...)
	s.activeWindowID = ""
	if ws.WindowsState.ActiveWindowID != nil {
		s.activeWindowID = *ws.WindowsState.ActiveWindowID
	}
	s.currentWorkspaceID = ws.ID
	s.mu.Unlock()

	s.logger.Info("Workspace loaded",
		zap.String("workspace_id", ws.ID),
		zap.Int("windows", len(ws.WindowsState.Windows)),
	)
	return ws, nil
}

// DeleteWorkspace removes a saved workspace and clears the autosave target
// when it was the one deleted. It reports false when the id was unknown.
func (s *Store) DeleteWorkspace(ctx context.Context, id string) (bool, error) {
	if s.gateway == nil {
		return false, ErrNoGateway
	}

	deleted, err := s.gateway.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete workspace %s: %w", id, err)
	}

	s.mu.Lock()
	cleared := s.currentWorkspaceID == id
	if cleared {
		s.currentWorkspaceID = ""
	}
	s.mu.Unlock()
	if cleared {
		s.autosave.CancelPending()
	}
	return deleted, nil
}

// ListWorkspaces returns every saved workspace
func (s *Store) ListWorkspaces(ctx context.Context) ([]dto.WorkspaceResponse, error) {
	if s.gateway == nil {
		return nil, ErrNoGateway
	}
	list, err := s.gateway.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return list, nil
}

// AutosavePending reports whether a debounced save is scheduled
func (s *Store) AutosavePending() bool {
	return s.autosave.Pending()
}

func (s *Store) runAutosave() {
	s.mu.Lock()
	id := s.currentWorkspaceID
	state := s.snapshotLocked()
	s.mu.Unlock()

	if id == "" || s.gateway == nil {
		return
	}

	err := s.dispatcher.Dispatch("autosave", func(ctx context.Context) error {
		if _, err := s.gateway.Update(ctx, id, dto.UpdateWorkspaceRequest{WindowsState: &state}); err != nil {
			return fmt.Errorf("autosave workspace %s: %w", id, err)
		}
		s.logger.Debug("Workspace autosaved", zap.String("workspace_id", id))
		return nil
	})
	if err != nil {
		s.logger.Warn("Autosave dropped", zap.String("workspace_id", id), zap.Error(err))
	}
}

func (s *Store) broadcast(msg protocol.Message) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Send(msg); err != nil {
		s.logger.Debug("Broadcast dropped", zap.String("type", string(msg.Type())), zap.Error(err))
	}
}

func (s *Store) indexLocked(id string) int {
	for i := range s.windows {
		if s.windows[i].ID == id {
			return i
		}
	}
	return -1
}

// removeLocked drops every window with the id; remote adds may have duplicated it
func (s *Store) removeLocked(id string) bool {
	kept := s.windows[:0]
	for _, w := range s.windows {
		if w.ID != id {
			kept = append(kept, w)
		}
	}
	removed := len(kept) != len(s.windows)
	s.windows = kept
	if s.activeWindowID == id {
		s.activeWindowID = ""
	}
	return removed
}

func (s *Store) snapshotLocked() domain.WindowsState {
	state := domain.WindowsState{Windows: append([]domain.Window{}, s.windows...)}
	if s.activeWindowID != "" {
		active := s.activeWindowID
		state.ActiveWindowID = &active
	}
	return state
}
