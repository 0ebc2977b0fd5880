package commands

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aether-service/internal/domain"
	"aether-service/internal/dto"
	"aether-service/internal/gateway"
	"aether-service/internal/protocol"
	"aether-service/internal/session"
)

// memGateway is an in-memory WorkspaceGateway
type memGateway struct {
	mu     sync.Mutex
	nextID int
	items  map[string]dto.WorkspaceResponse
}

func newMemGateway() *memGateway {
	return &memGateway{items: make(map[string]dto.WorkspaceResponse)}
}

func (g *memGateway) List(ctx context.Context) ([]dto.WorkspaceResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]dto.WorkspaceResponse, 0, len(g.items))
	for _, ws := range g.items {
		out = append(out, ws)
	}
	return out, nil
}

func (g *memGateway) Get(ctx context.Context, id string) (*dto.WorkspaceResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ws, ok := g.items[id]
	if !ok {
		return nil, gateway.ErrWorkspaceNotFound
	}
	return &ws, nil
}

func (g *memGateway) Create(ctx context.Context, name string, state domain.WindowsState) (*dto.WorkspaceResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	ws := dto.WorkspaceResponse{ID: fmt.Sprintf("ws-%d", g.nextID), Name: name, WindowsState: state, UpdatedAt: time.Now()}
	g.items[ws.ID] = ws
	return &ws, nil
}

func (g *memGateway) Update(ctx context.Context, id string, patch dto.UpdateWorkspaceRequest) (*dto.WorkspaceResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ws, ok := g.items[id]
	if !ok {
		return nil, gateway.ErrWorkspaceNotFound
	}
	if patch.Name != nil {
		ws.Name = *patch.Name
	}
	if patch.WindowsState != nil {
		ws.WindowsState = *patch.WindowsState
	}
	g.items[id] = ws
	return &ws, nil
}

func (g *memGateway) Delete(ctx context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.items[id]; !ok {
		return false, nil
	}
	delete(g.items, id)
	return true, nil
}

type interpreterFunc func(ctx context.Context, message string) (*dto.CommandResponse, error)

func (f interpreterFunc) Interpret(ctx context.Context, message string) (*dto.CommandResponse, error) {
	return f(ctx, message)
}

func newTestREPL(t *testing.T, interp Interpreter) (*repl, *session.Store, *bytes.Buffer) {
	t.Helper()
	store := session.New(session.Config{
		Self:            session.Participant{UserID: "u1", Username: "alice", Color: session.PickColor(0)},
		Gateway:         newMemGateway(),
		StructuralDelay: time.Hour,
		MoveDelay:       time.Hour,
	})
	t.Cleanup(func() { store.Close(context.Background()) })
	out := &bytes.Buffer{}
	return newREPL(store, interp, out), store, out
}

func TestREPL_WindowCommands(t *testing.T) {
	r, store, out := newTestREPL(t, nil)
	ctx := context.Background()

	require.NoError(t, r.exec(ctx, "add notes Todo buy milk"))
	windows := store.Windows()
	require.Len(t, windows, 1)
	id := windows[0].ID
	assert.Equal(t, "buy milk", windows[0].Content)
	assert.Contains(t, out.String(), "added "+id)

	require.NoError(t, r.exec(ctx, "move "+id+" 1 2 3"))
	w, _ := store.Window(id)
	assert.Equal(t, domain.Vec3{1, 2, 3}, w.Position)

	out.Reset()
	require.NoError(t, r.exec(ctx, "ls"))
	assert.Contains(t, out.String(), "* "+id)

	require.NoError(t, r.exec(ctx, "rm "+id))
	assert.Empty(t, store.Windows())

	assert.Error(t, r.exec(ctx, "rm "+id))
	assert.Error(t, r.exec(ctx, "add clock Clock"))
	assert.Error(t, r.exec(ctx, "move x 1 2"))
	assert.Error(t, r.exec(ctx, "cursor 1 two 3"))
	assert.Error(t, r.exec(ctx, "dance"))
	assert.NoError(t, r.exec(ctx, "   "))
}

func TestREPL_Cursors(t *testing.T) {
	r, store, out := newTestREPL(t, nil)

	store.HandleRemoteMessage(&protocol.Cursor{UserID: "u2", Username: "bob", Color: "#4ecdc4", Position: domain.Vec3{1, 0, 0}})
	require.NoError(t, r.exec(context.Background(), "cursors"))
	assert.Contains(t, out.String(), "1 remote cursors")
	assert.Contains(t, out.String(), "bob (u2)")
}

func TestREPL_WorkspaceCommands(t *testing.T) {
	r, store, out := newTestREPL(t, nil)
	ctx := context.Background()

	require.NoError(t, r.exec(ctx, "add terminal Shell"))
	require.NoError(t, r.exec(ctx, "save My Desk"))
	assert.Equal(t, "ws-1", store.CurrentWorkspaceID())
	assert.Contains(t, out.String(), `saved workspace ws-1 "My Desk"`)

	require.NoError(t, r.exec(ctx, "add notes Scratch"))
	require.Len(t, store.Windows(), 2)

	require.NoError(t, r.exec(ctx, "load ws-1"))
	assert.Len(t, store.Windows(), 1)

	out.Reset()
	require.NoError(t, r.exec(ctx, "workspaces"))
	assert.Contains(t, out.String(), "* ws-1")

	require.NoError(t, r.exec(ctx, "delete ws-1"))
	assert.Equal(t, "", store.CurrentWorkspaceID())
	assert.Error(t, r.exec(ctx, "delete ws-1"))
	assert.Error(t, r.exec(ctx, "load ws-1"))
}

func TestREPL_AskCreatesWindow(t *testing.T) {
	var asked string
	r, store, out := newTestREPL(t, interpreterFunc(func(ctx context.Context, message string) (*dto.CommandResponse, error) {
		asked = message
		return &dto.CommandResponse{
			Action:      dto.CommandCreateWindow,
			WindowType:  "terminal",
			WindowTitle: "Shell",
			Message:     "Opening a terminal",
		}, nil
	}))

	require.NoError(t, r.exec(context.Background(), "ask open a terminal please"))
	assert.Equal(t, "open a terminal please", asked)

	windows := store.Windows()
	require.Len(t, windows, 1)
	assert.Equal(t, domain.WindowTypeTerminal, windows[0].Type)
	assert.Equal(t, "Shell", windows[0].Title)
	assert.Contains(t, out.String(), "Opening a terminal")
}

func TestREPL_AskDefaults(t *testing.T) {
	r, store, _ := newTestREPL(t, interpreterFunc(func(ctx context.Context, message string) (*dto.CommandResponse, error) {
		return &dto.CommandResponse{Action: dto.CommandCreateWindow}, nil
	}))

	require.NoError(t, r.exec(context.Background(), "ask something"))
	windows := store.Windows()
	require.Len(t, windows, 1)
	assert.Equal(t, domain.WindowTypeNotes, windows[0].Type)
	assert.Equal(t, "New Window", windows[0].Title)
}

func TestREPL_AskWithoutInterpreter(t *testing.T) {
	r, _, _ := newTestREPL(t, nil)
	assert.Error(t, r.exec(context.Background(), "ask hello"))
}

func TestREPL_RunStopsOnQuit(t *testing.T) {
	r, store, out := newTestREPL(t, nil)

	in := strings.NewReader("add notes A\nbogus\nquit\nadd notes B\n")
	require.NoError(t, r.run(context.Background(), in))

	assert.Len(t, store.Windows(), 1)
	assert.Contains(t, out.String(), `error: unknown command "bogus"`)
}

func TestParseVec3(t *testing.T) {
	v, err := parseVec3([]string{"1", "-2.5", "0"})
	require.NoError(t, err)
	assert.Equal(t, domain.Vec3{1, -2.5, 0}, v)

	_, err = parseVec3([]string{"1", "2"})
	assert.Error(t, err)
}
