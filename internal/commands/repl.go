package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"aether-service/internal/domain"
	"aether-service/internal/dto"
	"aether-service/internal/session"
)

const replHelp = `Commands:
  add <type> <title> [content]   create a window (terminal, notes, browser, settings)
  rm <id>                        remove a window
  move <id> <x> <y> <z>          move a window
  focus <id>                     focus a window (local only)
  cursor <x> <y> <z>             announce your cursor
  ls                             list windows
  cursors                        list remote cursors
  save <name>                    save the desktop as a new workspace
  load <id>                      replace the desktop with a saved workspace
  workspaces                     list saved workspaces
  delete <id>                    delete a saved workspace
  ask <message>                  run a natural language command
  quit                           leave the session`

var errQuit = errors.New("quit")

// Interpreter resolves natural language commands
type Interpreter interface {
	Interpret(ctx context.Context, message string) (*dto.CommandResponse, error)
}

// repl drives a session store from line-oriented input
type repl struct {
	store       *session.Store
	interpreter Interpreter
	out         io.Writer
	now         func() time.Time
}

func newREPL(store *session.Store, interpreter Interpreter, out io.Writer) *repl {
	return &repl{store: store, interpreter: interpreter, out: out, now: time.Now}
}

// run reads commands until EOF, quit or ctx is cancelled
func (r *repl) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := r.exec(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
			}
		}
	}
}

func (r *repl) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help", "?":
		fmt.Fprintln(r.out, replHelp)
	case "quit", "exit":
		return errQuit
	case "add":
		return r.add(args)
	case "rm":
		if len(args) != 1 {
			return errors.New("usage: rm <id>")
		}
		if !r.store.RemoveWindow(args[0]) {
			return fmt.Errorf("no window %s", args[0])
		}
		fmt.Fprintf(r.out, "removed %s\n", args[0])
	case "move":
		if len(args) != 4 {
			return errors.New("usage: move <id> <x> <y> <z>")
		}
		pos, err := parseVec3(args[1:])
		if err != nil {
			return err
		}
		if !r.store.MoveWindow(args[0], pos) {
			return fmt.Errorf("no window %s", args[0])
		}
		fmt.Fprintf(r.out, "moved %s to %s\n", args[0], formatVec3(pos))
	case "focus":
		if len(args) != 1 {
			return errors.New("usage: focus <id>")
		}
		if !r.store.FocusWindow(args[0]) {
			return fmt.Errorf("no window %s", args[0])
		}
		fmt.Fprintf(r.out, "focused %s\n", args[0])
	case "cursor":
		pos, err := parseVec3(args)
		if err != nil {
			return err
		}
		if !r.store.MoveCursor(pos) {
			fmt.Fprintln(r.out, "cursor throttled")
			return nil
		}
		fmt.Fprintf(r.out, "cursor at %s\n", formatVec3(pos))
	case "ls":
		r.listWindows()
	case "cursors":
		r.listCursors()
	case "save":
		if len(args) == 0 {
			return errors.New("usage: save <name>")
		}
		ws, err := r.store.SaveWorkspace(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "saved workspace %s %q\n", ws.ID, ws.Name)
	case "load":
		if len(args) != 1 {
			return errors.New("usage: load <id>")
		}
		ws, err := r.store.LoadWorkspace(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "loaded workspace %s %q (%d windows)\n", ws.ID, ws.Name, len(ws.WindowsState.Windows))
	case "workspaces":
		list, err := r.store.ListWorkspaces(ctx)
		if err != nil {
			return err
		}
		printWorkspaces(r.out, list, r.store.CurrentWorkspaceID())
	case "delete":
		if len(args) != 1 {
			return errors.New("usage: delete <id>")
		}
		deleted, err := r.store.DeleteWorkspace(ctx, args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("no workspace %s", args[0])
		}
		fmt.Fprintf(r.out, "deleted workspace %s\n", args[0])
	case "ask":
		if len(args) == 0 {
			return errors.New("usage: ask <message>")
		}
		return r.ask(ctx, strings.Join(args, " "))
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

func (r *repl) add(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: add <type> <title> [content]")
	}
	w, err := r.store.AddWindow(domain.WindowType(args[0]), args[1], strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "added %s (%s) %q at %s\n", w.ID, w.Type, w.Title, formatVec3(w.Position))
	return nil
}

// ask applies the interpreted action the way the desktop terminal does
func (r *repl) ask(ctx context.Context, message string) error {
	if r.interpreter == nil {
		return errors.New("no command endpoint configured")
	}
	result, err := r.interpreter.Interpret(ctx, message)
	if err != nil {
		return err
	}
	if result.Message != "" {
		fmt.Fprintln(r.out, result.Message)
	}

	switch result.Action {
	case dto.CommandCreateWindow:
		windowType := result.WindowType
		if windowType == "" {
			windowType = string(domain.WindowTypeNotes)
		}
		title := result.WindowTitle
		if title == "" {
			title = "New Window"
		}
		w, err := r.store.AddWindow(domain.WindowType(windowType), title, result.Content)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "created %s window %q (%s)\n", w.Type, w.Title, w.ID)
	case dto.CommandChangeTheme:
		fmt.Fprintf(r.out, "theme change to %q\n", result.Theme)
	case dto.CommandListWindows:
		r.listWindows()
	}
	return nil
}

func (r *repl) listWindows() {
	windows := r.store.Windows()
	active := r.store.ActiveWindowID()
	fmt.Fprintf(r.out, "%d windows\n", len(windows))
	for _, w := range windows {
		marker := " "
		if w.ID == active {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %s %-8s %q %s\n", marker, w.ID, w.Type, w.Title, formatVec3(w.Position))
	}
}

func (r *repl) listCursors() {
	cursors := r.store.RemoteCursors()
	fmt.Fprintf(r.out, "%d remote cursors\n", len(cursors))
	now := r.now()
	for _, c := range cursors {
		fmt.Fprintf(r.out, "  %s (%s) %s %s %s ago\n",
			c.Username, c.ID, c.Color, formatVec3(c.Position), now.Sub(c.LastUpdate).Round(100*time.Millisecond))
	}
}

func printWorkspaces(out io.Writer, list []dto.WorkspaceResponse, current string) {
	fmt.Fprintf(out, "%d workspaces\n", len(list))
	for _, ws := range list {
		marker := " "
		if ws.ID == current {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s %q (%d windows, updated %s)\n",
			marker, ws.ID, ws.Name, len(ws.WindowsState.Windows), ws.UpdatedAt.Format(time.RFC3339))
	}
}

func parseVec3(args []string) (domain.Vec3, error) {
	var v domain.Vec3
	if len(args) != 3 {
		return v, errors.New("expected three coordinates")
	}
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return v, fmt.Errorf("invalid coordinate %q", a)
		}
		v[i] = f
	}
	return v, nil
}

func formatVec3(v domain.Vec3) string {
	return fmt.Sprintf("[%.2f %.2f %.2f]", v[0], v[1], v[2])
}
