package client

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jroimartin/gocui"
)

const (
	viewMessages = "messages"
	viewRooms    = "rooms"
	viewStatus   = "status"
	viewInput    = "input"

	sidebarWidth = 24
)

// ChatUI renders a Model in the terminal and forwards input lines to a
// Conn.
type ChatUI struct {
	gui  *gocui.Gui
	conn *Conn
	addr string

	mu    sync.Mutex
	model *Model
}

// NewChatUI takes over the terminal. Close restores it.
func NewChatUI(conn *Conn, model *Model, addr string) (*ChatUI, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}
	ui := &ChatUI{gui: g, conn: conn, model: model, addr: addr}
	g.SetManagerFunc(ui.layout)
	return ui, nil
}

func (ui *ChatUI) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	msgWidth := maxX - sidebarWidth - 1
	msgHeight := maxY - 6

	if v, err := g.SetView(viewMessages, 0, 0, msgWidth, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Chat"
		v.Wrap = true
		v.Autoscroll = true
	}

	if v, err := g.SetView(viewRooms, msgWidth+1, 0, maxX-1, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Pong rooms"
	}

	if v, err := g.SetView(viewStatus, 0, msgHeight+1, maxX-1, msgHeight+3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Status"
		v.Wrap = true
	}

	if v, err := g.SetView(viewInput, 0, msgHeight+3, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Message (/rooms, /join N, Ctrl-C quits)"
		v.Editable = true
		v.Wrap = true
		if _, err := g.SetCurrentView(viewInput); err != nil {
			return err
		}
	}

	return ui.render(g)
}

// render redraws every view from the model.
func (ui *ChatUI) render(g *gocui.Gui) error {
	ui.mu.Lock()
	lines := ui.model.Lines()
	rooms := ui.model.RoomLines()
	status := ui.model.Status()
	ui.mu.Unlock()

	if v, err := g.View(viewMessages); err == nil {
		v.Clear()
		for _, line := range lines {
			fmt.Fprintln(v, line)
		}
	}
	if v, err := g.View(viewRooms); err == nil {
		v.Clear()
		for _, line := range rooms {
			fmt.Fprintln(v, line)
		}
	}
	if v, err := g.View(viewStatus); err == nil {
		v.Clear()
		fmt.Fprintf(v, "%s | %s", ui.addr, status)
	}
	return nil
}

func (ui *ChatUI) keybindings() error {
	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone,
		func(*gocui.Gui, *gocui.View) error {
			return gocui.ErrQuit
		}); err != nil {
		return err
	}
	return ui.gui.SetKeybinding(viewInput, gocui.KeyEnter, gocui.ModNone, ui.handleInput)
}

func (ui *ChatUI) handleInput(g *gocui.Gui, v *gocui.View) error {
	input := strings.TrimSpace(v.Buffer())
	v.Clear()
	v.SetCursor(0, 0)

	ui.mu.Lock()
	frame, err := ui.model.BuildFrame(input)
	ui.mu.Unlock()
	if errors.Is(err, ErrEmptyInput) {
		return nil
	}
	if err == nil {
		err = ui.conn.Send(frame)
	}
	ui.mu.Lock()
	if err != nil {
		ui.model.SetStatus(err.Error())
	} else {
		ui.model.SetStatus(statusConnected)
	}
	ui.mu.Unlock()
	return ui.render(g)
}

// Run pumps server events into the model and blocks until the user quits.
// A lost connection is reported in the status bar.
func (ui *ChatUI) Run() error {
	if err := ui.keybindings(); err != nil {
		return err
	}

	events, errs := ui.conn.Events()
	go func() {
		for event := range events {
			ui.mu.Lock()
			changed := ui.model.Apply(event)
			ui.mu.Unlock()
			if changed {
				ui.gui.Update(ui.render)
			}
		}
		err := <-errs
		ui.mu.Lock()
		ui.model.SetStatus(fmt.Sprintf("disconnected: %v", err))
		ui.mu.Unlock()
		ui.gui.Update(ui.render)
	}()

	if err := ui.gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

// Close restores the terminal.
func (ui *ChatUI) Close() {
	ui.gui.Close()
}
