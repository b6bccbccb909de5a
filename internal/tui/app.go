// Package tui is the terminal interface of gigchat. It drives the
// conversation host in-process and redraws from bus events.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/gigboard/gigchat/internal/bus"
	"github.com/gigboard/gigchat/internal/chat"
	"github.com/gigboard/gigchat/internal/conversation"
	"github.com/gigboard/gigchat/internal/session"
	"github.com/gigboard/gigchat/internal/store"
	"github.com/gigboard/gigchat/internal/tui/keys"
	"github.com/gigboard/gigchat/internal/tui/model"
	"github.com/gigboard/gigchat/internal/tui/ui"
	"github.com/gigboard/gigchat/internal/tui/views"
)

const (
	pageConversations = "conversations"
	pageChat          = "chat"
	pageHelp          = "help"
	modalMenu         = "menu"

	recentLimit = 100
)

// Recents lists past conversations and the outbox tally. *store.DB implements it.
type Recents interface {
	ListConversations(limit int) ([]store.Conversation, error)
	CountOutbox() (store.OutboxCounts, error)
}

// Deps are the collaborators of the TUI.
type Deps struct {
	Host    *conversation.Host
	Bus     *bus.Bus
	Recents Recents
	Session session.Session
	Logger  *zap.Logger
	Started time.Time
}

// App is the main TUI application shell.
type App struct {
	deps     Deps
	log      *zap.Logger
	app      *tview.Application
	theme    *ui.Theme
	model    *model.Model
	registry *keys.Registry

	root      *tview.Flex
	pages     *ui.Pages
	info      *ui.ProfileInfo
	hints     *ui.Menu
	crumbs    *ui.Crumbs
	prompt    *ui.Prompt
	flash     *ui.FlashBar
	statusBar *views.StatusBar
	convList  *views.ConversationList
	timeline  *views.Timeline
	composer  *views.Composer
	msgMenu   *views.MessageMenu
	help      *views.HelpView

	promptShown bool
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(deps Deps) *App {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()
	profile := deps.Session.Profile

	a := &App{
		deps:      deps,
		log:       deps.Logger.Named("tui"),
		app:       tview.NewApplication(),
		theme:     theme,
		model:     model.New(),
		registry:  keys.NewRegistry(),
		pages:     ui.NewPages(),
		info:      ui.NewProfileInfo(theme),
		hints:     ui.NewMenu(theme),
		crumbs:    ui.NewCrumbs(theme, profile),
		prompt:    ui.NewPrompt(theme),
		flash:     ui.NewFlashBar(theme),
		statusBar: views.NewStatusBar(theme, profile),
		convList:  views.NewConversationList(theme),
		timeline:  views.NewTimeline(theme, deps.Session.UserID),
		composer:  views.NewComposer(theme),
		msgMenu:   views.NewMessageMenu(theme),
		help:      views.NewHelpView(theme),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':', Label: ":", Description: "Command", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: '?', Label: "?", Description: "Help", Visible: true,
		Handler: func() { a.pages.Push(pageHelp) },
	})

	a.registry.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: '/', Label: "/", Description: "Filter", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyEscape, Handler: func() { a.convList.SetFilter("") },
	})
	a.registry.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Label: "q", Description: "Quit", Visible: true,
		Handler: a.Stop,
	})

	a.registry.AddView(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Label: "i", Description: "Compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.composer) },
	})
	a.registry.AddView(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'm', Label: "m", Description: "Menu", Visible: true,
		Handler: a.openSelectedMenu,
	})
	for _, b := range []struct {
		r      rune
		desc   string
		action conversation.Action
	}{
		{'y', "Copy", conversation.ActionCopy},
		{'d', "Delete", conversation.ActionDelete},
		{'r', "Retry", conversation.ActionRetry},
		{'x', "Discard", conversation.ActionDiscard},
	} {
		a.registry.AddView(pageChat, &keys.Action{
			Key: tcell.KeyRune, Rune: b.r, Label: string(b.r), Description: b.desc, Visible: true,
			Handler: func() { a.runOnSelected(b.action) },
		})
	}
	a.registry.AddView(pageChat, &keys.Action{
		Key: tcell.KeyEscape, Label: "esc", Description: "Back", Visible: true,
		Handler: a.showConversations,
	})

	a.registry.AddView(pageHelp, &keys.Action{
		Key: tcell.KeyEscape, Label: "esc", Description: "Back", Visible: true,
		Handler: func() { a.pages.Pop() },
	})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(int, int) {
		if peer := a.convList.SelectedPeer(); peer != "" {
			a.open(peer)
		}
	})
	a.timeline.SetSelectedFunc(func(int, int) { a.openSelectedMenu() })

	a.composer.SetOnChange(func(text string) {
		if v, ok := a.deps.Host.Active(); ok {
			v.ContentChanged(text)
		}
	})
	a.composer.SetOnSend(a.send)
	a.composer.SetOnLeave(func() { a.app.SetFocus(a.timeline) })

	a.msgMenu.SetOnSelect(a.runMenuAction)
	a.msgMenu.SetOnClose(a.closeMenu)

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		if mode == ui.PromptFilter {
			a.convList.SetFilter(text)
			return
		}
		a.runCommand(ParseCommand(text))
	})
	a.prompt.SetOnChange(a.convList.SetFilter)
	a.prompt.SetOnCancel(a.hidePrompt)

	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(a.crumbTrail(stack))
		a.hints.Update(a.registry.Hints(a.pages.Current()))
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.timeline, 0, 1, true).
		AddItem(a.composer, 3, 0, false)

	a.pages.AddPage(pageConversations, a.convList, true, false)
	a.pages.AddPage(pageChat, chatFlex, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)

	header := tview.NewFlex().
		AddItem(a.info, 40, 0, false).
		AddItem(a.hints, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 16, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.flash, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true).EnableMouse(true)
	a.app.SetInputCapture(a.handleKey)
	a.app.SetMouseCapture(a.handleMouse)
	a.pages.Reset(pageConversations)
}

func (a *App) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	if a.promptShown || a.pages.HasModal() {
		return ev
	}
	if _, ok := a.app.GetFocus().(*tview.InputField); ok {
		return ev
	}
	if a.registry.HandleEvent(a.pages.Current(), ev) {
		return nil
	}
	return ev
}

// handleMouse closes the message menu on outside clicks and opens it on a
// right click over a message.
func (a *App) handleMouse(ev *tcell.EventMouse, action tview.MouseAction) (*tcell.EventMouse, tview.MouseAction) {
	if action != tview.MouseLeftClick && action != tview.MouseRightClick {
		return ev, action
	}
	x, y := ev.Position()
	p := conversation.Position{X: x, Y: y}

	if menu, ok := a.deps.Host.Menu(); ok && a.pages.HasModal() && menu.Interact(p) {
		a.pages.HideModal()
		a.app.SetFocus(a.timeline)
		if action == tview.MouseLeftClick {
			return nil, action
		}
	}
	if action == tview.MouseRightClick && a.pages.Current() == pageChat && a.timeline.InRect(x, y) {
		if a.timeline.SelectAt(p) {
			a.openMenu(a.timeline.SelectedID(), p)
		}
		return nil, action
	}
	return ev, action
}

// Run starts the TUI and blocks until it exits. A conversation opened
// before Run is shown at once.
func (a *App) Run() error {
	events, unsubscribe := a.deps.Bus.Subscribe("", 256)
	defer unsubscribe()
	defer a.cancel()
	go a.pump(events)
	go a.refreshLoop()

	a.reloadRecents()
	if v, ok := a.deps.Host.Active(); ok {
		a.model.Begin(v.Peer())
		go a.seed(v)
		a.pages.Push(pageChat)
	}
	a.render()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

func (a *App) pump(events <-chan bus.Event) {
	for ev := range events {
		if !a.model.Apply(ev) || a.ctx.Err() != nil {
			continue
		}
		a.app.QueueUpdateDraw(a.render)
	}
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				if a.pages.Current() == pageConversations {
					a.reloadRecents()
				}
				a.render()
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) render() {
	st := a.model.State()
	a.timeline.Update(st)
	a.statusBar.Update(st)
	a.flash.Update(a.model.Flash.Current())

	counts, err := a.deps.Recents.CountOutbox()
	if err != nil {
		a.log.Debug("count outbox failed", zap.Error(err))
	}
	a.info.Update(ui.ProfileData{
		Profile: a.deps.Session.Profile,
		UserID:  a.deps.Session.UserID,
		Peer:    st.Peer,
		Conn:    st.Conn,
		Outbox:  counts,
		Started: a.deps.Started,
	})
}

func (a *App) reloadRecents() {
	convs, err := a.deps.Recents.ListConversations(recentLimit)
	if err != nil {
		a.log.Warn("list conversations failed", zap.Error(err))
		a.model.Flash.Error("Could not load conversations: " + err.Error())
		return
	}
	a.convList.Update(convs)
}

func (a *App) crumbTrail(stack []string) []string {
	pages := map[string]ui.Component{
		pageConversations: a.convList,
		pageHelp:          a.help,
	}
	names := make([]string, 0, len(stack))
	for _, p := range stack {
		if p == pageChat {
			names = append(names, a.model.State().Peer)
			continue
		}
		if c, ok := pages[p]; ok {
			names = append(names, c.Name())
		}
	}
	return names
}

// open switches to the conversation with peer. The host mounts the view
// off the UI goroutine.
func (a *App) open(peer string) {
	if cur := a.model.State().Peer; cur != peer {
		a.model.Begin(peer)
	}
	go func() {
		v, err := a.deps.Host.Open(a.ctx, peer)
		if err != nil {
			a.log.Warn("open conversation failed", zap.String("peer", peer), zap.Error(err))
			a.app.QueueUpdateDraw(func() {
				a.restoreActive()
				a.model.Flash.Error(openErrorText(peer, err))
				a.render()
			})
			return
		}
		a.seed(v)
		a.app.QueueUpdateDraw(func() {
			a.pages.Reset(pageConversations)
			a.pages.Push(pageChat)
			a.app.SetFocus(a.timeline)
			a.render()
		})
	}()
}

// restoreActive points the model back at the mounted view after a failed open.
func (a *App) restoreActive() {
	v, ok := a.deps.Host.Active()
	if !ok {
		a.model.Clear()
		return
	}
	a.model.Begin(v.Peer())
	go a.seed(v)
}

func (a *App) seed(v *conversation.View) {
	snap, err := v.Snapshot(a.ctx)
	if err != nil {
		a.log.Debug("snapshot failed", zap.Error(err))
		return
	}
	a.model.Seed(snap)
	a.app.QueueUpdateDraw(a.render)
}

func (a *App) showConversations() {
	a.closeMenu()
	a.reloadRecents()
	a.pages.Reset(pageConversations)
	a.app.SetFocus(a.convList)
}

func (a *App) send(text string) bool {
	v, ok := a.deps.Host.Active()
	if !ok {
		a.model.Flash.Warn("Open a conversation first")
		return false
	}
	valid := chat.ValidateContent(text) == nil
	go func() {
		// The view reports invalid content and failed sends as notices.
		if _, err := v.Send(a.ctx, text); err != nil && valid && !errors.Is(err, context.Canceled) {
			a.log.Debug("send", zap.Error(err))
		}
	}()
	return valid
}

func (a *App) openSelectedMenu() {
	id := a.timeline.SelectedID()
	if id == "" {
		return
	}
	a.openMenu(id, a.timeline.SelectedPosition())
}

// openMenu shows the message menu for id anchored at p, shifted so it
// stays on screen.
func (a *App) openMenu(id string, p conversation.Position) {
	menu, ok := a.deps.Host.Menu()
	if !ok {
		return
	}
	_, _, w, h := a.root.GetRect()
	p.X = min(p.X, max(0, w-conversation.MenuWidth))
	p.Y = min(p.Y, max(0, h-conversation.MenuHeight))

	go func() {
		actions, err := menu.Open(a.ctx, id, p)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.model.Flash.Warn("Message is gone")
				a.render()
				return
			}
			a.msgMenu.Show(actions)
			a.pages.ShowModal(modalMenu, a.msgMenu, p.X, p.Y, conversation.MenuWidth, len(actions)+2)
			a.app.SetFocus(a.msgMenu)
		})
	}()
}

func (a *App) closeMenu() {
	if menu, ok := a.deps.Host.Menu(); ok {
		menu.Close()
	}
	if a.pages.HasModal() {
		a.pages.HideModal()
		a.app.SetFocus(a.timeline)
	}
}

func (a *App) runMenuAction(action conversation.Action) {
	menu, ok := a.deps.Host.Menu()
	a.pages.HideModal()
	a.app.SetFocus(a.timeline)
	if !ok {
		return
	}
	go a.runAction(menu, action)
}

// runOnSelected performs action on the selected message without showing
// the menu, if the action applies to it.
func (a *App) runOnSelected(action conversation.Action) {
	id := a.timeline.SelectedID()
	menu, ok := a.deps.Host.Menu()
	if id == "" || !ok {
		return
	}
	p := a.timeline.SelectedPosition()
	go func() {
		actions, err := menu.Open(a.ctx, id, p)
		if err != nil {
			return
		}
		for _, act := range actions {
			if act == action {
				a.runAction(menu, action)
				return
			}
		}
		menu.Close()
		a.app.QueueUpdateDraw(func() {
			a.model.Flash.Warn("Not available for this message")
			a.render()
		})
	}()
}

func (a *App) runAction(menu *conversation.Menu, action conversation.Action) {
	if err := menu.Run(a.ctx, action); err != nil {
		a.log.Debug("message action", zap.String("action", string(action)), zap.Error(err))
	}
}

func (a *App) runCommand(cmd Command) {
	if err := cmd.Validate(); err != nil {
		a.model.Flash.Warn(err.Error())
		a.render()
		return
	}
	switch cmd.Name {
	case "open":
		if cmd.Args == a.deps.Session.UserID {
			a.model.Flash.Warn("You cannot message yourself")
			a.render()
			return
		}
		a.open(cmd.Args)
	case "chats":
		a.showConversations()
	case "help":
		a.pages.Push(pageHelp)
	case "quit":
		a.Stop()
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	if a.promptShown {
		return
	}
	a.prompt.Activate(mode)
	a.root.AddItem(a.prompt, 3, 0, true)
	a.promptShown = true
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	if !a.promptShown {
		return
	}
	a.root.RemoveItem(a.prompt)
	a.promptShown = false
	switch a.pages.Current() {
	case pageChat:
		a.app.SetFocus(a.timeline)
	default:
		a.app.SetFocus(a.convList)
	}
}

func openErrorText(peer string, err error) string {
	switch {
	case errors.Is(err, conversation.ErrInvalidPeer):
		return "Cannot open a conversation with " + peer
	default:
		return "Could not open conversation: " + err.Error()
	}
}
