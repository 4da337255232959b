package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/quizdeck/internal/domain"
	"github.com/mmcdole/quizdeck/internal/navigator"
	"github.com/mmcdole/quizdeck/internal/tui/components"
	"github.com/mmcdole/quizdeck/internal/tui/styles"
)

// Navigator is the deck controller as seen by the UI
type Navigator interface {
	Load(ctx context.Context) error
	Begin(dir navigator.Direction) (navigator.Transition, error)
	Complete(t navigator.Transition) error
	ToggleLike() (bool, error)
	NeedsReload(remoteVersion int) bool
	View() navigator.View
}

// ChatService sends follow-up questions about a card
type ChatService interface {
	Enabled() bool
	History(globalIndex int) []domain.ChatMessage
	Clear(globalIndex int)
	Ask(ctx context.Context, item domain.Item, prompt string, onChunk func(accumulated string)) (domain.ChatMessage, error)
}

// LikedSource loads the liked cards
type LikedSource interface {
	LoadLiked(ctx context.Context) ([]domain.Item, error)
}

// Mode is the current interaction mode
type Mode int

const (
	ModeCards Mode = iota
	ModeChat
	ModeLiked
	ModeHelp
)

// Options tunes the front end
type Options struct {
	// TransitionDelay is how long a move shows before it takes effect
	TransitionDelay time.Duration

	// Versions delivers remote versions newer than the local data
	Versions <-chan int

	// MarkdownStyle is the glamour style for answers
	MarkdownStyle string

	// StreamChat shows chat replies as they arrive
	StreamChat bool
}

// Chrome
const (
	HeaderHeight = 1
	FooterHeight = 1
)

// Model is the main Bubble Tea model for the application
type Model struct {
	// Application state
	Mode  Mode
	Ready bool

	// Services
	Nav     Navigator
	ChatSvc ChatService
	Likes   LikedSource
	opts    Options

	// UI Components
	Card    components.CardView
	Chat    components.ChatPanel
	Liked   components.LikedList
	Help    help.Model
	Spinner spinner.Model

	// Data
	view    navigator.View
	pending *navigator.Transition

	// Dimensions
	Width  int
	Height int

	// UI state
	StatusMsg   string
	StatusIsErr bool
	Loading     bool
}

// NewModel creates a new application model
func NewModel(nav Navigator, chatSvc ChatService, likes LikedSource, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.SpinnerStyle

	h := help.New()
	h.Styles.ShortKey = styles.HelpKeyStyle
	h.Styles.ShortDesc = styles.HelpDescStyle
	h.Styles.FullKey = styles.HelpKeyStyle
	h.Styles.FullDesc = styles.HelpDescStyle

	return Model{
		Mode:    ModeCards,
		Nav:     nav,
		ChatSvc: chatSvc,
		Likes:   likes,
		opts:    opts,
		Card:    components.NewCardView(opts.MarkdownStyle),
		Chat:    components.NewChatPanel(),
		Liked:   components.NewLikedList(),
		Help:    h,
		Spinner: sp,
		Loading: true,
	}
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		LoadDeckCmd(m.Nav),
		ListenVersionCmd(m.opts.Versions),
		m.Spinner.Tick,
	)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmds []tea.Cmd
		if m.Loading {
			var cmd tea.Cmd
			m.Spinner, cmd = m.Spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		var cmd tea.Cmd
		m.Chat, cmd, _ = m.Chat.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case DeckLoadedMsg:
		m.Loading = false
		m.pending = nil
		m.refresh()
		if msg.Err != nil {
			m.StatusMsg = describeLoadError(msg.Err)
			m.StatusIsErr = true
			return m, nil
		}
		if m.view.Info.FromCache {
			m.StatusMsg = "Offline: showing saved cards"
			m.StatusIsErr = false
			return m, ClearStatusCmd(4 * time.Second)
		}
		return m, nil

	case LoadBusyMsg:
		m.Loading = false
		return m, m.setStatus("Busy, try again", false)

	case TransitionDoneMsg:
		m.pending = nil
		if err := m.Nav.Complete(msg.Transition); err != nil && !errors.Is(err, navigator.ErrStale) {
			m.refresh()
			return m, func() tea.Msg { return ErrMsg{Err: err, Context: "Move failed"} }
		}
		m.refresh()
		return m, nil

	case LikeToggledMsg:
		m.refresh()
		if msg.Err != nil {
			return m, m.setStatus("Like not saved: "+msg.Err.Error(), true)
		}
		if msg.Liked {
			return m, m.setStatus("Liked", false)
		}
		return m, m.setStatus("Unliked", false)

	case ChatChunkMsg:
		m.Chat.SetStreaming(msg.Index, msg.Content)
		return m, msg.NextCmd

	case ChatDoneMsg:
		m.Chat.Finish(msg.Index, m.ChatSvc.History(msg.Index))
		if msg.Err != nil && m.Mode != ModeChat {
			return m, m.setStatus("Chat request failed", true)
		}
		return m, nil

	case LikedLoadedMsg:
		m.Liked.SetItems(msg.Items, msg.Err)
		return m, nil

	case NewVersionMsg:
		cmds := []tea.Cmd{ListenVersionCmd(m.opts.Versions)}
		// a move or load in flight picks the version up on the next check
		if m.pending == nil && !m.Loading && m.Nav.NeedsReload(msg.Version) {
			m.Loading = true
			m.StatusMsg = "New cards available, reloading"
			m.StatusIsErr = false
			cmds = append(cmds, LoadDeckCmd(m.Nav), m.Spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case StatusMsg:
		return m, m.setStatus(msg.Message, msg.IsError)

	case ClearStatusMsg:
		m.StatusMsg = ""
		m.StatusIsErr = false
		return m, nil

	case ErrMsg:
		return m, m.setStatus(msg.Error(), true)
	}

	return m, nil
}

// refresh takes a new snapshot from the controller and updates the card
func (m *Model) refresh() {
	m.view = m.Nav.View()
	cur := m.view.Current
	if cur == nil {
		m.Card.Clear()
		return
	}
	card := cur.Card
	if card == nil {
		card = domain.NewCard(cur.Item)
	}
	m.Card.SetCard(card, cur.Item, cur.Position, m.view.DeckLen)
}

func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.StatusMsg = text
	m.StatusIsErr = isErr
	if isErr {
		return ClearStatusCmd(5 * time.Second)
	}
	return ClearStatusCmd(2 * time.Second)
}

func (m *Model) updateLayout() {
	bodyHeight := m.Height - HeaderHeight - FooterHeight
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	m.Card.SetSize(m.Width, bodyHeight)
	m.Chat.SetSize(m.Width, bodyHeight)
	m.Liked.SetSize(m.Width, bodyHeight)
	m.Help.Width = m.Width
}

// describeLoadError turns a load failure into a status line
func describeLoadError(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCatalog) && errors.Is(err, domain.ErrRemoteUnavailable):
		return "Catalog unreachable and nothing saved locally. Press r to retry."
	case errors.Is(err, domain.ErrEmptyCatalog):
		return "No cards available. Press r to retry."
	case errors.Is(err, domain.ErrAuthFailed):
		return "Catalog rejected the token. Check catalog.token."
	case errors.Is(err, domain.ErrRemoteUnavailable):
		return "Catalog unreachable. Press r to retry."
	default:
		return "Failed to load cards: " + err.Error()
	}
}
