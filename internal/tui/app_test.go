package tui

import (
	"context"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/quizdeck/internal/domain"
	"github.com/mmcdole/quizdeck/internal/navigator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testItems = []domain.Item{
	{GlobalIndex: 5, Question: "What is a channel?", Answer: "A typed conduit."},
	{GlobalIndex: 2, Question: "What is a mutex?", Answer: "A mutual exclusion lock."},
	{GlobalIndex: 8, Question: "What is a map?", Answer: "A hash table."},
}

type fakeNav struct {
	position    int
	state       navigator.State
	begins      []navigator.Direction
	completes   int
	beginErr    error
	loads       int
	loadErr     error
	needsReload bool
	liked       bool
}

func (f *fakeNav) Load(ctx context.Context) error {
	f.loads++
	if f.loadErr != nil {
		return f.loadErr
	}
	f.state = navigator.Ready
	return nil
}

func (f *fakeNav) Begin(dir navigator.Direction) (navigator.Transition, error) {
	f.begins = append(f.begins, dir)
	if f.beginErr != nil {
		return navigator.Transition{}, f.beginErr
	}
	f.state = navigator.Transitioning
	return navigator.Transition{Direction: dir, From: f.position, To: f.position + int(dir)}, nil
}

func (f *fakeNav) Complete(t navigator.Transition) error {
	f.completes++
	f.position = t.To
	f.state = navigator.Ready
	return nil
}

func (f *fakeNav) ToggleLike() (bool, error) {
	f.liked = !f.liked
	return f.liked, nil
}

func (f *fakeNav) NeedsReload(remoteVersion int) bool {
	return f.needsReload
}

func (f *fakeNav) View() navigator.View {
	v := navigator.View{
		State:    f.state,
		Position: f.position,
		DeckLen:  len(testItems),
		Info:     domain.CatalogInfo{Version: 1, Size: 10},
	}
	if f.state == navigator.Idle {
		v.DeckLen = 0
		return v
	}
	item := testItems[f.position]
	item.IsLiked = f.liked
	v.Current = &navigator.Slot{Position: f.position, Item: item}
	return v
}

type fakeChat struct {
	chunks  []string
	history map[int][]domain.ChatMessage
}

func (f *fakeChat) Enabled() bool { return true }

func (f *fakeChat) History(globalIndex int) []domain.ChatMessage {
	return f.history[globalIndex]
}

func (f *fakeChat) Clear(globalIndex int) {
	delete(f.history, globalIndex)
}

func (f *fakeChat) Ask(ctx context.Context, item domain.Item, prompt string, onChunk func(string)) (domain.ChatMessage, error) {
	var acc string
	for _, c := range f.chunks {
		acc += c
		if onChunk != nil {
			onChunk(acc)
		}
	}
	reply := domain.ChatMessage{Role: domain.ChatRoleAssistant, Content: acc, RelatedIndex: item.GlobalIndex}
	if f.history == nil {
		f.history = make(map[int][]domain.ChatMessage)
	}
	f.history[item.GlobalIndex] = append(f.history[item.GlobalIndex],
		domain.ChatMessage{Role: domain.ChatRoleUser, Content: prompt, RelatedIndex: item.GlobalIndex},
		reply,
	)
	return reply, nil
}

type fakeLikes struct{ items []domain.Item }

func (f fakeLikes) LoadLiked(ctx context.Context) ([]domain.Item, error) {
	return f.items, nil
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newLoadedModel(t *testing.T, nav *fakeNav, chat *fakeChat) Model {
	t.Helper()
	if chat == nil {
		chat = &fakeChat{}
	}
	m := NewModel(nav, chat, fakeLikes{items: testItems[:2]}, Options{MarkdownStyle: "notty"})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	require.NoError(t, nav.Load(context.Background()))
	m, _ = update(t, m, DeckLoadedMsg{})
	require.False(t, m.Loading)
	return m
}

func TestInit_LoadsDeck(t *testing.T) {
	nav := &fakeNav{}
	m := NewModel(nav, &fakeChat{}, fakeLikes{}, Options{})
	assert.True(t, m.Loading)

	msg := LoadDeckCmd(nav)()
	assert.Equal(t, DeckLoadedMsg{}, msg)
	assert.Equal(t, 1, nav.loads)
}

func TestNext_CompletesAfterTransition(t *testing.T) {
	nav := &fakeNav{}
	m := newLoadedModel(t, nav, nil)
	assert.Contains(t, m.View(), "What is a channel?")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRight})
	require.NotNil(t, cmd)
	require.NotNil(t, m.pending)

	// a second press while the first is pending is ignored
	m, _ = update(t, m, runes("l"))
	assert.Len(t, nav.begins, 1)

	done := cmd()
	require.IsType(t, TransitionDoneMsg{}, done)
	m, _ = update(t, m, done)

	assert.Nil(t, m.pending)
	assert.Equal(t, 1, nav.completes)
	assert.Equal(t, 1, m.view.Position)
	assert.Contains(t, m.View(), "What is a mutex?")
}

func TestPrev_AtBoundaryShowsStatus(t *testing.T) {
	nav := &fakeNav{beginErr: navigator.ErrAtBoundary}
	m := newLoadedModel(t, nav, nil)

	m, _ = update(t, m, runes("h"))
	assert.Equal(t, []navigator.Direction{navigator.Backward}, nav.begins)
	assert.Equal(t, "This is the first card", m.StatusMsg)
	assert.Nil(t, m.pending)
}

func TestLike_TogglesAndReports(t *testing.T) {
	nav := &fakeNav{}
	m := newLoadedModel(t, nav, nil)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeySpace})
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, LikeToggledMsg{Liked: true}, msg)

	m, _ = update(t, m, msg)
	assert.Equal(t, "Liked", m.StatusMsg)
	assert.True(t, m.view.Current.Item.IsLiked)
}

func TestDeckLoaded_ErrorStatus(t *testing.T) {
	nav := &fakeNav{}
	m := NewModel(nav, &fakeChat{}, fakeLikes{}, Options{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	err := fmt.Errorf("%w: %w", domain.ErrEmptyCatalog, domain.ErrRemoteUnavailable)
	m, _ = update(t, m, DeckLoadedMsg{Err: err})
	assert.True(t, m.StatusIsErr)
	assert.Contains(t, m.StatusMsg, "unreachable")
	assert.Contains(t, m.View(), "No cards to show")
}

func TestNewVersion_ReloadsOnlyWhenNeeded(t *testing.T) {
	versions := make(chan int, 1)
	nav := &fakeNav{}
	m := newLoadedModel(t, nav, nil)
	m.opts.Versions = versions

	m, cmd := update(t, m, NewVersionMsg{Version: 2})
	assert.NotNil(t, cmd) // keeps listening
	assert.False(t, m.Loading)

	nav.needsReload = true
	m, cmd = update(t, m, NewVersionMsg{Version: 3})
	assert.NotNil(t, cmd)
	assert.True(t, m.Loading)
}

func TestNewVersion_WaitsForPendingMove(t *testing.T) {
	nav := &fakeNav{needsReload: true}
	m := newLoadedModel(t, nav, nil)
	m.opts.Versions = make(chan int, 1)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRight})
	require.NotNil(t, m.pending)

	m, cmd := update(t, m, NewVersionMsg{Version: 2})
	assert.NotNil(t, cmd)
	assert.False(t, m.Loading)
	assert.Equal(t, 1, nav.loads)
}

func TestLoadBusy_ClearsLoading(t *testing.T) {
	nav := &fakeNav{needsReload: true}
	m := newLoadedModel(t, nav, nil)
	m.opts.Versions = make(chan int, 1)

	m, _ = update(t, m, NewVersionMsg{Version: 2})
	require.True(t, m.Loading)

	nav.loadErr = navigator.ErrTransitionInProgress
	msg := LoadDeckCmd(nav)()
	assert.Equal(t, LoadBusyMsg{}, msg)

	m, _ = update(t, m, msg)
	assert.False(t, m.Loading)
	assert.Equal(t, "Busy, try again", m.StatusMsg)
	assert.False(t, m.StatusIsErr)
}

func TestChat_StreamsReply(t *testing.T) {
	nav := &fakeNav{}
	chat := &fakeChat{chunks: []string{"It ", "blocks."}}
	m := newLoadedModel(t, nav, chat)

	m, _ = update(t, m, runes("c"))
	require.Equal(t, ModeChat, m.Mode)

	for _, r := range "why" {
		m, _ = update(t, m, runes(string(r)))
	}
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.Chat.Busy())

	msg := AskCmd(chat, testItems[0], "why", true)()
	chunk, ok := msg.(ChatChunkMsg)
	require.True(t, ok)
	assert.Equal(t, "It ", chunk.Content)
	m, next := update(t, m, chunk)
	require.NotNil(t, next)

	chunk, ok = next().(ChatChunkMsg)
	require.True(t, ok)
	assert.Equal(t, "It blocks.", chunk.Content)

	done, ok := chunk.NextCmd().(ChatDoneMsg)
	require.True(t, ok)
	assert.Equal(t, 5, done.Index)
	assert.NoError(t, done.Err)

	m, _ = update(t, m, done)
	assert.False(t, m.Chat.Busy())
	assert.Contains(t, m.View(), "It blocks.")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ModeCards, m.Mode)
}

func TestChat_UnstreamedReplyArrivesWhole(t *testing.T) {
	chat := &fakeChat{chunks: []string{"It ", "blocks."}}

	done, ok := AskCmd(chat, testItems[0], "why", false)().(ChatDoneMsg)
	require.True(t, ok)
	assert.NoError(t, done.Err)
	assert.Equal(t, "It blocks.", done.Message.Content)
}

func TestLiked_OpensAndCloses(t *testing.T) {
	nav := &fakeNav{}
	m := newLoadedModel(t, nav, nil)

	m, cmd := update(t, m, runes("f"))
	require.Equal(t, ModeLiked, m.Mode)
	require.NotNil(t, cmd)

	m, _ = update(t, m, LoadLikedCmd(fakeLikes{items: testItems[:2]})())
	assert.Len(t, m.Liked.Rows(), 2)
	assert.Contains(t, m.View(), "Liked cards (2)")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ModeCards, m.Mode)
}

func TestHelp_Toggles(t *testing.T) {
	m := newLoadedModel(t, &fakeNav{}, nil)

	m, _ = update(t, m, runes("?"))
	assert.Equal(t, ModeHelp, m.Mode)
	assert.Contains(t, m.View(), "Keys")

	m, _ = update(t, m, runes("?"))
	assert.Equal(t, ModeCards, m.Mode)
}

func TestVersionObserver_DropsWhenFull(t *testing.T) {
	o := NewVersionObserver()
	o.OnNewer(2)
	o.OnNewer(3)

	msg := ListenVersionCmd(o.Versions())()
	assert.Equal(t, NewVersionMsg{Version: 2}, msg)
	assert.Nil(t, ListenVersionCmd(nil))
}
