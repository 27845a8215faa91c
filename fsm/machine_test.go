package fsm_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/botfsm/fsm"
)

// recordingGateway captures every SendMessage call for assertions.
type recordingGateway struct {
	mu    sync.Mutex
	sent  []sentMessage
}

type sentMessage struct {
	ChatID   fsm.ChatID
	Text     string
	Keyboard fsm.Keyboard
}

func (g *recordingGateway) SendMessage(chatID fsm.ChatID, text string, keyboard fsm.Keyboard, parseMode string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentMessage{ChatID: chatID, Text: text, Keyboard: keyboard})
	return nil
}

func (g *recordingGateway) messages() []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]sentMessage, len(g.sent))
	copy(out, g.sent)
	return out
}

type nopLoader struct{}

func (nopLoader) GetText(code string) (string, error) { return code, nil }

// memStorage is a minimal, test-local StorageBackend with call counters,
// independent of the storage/memory package so fsm's tests don't import a
// sibling package's internals.
type memStorage struct {
	mu       sync.Mutex
	states   map[fsm.ChatID]fsm.StateCode
	contexts map[fsm.ChatID]*fsm.Context

	setStateCalls   int
	setContextCalls int
}

func newMemStorage() *memStorage {
	return &memStorage{
		states:   make(map[fsm.ChatID]fsm.StateCode),
		contexts: make(map[fsm.ChatID]*fsm.Context),
	}
}

func (m *memStorage) GetState(_ context.Context, chatID fsm.ChatID) (fsm.StateCode, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.states[chatID]
	return code, ok, nil
}

func (m *memStorage) SetState(_ context.Context, chatID fsm.ChatID, code fsm.StateCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[chatID] = code
	m.setStateCalls++
	return nil
}

func (m *memStorage) GetContext(_ context.Context, chatID fsm.ChatID) (*fsm.Context, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contexts[chatID]
	if !ok {
		return nil, false, nil
	}
	clone, err := c.Clone()
	return clone, true, err
}

func (m *memStorage) SetContext(_ context.Context, chatID fsm.ChatID, vars *fsm.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone, err := vars.Clone()
	if err != nil {
		return err
	}
	m.contexts[chatID] = clone
	m.setContextCalls++
	return nil
}

// Scenario 1: fresh chat enters the default state.
func TestHandleAction_FreshChatEntersDefault(t *testing.T) {
	storage := newMemStorage()
	gw := &recordingGateway{}

	entered := 0
	defaultState := &fsm.State{
		Code: "welcome",
		OnEnter: func(ctx context.Context, hc *fsm.HookContext) error {
			entered++
			return hc.Gateway.SendMessage(hc.ChatID, "hi", fsm.NoKeyboard, "html")
		},
	}
	registry := fsm.NewRegistry([]*fsm.State{defaultState}, "welcome")
	machine := fsm.NewStateMachine(registry, storage, gw, nopLoader{})

	err := machine.HandleAction(context.Background(), fsm.MessageAction{Chat: 42, Text: "/start"})
	require.NoError(t, err)

	assert.Equal(t, 1, entered)
	code, ok, _ := storage.GetState(context.Background(), 42)
	require.True(t, ok)
	assert.Equal(t, fsm.StateCode("welcome"), code)

	msgs := gw.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, fsm.ChatID(42), msgs[0].ChatID)
}

// Scenario 2 & 3: a MainMenu-like state with a choice switcher.
func buildMenuRegistry(t *testing.T, gw *recordingGateway) (*fsm.Registry, *int, *int) {
	t.Helper()
	menuHandlerCalls := 0
	menuExitCalls := 0
	profileEnterCalls := 0

	profile := &fsm.State{
		Code: "ProfileState",
		OnEnter: func(ctx context.Context, hc *fsm.HookContext) error {
			profileEnterCalls++
			return nil
		},
	}

	menu := &fsm.State{
		Code: "MainMenu",
		MessageHandler: func(ctx context.Context, hc *fsm.HookContext, msg fsm.MessageAction) error {
			menuHandlerCalls++
			if msg.Text != "Profile" && msg.Text != "Help" {
				return hc.Gateway.SendMessage(hc.ChatID, "invalid input", fsm.NoKeyboard, "html")
			}
			return nil
		},
		OnExit: func(ctx context.Context, hc *fsm.HookContext) error {
			menuExitCalls++
			return nil
		},
		AfterActionSwitcher: func(ctx context.Context, hc *fsm.HookContext, action fsm.Action) fsm.SwitchResult {
			msg, ok := action.(fsm.MessageAction)
			if !ok {
				return fsm.NoSwitch
			}
			switch msg.Text {
			case "Profile":
				return fsm.SwitchTo("ProfileState")
			case "Help":
				return fsm.SwitchTo("HelpState")
			default:
				return fsm.NoSwitch
			}
		},
	}

	help := &fsm.State{Code: "HelpState"}

	registry := fsm.NewRegistry([]*fsm.State{menu, profile, help}, "MainMenu")
	return registry, &menuHandlerCalls, &profileEnterCalls
}

func TestHandleAction_ChoiceAcceptedTransitionsState(t *testing.T) {
	storage := newMemStorage()
	require.NoError(t, storage.SetState(context.Background(), 7, "MainMenu"))

	gw := &recordingGateway{}
	registry, _, profileEnterCalls := buildMenuRegistry(t, gw)
	machine := fsm.NewStateMachine(registry, storage, gw, nopLoader{})

	err := machine.HandleAction(context.Background(), fsm.MessageAction{Chat: 7, Text: "Profile"})
	require.NoError(t, err)

	assert.Equal(t, 1, *profileEnterCalls)
	code, ok, _ := storage.GetState(context.Background(), 7)
	require.True(t, ok)
	assert.Equal(t, fsm.StateCode("ProfileState"), code)
	assert.Equal(t, 1, storage.setContextCalls)
}

func TestHandleAction_InvalidChoiceStaysPut(t *testing.T) {
	storage := newMemStorage()
	require.NoError(t, storage.SetState(context.Background(), 7, "MainMenu"))

	gw := &recordingGateway{}
	registry, menuHandlerCalls, _ := buildMenuRegistry(t, gw)
	machine := fsm.NewStateMachine(registry, storage, gw, nopLoader{})

	setStateBefore := storage.setStateCalls
	err := machine.HandleAction(context.Background(), fsm.MessageAction{Chat: 7, Text: "xyz"})
	require.NoError(t, err)

	assert.Equal(t, 1, *menuHandlerCalls)
	assert.Equal(t, setStateBefore, storage.setStateCalls, "set_state must not be called for a rejected choice")
	assert.Equal(t, 1, storage.setContextCalls)

	msgs := gw.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "invalid input", msgs[0].Text)

	code, ok, _ := storage.GetState(context.Background(), 7)
	require.True(t, ok)
	assert.Equal(t, fsm.StateCode("MainMenu"), code, "chat remains in MainMenu")
}

// Scenario 4: chained enter, A -> B, B has no further switch.
func TestHandleAction_ChainedEnter(t *testing.T) {
	storage := newMemStorage()

	var aEnter, aExit, bEnter, bExit int

	b := &fsm.State{
		Code: "B",
		OnEnter: func(ctx context.Context, hc *fsm.HookContext) error {
			bEnter++
			return nil
		},
		OnExit: func(ctx context.Context, hc *fsm.HookContext) error {
			bExit++
			return nil
		},
	}
	a := &fsm.State{
		Code: "A",
		OnEnter: func(ctx context.Context, hc *fsm.HookContext) error {
			aEnter++
			return nil
		},
		OnExit: func(ctx context.Context, hc *fsm.HookContext) error {
			aExit++
			return nil
		},
		AfterEnterSwitcher: func(ctx context.Context, hc *fsm.HookContext) fsm.SwitchResult {
			return fsm.SwitchTo("B")
		},
	}

	registry := fsm.NewRegistry([]*fsm.State{a, b}, "A")
	gw := &recordingGateway{}
	machine := fsm.NewStateMachine(registry, storage, gw, nopLoader{})

	// Fresh chat: enters A, whose after_enter_switcher chains straight to B.
	err := machine.HandleAction(context.Background(), fsm.MessageAction{Chat: 1, Text: "hi"})
	require.NoError(t, err)

	assert.Equal(t, 1, aEnter)
	assert.Equal(t, 1, bEnter)
	assert.Equal(t, 1, aExit, "A is exited when the chain hops from A to B")
	assert.Equal(t, 0, bExit, "B is the chain's resting state, never exited")

	code, ok, _ := storage.GetState(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, fsm.StateCode("B"), code)
}

// Scenario 5: ClearContextOnExit drops scratch keys, keeps the rest.
func TestHandleAction_ClearContextOnExit(t *testing.T) {
	storage := newMemStorage()
	vars := fsm.NewContext()
	vars.Set("draft", "x")
	vars.Set("step", float64(2))
	vars.Set("lang", "en")
	require.NoError(t, storage.SetContext(context.Background(), 1, vars))
	require.NoError(t, storage.SetState(context.Background(), 1, "Wizard"))

	wizard := &fsm.State{
		Code: "Wizard",
		OnExit: func(ctx context.Context, hc *fsm.HookContext) error {
			hc.Vars.DeleteKeys("draft", "step")
			return nil
		},
		AfterActionSwitcher: func(ctx context.Context, hc *fsm.HookContext, action fsm.Action) fsm.SwitchResult {
			return fsm.SwitchTo("Done")
		},
	}
	done := &fsm.State{Code: "Done"}

	registry := fsm.NewRegistry([]*fsm.State{wizard, done}, "Wizard")
	gw := &recordingGateway{}
	machine := fsm.NewStateMachine(registry, storage, gw, nopLoader{})

	err := machine.HandleAction(context.Background(), fsm.MessageAction{Chat: 1, Text: "next"})
	require.NoError(t, err)

	got, ok, err := storage.GetContext(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)

	_, hasDraft := got.Get("draft")
	_, hasStep := got.Get("step")
	lang, hasLang := got.Get("lang")
	assert.False(t, hasDraft)
	assert.False(t, hasStep)
	require.True(t, hasLang)
	assert.Equal(t, "en", lang)
}

// Scenario 6: concurrent chats make independent progress.
func TestHandleAction_ConcurrentChatsIndependent(t *testing.T) {
	storage := newMemStorage()
	state := &fsm.State{Code: "welcome"}
	registry := fsm.NewRegistry([]*fsm.State{state}, "welcome")
	gw := &recordingGateway{}
	machine := fsm.NewStateMachine(registry, storage, gw, nopLoader{})

	var wg sync.WaitGroup
	for _, chatID := range []fsm.ChatID{1, 2} {
		chatID := chatID
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := machine.HandleAction(context.Background(), fsm.MessageAction{Chat: chatID, Text: "hi"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, chatID := range []fsm.ChatID{1, 2} {
		code, ok, _ := storage.GetState(context.Background(), chatID)
		require.True(t, ok)
		assert.Equal(t, fsm.StateCode("welcome"), code)
	}
}

// Invariant 5: a cyclic after_enter_switcher chain is bounded and surfaces
// TransitionCycleError rather than looping forever.
func TestHandleAction_TransitionCycleExceedsMaxDepth(t *testing.T) {
	storage := newMemStorage()

	ping := &fsm.State{
		Code: "ping",
		AfterEnterSwitcher: func(ctx context.Context, hc *fsm.HookContext) fsm.SwitchResult {
			return fsm.SwitchTo("pong")
		},
	}
	pong := &fsm.State{
		Code: "pong",
		AfterEnterSwitcher: func(ctx context.Context, hc *fsm.HookContext) fsm.SwitchResult {
			return fsm.SwitchTo("ping")
		},
	}
	registry := fsm.NewRegistry([]*fsm.State{ping, pong}, "ping")
	gw := &recordingGateway{}
	machine := fsm.NewStateMachine(registry, storage, gw, nopLoader{}, fsm.WithMaxChainDepth(4))

	err := machine.HandleAction(context.Background(), fsm.MessageAction{Chat: 1, Text: "hi"})
	require.Error(t, err)
	var cycleErr *fsm.TransitionCycleError
	require.ErrorAs(t, err, &cycleErr)
}

// HandlerError containment: a panicking on_enter aborts the chain at the
// last committed state instead of propagating.
func TestHandleAction_PanicInHookIsContained(t *testing.T) {
	storage := newMemStorage()

	boom := &fsm.State{
		Code: "boom",
		OnEnter: func(ctx context.Context, hc *fsm.HookContext) error {
			panic("kaboom")
		},
	}
	registry := fsm.NewRegistry([]*fsm.State{boom}, "boom")
	gw := &recordingGateway{}
	machine := fsm.NewStateMachine(registry, storage, gw, nopLoader{})

	err := machine.HandleAction(context.Background(), fsm.MessageAction{Chat: 1, Text: "hi"})
	require.NoError(t, err, "a panicking hook is contained, not propagated to the caller")

	_, ok, _ := storage.GetState(context.Background(), 1)
	assert.False(t, ok, "state is never persisted for a state whose on_enter panicked")
}
