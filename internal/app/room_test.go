package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizboard-client/internal/app"
	"quizboard-client/internal/domain"
	"quizboard-client/internal/infra/memory"
)

type fakeChannel struct {
	mu       sync.Mutex
	emits    map[string]int
	handlers map[string][]func([]byte)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		emits:    make(map[string]int),
		handlers: make(map[string][]func([]byte)),
	}
}

func (c *fakeChannel) On(event string, fn func([]byte)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], fn)
	return func() {}
}

func (c *fakeChannel) Emit(event string, _ any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emits[event]++
	return nil
}

func (c *fakeChannel) emitted(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emits[event]
}

func (c *fakeChannel) handlerCount(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers[event])
}

func (c *fakeChannel) fire(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	c.mu.Lock()
	handlers := append([]func([]byte){}, c.handlers[event]...)
	c.mu.Unlock()
	for _, fn := range handlers {
		fn(data)
	}
}

type fakeAPI struct {
	mu          sync.Mutex
	snap        domain.Snapshot
	result      domain.AnswerResult
	fetches     int
	invalidated int
}

func (a *fakeAPI) FetchQuiz(context.Context, string) (domain.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetches++
	return a.snap, nil
}

func (a *fakeAPI) Invalidate(string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.invalidated++
}

func (a *fakeAPI) setStatus(status domain.QuizStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snap.Status = status
}

func (a *fakeAPI) fetched() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetches
}

func (a *fakeAPI) invalidations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.invalidated
}

func (a *fakeAPI) StartQuiz(context.Context, string, string) ([]domain.Question, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap.Questions, nil
}

func (a *fakeAPI) SubmitAnswer(context.Context, string, string, int, string) (domain.AnswerResult, error) {
	return a.result, nil
}

func (a *fakeAPI) EndQuiz(context.Context, string, string) (map[string]int, error) {
	return map[string]int{}, nil
}

func (a *fakeAPI) Leaderboard(context.Context, string) (domain.Leaderboard, error) {
	return domain.Leaderboard{}, nil
}

// stateWatcher captures rendered states so tests never race the room loop.
type stateWatcher struct {
	mu   sync.Mutex
	last app.RoomState
}

func (w *stateWatcher) render(s app.RoomState) {
	w.mu.Lock()
	w.last = s
	w.mu.Unlock()
}

func (w *stateWatcher) state() app.RoomState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func newTestRoom(t *testing.T, snap domain.Snapshot, result domain.AnswerResult) (*app.Room, *fakeChannel, *fakeAPI, *stateWatcher) {
	t.Helper()
	channel := newFakeChannel()
	api := &fakeAPI{snap: snap, result: result}
	watcher := &stateWatcher{}
	room := app.NewRoom(guest, "ABCD", app.RoomConfig{
		API:          api,
		Channel:      channel,
		Sessions:     memory.NewSessionStore(),
		Log:          zerolog.Nop(),
		Render:       watcher.render,
		DisplayDelay: 40 * time.Millisecond,
		TickInterval: time.Hour, // keep countdown out of these tests
	})
	return room, channel, api, watcher
}

func TestRoomJoinLeavePairing(t *testing.T) {
	room, channel, _, watcher := newTestRoom(t, lobbySnapshot(), domain.AnswerResult{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go room.Run(ctx)

	require.Eventually(t, func() bool {
		return watcher.state().Phase == app.PhaseLobby
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, channel.emitted(app.EventJoinRoom))

	// A double unmount must leave exactly once and must not re-join.
	room.Close()
	room.Close()
	<-room.Done()

	assert.Equal(t, 1, channel.emitted(app.EventLeaveRoom))
	assert.Equal(t, 1, channel.emitted(app.EventJoinRoom))
}

func TestRoomRejoinsAfterReconnect(t *testing.T) {
	room, channel, _, watcher := newTestRoom(t, lobbySnapshot(), domain.AnswerResult{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go room.Run(ctx)
	defer room.Close()

	require.Eventually(t, func() bool {
		return watcher.state().Phase == app.PhaseLobby
	}, time.Second, 5*time.Millisecond)

	channel.fire(t, app.EventReconnected, struct{}{})
	require.Eventually(t, func() bool {
		return channel.emitted(app.EventJoinRoom) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestRoomEndEventCancelsScheduledAdvance(t *testing.T) {
	snap := lobbySnapshot()
	snap.Status = domain.StatusActive
	result := domain.AnswerResult{Correct: true, CurrentScore: 1}
	room, channel, _, watcher := newTestRoom(t, snap, result)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go room.Run(ctx)
	defer room.Close()

	require.Eventually(t, func() bool {
		return watcher.state().Phase == app.PhaseActive
	}, time.Second, 5*time.Millisecond)

	room.Select([]string{"Paris"})
	room.Submit()
	require.Eventually(t, func() bool {
		return watcher.state().Submitted
	}, time.Second, 5*time.Millisecond)

	// End the room before the 40ms advance timer fires.
	channel.fire(t, app.EventQuizEnded, app.EndedPayload{Redirect: true})
	require.Eventually(t, func() bool {
		return watcher.state().Phase == app.PhaseEnded
	}, time.Second, 5*time.Millisecond)

	// Give the stale advance a chance to fire; it must be dropped.
	time.Sleep(80 * time.Millisecond)
	state := watcher.state()
	assert.Equal(t, app.PhaseEnded, state.Phase)
	assert.Equal(t, 0, state.QuestionIndex)
}

func TestRoomStartFlowBroadcasts(t *testing.T) {
	snap := lobbySnapshot(
		domain.Player{UserID: owner.UserID, Username: owner.Username},
		domain.Player{UserID: guest.UserID, Username: guest.Username},
	)
	channel := newFakeChannel()
	watcher := &stateWatcher{}
	room := app.NewRoom(owner, "ABCD", app.RoomConfig{
		API:          &fakeAPI{snap: snap},
		Channel:      channel,
		Sessions:     memory.NewSessionStore(),
		Log:          zerolog.Nop(),
		Render:       watcher.render,
		TickInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go room.Run(ctx)
	defer room.Close()

	require.Eventually(t, func() bool {
		return watcher.state().Phase == app.PhaseLobby
	}, time.Second, 5*time.Millisecond)

	room.Start()
	require.Eventually(t, func() bool {
		return watcher.state().Phase == app.PhaseActive
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, channel.emitted(app.EventStartQuiz))
}

func TestRoomSubscribesOnConstruction(t *testing.T) {
	room, channel, _, _ := newTestRoom(t, lobbySnapshot(), domain.AnswerResult{})

	// Handlers must be in place before Run spawns anything, so an immediate
	// quit from the input goroutine cannot race the cancel registration.
	assert.Equal(t, 1, channel.handlerCount(app.EventQuizEnded))
	assert.Equal(t, 1, channel.handlerCount(app.EventPlayerList))

	room.Close()
	<-room.Done()
	assert.Equal(t, 1, channel.emitted(app.EventLeaveRoom))
}

func TestRoomReconnectReconcilesMissedStart(t *testing.T) {
	room, channel, api, watcher := newTestRoom(t, lobbySnapshot(), domain.AnswerResult{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go room.Run(ctx)
	defer room.Close()

	require.Eventually(t, func() bool {
		return watcher.state().Phase == app.PhaseLobby
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, api.fetched())

	// The quiz-started broadcast was missed during the outage; the refreshed
	// snapshot carries the new status.
	api.setStatus(domain.StatusActive)
	channel.fire(t, app.EventReconnected, struct{}{})

	require.Eventually(t, func() bool {
		return watcher.state().Phase == app.PhaseActive
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, api.fetched())
}

func TestRoomInvalidatesSnapshotOnStatusChange(t *testing.T) {
	room, channel, api, watcher := newTestRoom(t, lobbySnapshot(), domain.AnswerResult{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go room.Run(ctx)
	defer room.Close()

	require.Eventually(t, func() bool {
		return watcher.state().Phase == app.PhaseLobby
	}, time.Second, 5*time.Millisecond)

	channel.fire(t, app.EventQuizStarted, app.StartedPayload{Questions: sampleQuestions()})
	require.Eventually(t, func() bool {
		return api.invalidations() == 1
	}, time.Second, 5*time.Millisecond)

	channel.fire(t, app.EventQuizEnded, app.EndedPayload{Redirect: true})
	require.Eventually(t, func() bool {
		return api.invalidations() == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, app.PhaseEnded, watcher.state().Phase)
}
