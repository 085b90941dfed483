package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quizboard-client/internal/domain"
)

const displayDelay = 2 * time.Second

// RoomConfig wires a Room to its collaborators and presentation hooks.
type RoomConfig struct {
	API      QuizAPI
	Channel  EventChannel
	Sessions SessionStore
	Log      zerolog.Logger

	// Render is called after every state transition with a copy of the state.
	Render func(RoomState)
	// Notify surfaces transient user-visible messages.
	Notify func(string)

	// DisplayDelay overrides the 2s post-answer pause (tests shorten it).
	DisplayDelay time.Duration
	// TickInterval overrides the 1s countdown tick (tests shorten it).
	TickInterval time.Duration
}

// Room drives a Machine with run-to-completion semantics: every remote-call
// result, channel event, timer fire and user command is funneled through one
// inbox drained by a single goroutine, so no two handlers ever interleave.
type Room struct {
	machine  *Machine
	identity domain.Identity
	code     string
	cfg      RoomConfig
	log      zerolog.Logger

	ctx       context.Context
	inbox     chan func()
	done      chan struct{}
	closeOnce sync.Once
	cancels   []func()
}

func NewRoom(identity domain.Identity, code string, cfg RoomConfig) *Room {
	if cfg.DisplayDelay <= 0 {
		cfg.DisplayDelay = displayDelay
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	r := &Room{
		machine:  NewMachine(identity, code),
		identity: identity,
		code:     code,
		cfg:      cfg,
		log:      cfg.Log.With().Str("room", code).Logger(),
		ctx:      context.Background(),
		inbox:    make(chan func(), 64),
		done:     make(chan struct{}),
	}
	// Subscriptions are registered before any goroutine can see the room, so
	// cancels is immutable by the time Close iterates it.
	r.subscribe()
	return r
}

// Run subscribes to the room's events, emits the join intent, fetches the
// snapshot and then processes the inbox until the context is canceled or
// Close is called. Cleanup runs on every exit path.
func (r *Room) Run(ctx context.Context) {
	r.ctx = ctx
	defer r.Close()

	if err := r.cfg.Channel.Emit(EventJoinRoom, r.intent()); err != nil {
		r.log.Warn().Err(err).Msg("join intent failed")
	}

	go func() {
		snap, err := r.cfg.API.FetchQuiz(ctx, r.code)
		r.post(func() []Effect { return r.machine.HandleSnapshot(snap, err) })
	}()
	r.render()

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case fn := <-r.inbox:
			fn()
		case <-ticker.C:
			r.apply(r.machine.Tick())
			r.render()
		}
	}
}

// Close relinquishes channel membership: cancels every subscription and
// emits the leave intent exactly once. Safe to call repeatedly and from any
// goroutine; a double unmount must not re-join nor leave twice.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		for _, cancel := range r.cancels {
			cancel()
		}
		if err := r.cfg.Channel.Emit(EventLeaveRoom, r.intent()); err != nil {
			r.log.Debug().Err(err).Msg("leave intent failed")
		}
		close(r.done)
	})
}

// Done closes when the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.done }

// State reads the current state. Only safe for use from Render/Notify hooks
// and tests, which already execute on (or synchronize with) the room loop.
func (r *Room) State() RoomState { return r.machine.State() }

// Start asks to begin the quiz. Owner and roster-size checks run locally
// before any remote call.
func (r *Room) Start() {
	r.post(func() []Effect {
		effects, err := r.machine.RequestStart()
		if err != nil {
			r.notify(err.Error())
		}
		return effects
	})
}

// Select records the player's answer choice for the current question.
func (r *Room) Select(selection []string) {
	r.post(func() []Effect {
		if err := r.machine.Select(selection); err != nil {
			r.notify(err.Error())
		}
		return nil
	})
}

// Submit sends the pending selection, if valid, to the backend.
func (r *Room) Submit() {
	r.post(func() []Effect {
		effects, err := r.machine.RequestSubmit()
		if err != nil {
			r.notify(err.Error())
		}
		return effects
	})
}

// End asks to finish the quiz. Owner check runs locally first.
func (r *Room) End() {
	r.post(func() []Effect {
		effects, err := r.machine.RequestEnd()
		if err != nil {
			r.notify(err.Error())
		}
		return effects
	})
}

func (r *Room) subscribe() {
	r.on(EventPlayerJoined, func(payload []byte) []Effect {
		var p domain.Player
		if err := json.Unmarshal(payload, &p); err != nil {
			r.log.Warn().Err(err).Msg("bad player-joined payload")
			return nil
		}
		return r.machine.HandlePlayerJoined(p)
	})
	r.on(EventPlayerList, func(payload []byte) []Effect {
		var players []domain.Player
		if err := json.Unmarshal(payload, &players); err != nil {
			r.log.Warn().Err(err).Msg("bad player-list payload")
			return nil
		}
		return r.machine.HandleRoster(players)
	})
	r.on(EventQuizStarted, func(payload []byte) []Effect {
		var started StartedPayload
		if err := json.Unmarshal(payload, &started); err != nil {
			r.log.Warn().Err(err).Msg("bad quiz-started payload")
			return nil
		}
		r.invalidateSnapshot()
		return r.machine.HandleQuizStarted(started.Questions)
	})
	r.on(EventQuizEnded, func(payload []byte) []Effect {
		var ended EndedPayload
		if err := json.Unmarshal(payload, &ended); err != nil {
			r.log.Warn().Err(err).Msg("bad quiz-ended payload")
			return nil
		}
		r.invalidateSnapshot()
		return r.machine.HandleQuizEnded(ended.Redirect)
	})
	r.on(EventQuizError, func(payload []byte) []Effect {
		var perr ErrorPayload
		if err := json.Unmarshal(payload, &perr); err != nil {
			return nil
		}
		return r.machine.HandleChannelError(perr.Message)
	})
	r.on(EventReconnected, func([]byte) []Effect {
		// The backend dropped us from the room with the old connection;
		// pair the redial with a fresh join intent, then reconcile any start
		// or end broadcast missed while offline.
		if err := r.cfg.Channel.Emit(EventJoinRoom, r.intent()); err != nil {
			r.log.Warn().Err(err).Msg("rejoin intent failed")
		}
		go func() {
			snap, err := r.cfg.API.FetchQuiz(r.ctx, r.code)
			r.post(func() []Effect { return r.machine.HandleRefresh(snap, err) })
		}()
		return nil
	})
}

func (r *Room) invalidateSnapshot() {
	if inv, ok := r.cfg.API.(SnapshotInvalidator); ok {
		inv.Invalidate(r.code)
	}
}

func (r *Room) on(event string, handle func(payload []byte) []Effect) {
	cancel := r.cfg.Channel.On(event, func(payload []byte) {
		r.post(func() []Effect { return handle(payload) })
	})
	r.cancels = append(r.cancels, cancel)
}

// post queues a transition onto the room loop; the loop applies its effects
// and re-renders. Posts after shutdown are dropped.
func (r *Room) post(fn func() []Effect) {
	select {
	case r.inbox <- func() {
		r.apply(fn())
		r.render()
	}:
	case <-r.done:
	}
}

func (r *Room) apply(effects []Effect) {
	for _, e := range effects {
		switch e.Kind {
		case EffectNotify:
			r.notify(e.Info)

		case EffectCallStart:
			creatorName := r.machine.State().CreatorName
			go func() {
				questions, err := r.cfg.API.StartQuiz(r.ctx, r.code, creatorName)
				r.post(func() []Effect { return r.machine.HandleStartResult(questions, err) })
			}()

		case EffectCallSubmit:
			index, answer := e.Index, e.Answer
			go func() {
				res, err := r.cfg.API.SubmitAnswer(r.ctx, r.code, r.identity.UserID, index, answer)
				r.post(func() []Effect { return r.machine.HandleSubmitResult(index, res, err) })
			}()

		case EffectCallEnd:
			createdBy := r.machine.State().CreatedBy
			go func() {
				scores, err := r.cfg.API.EndQuiz(r.ctx, r.code, createdBy)
				r.post(func() []Effect { return r.machine.HandleEndResult(scores, err) })
			}()

		case EffectScheduleAdvance:
			to := e.ToIndex
			time.AfterFunc(r.cfg.DisplayDelay, func() {
				r.post(func() []Effect { return r.machine.HandleAdvance(to) })
			})

		case EffectEmitStart:
			r.invalidateSnapshot()
			if err := r.cfg.Channel.Emit(EventStartQuiz, StartBroadcast{Code: r.code}); err != nil {
				r.log.Warn().Err(err).Msg("start broadcast failed")
			}

		case EffectEmitEnd:
			r.invalidateSnapshot()
			broadcast := EndBroadcast{
				Code:        r.code,
				CreatedBy:   r.machine.State().CreatedBy,
				FinalScores: e.FinalScores,
			}
			if err := r.cfg.Channel.Emit(EventEndQuiz, broadcast); err != nil {
				r.log.Warn().Err(err).Msg("end broadcast failed")
			}

		case EffectEmitCompleted:
			noticeScore := e.Score
			notice := CompletedNotice{
				Code:       r.code,
				UserID:     r.identity.UserID,
				Username:   r.identity.Username,
				FinalScore: noticeScore,
			}
			if err := r.cfg.Channel.Emit(EventPlayerCompleted, notice); err != nil {
				r.log.Warn().Err(err).Msg("completed notice failed")
			}

		case EffectPersistScore:
			if err := r.cfg.Sessions.SaveFinalScore(r.ctx, r.code, e.Score); err != nil {
				r.log.Warn().Err(err).Msg("persist final score failed")
			}
		}
	}
}

func (r *Room) render() {
	if r.cfg.Render != nil {
		r.cfg.Render(r.machine.State())
	}
}

func (r *Room) notify(msg string) {
	if r.cfg.Notify != nil {
		r.cfg.Notify(msg)
	}
}

func (r *Room) intent() RoomIntent {
	return RoomIntent{
		Code:     r.code,
		UserID:   r.identity.UserID,
		Username: r.identity.Username,
	}
}
