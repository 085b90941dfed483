package app

import (
	"sort"
	"strings"

	"quizboard-client/internal/domain"
)

// Phase is the single tagged state of the quiz-room view. Exactly one phase
// is in effect at any instant; there are no independent boolean flags to
// contradict each other.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseLobby   Phase = "lobby"
	PhaseActive  Phase = "active"
	PhaseEnded   Phase = "ended"
	PhaseError   Phase = "error"
)

// defaultTimeLimit applies when a question carries no timeLimit.
const defaultTimeLimit = 30

// RoomState is everything presentation needs to render the room. It is a
// value; Machine hands out copies so callers cannot mutate live state.
type RoomState struct {
	Phase Phase
	Err   error // set while Phase == PhaseError

	Code        string
	Title       string
	CreatedBy   string
	CreatorName string

	Roster []domain.Player

	Questions     []domain.Question
	QuestionIndex int
	TimeLeft      int
	Expired       bool // timer hit zero; input is frozen, nothing auto-submits
	Selection     []string
	Submitted     bool
	Score         int
	LastResult    *domain.AnswerResult
}

// Question returns the current question while one is in play.
func (s RoomState) Question() (domain.Question, bool) {
	if s.Phase != PhaseActive || s.QuestionIndex >= len(s.Questions) {
		return domain.Question{}, false
	}
	return s.Questions[s.QuestionIndex], true
}

// FinalQuestion reports whether the current question is the last one.
func (s RoomState) FinalQuestion() bool {
	return len(s.Questions) > 0 && s.QuestionIndex == len(s.Questions)-1
}

// EffectKind names a side effect requested by a transition. The machine never
// performs I/O itself; the room runner executes effects and feeds results
// back in, which keeps every transition synchronous and testable.
type EffectKind string

const (
	EffectCallStart       EffectKind = "call-start"
	EffectCallSubmit      EffectKind = "call-submit"
	EffectCallEnd         EffectKind = "call-end"
	EffectEmitStart       EffectKind = "emit-start"
	EffectEmitEnd         EffectKind = "emit-end"
	EffectEmitCompleted   EffectKind = "emit-completed"
	EffectScheduleAdvance EffectKind = "schedule-advance"
	EffectPersistScore    EffectKind = "persist-score"
	EffectNotify          EffectKind = "notify"
)

// Effect is a requested side effect with its parameters.
type Effect struct {
	Kind        EffectKind
	Index       int    // EffectCallSubmit: question index the answer is for
	Answer      string // EffectCallSubmit: canonical encoded answer
	ToIndex     int    // EffectScheduleAdvance: target question index
	Score       int    // EffectPersistScore / EffectEmitCompleted
	FinalScores map[string]int
	Info        string // EffectNotify
}

func notify(msg string) Effect { return Effect{Kind: EffectNotify, Info: msg} }

// Machine reconciles the fetched snapshot, live channel events, timer fires
// and user actions into one consistent RoomState. All methods must be called
// from a single goroutine; the room runner guarantees run-to-completion.
type Machine struct {
	identity domain.Identity
	state    RoomState

	submitting bool // a submit call is in flight for the current question
	answered   bool // at least one submit response has been applied
}

func NewMachine(identity domain.Identity, code string) *Machine {
	return &Machine{
		identity: identity,
		state: RoomState{
			Phase: PhaseLoading,
			Code:  code,
		},
	}
}

// State returns a copy of the current state.
func (m *Machine) State() RoomState {
	s := m.state
	s.Roster = append([]domain.Player(nil), m.state.Roster...)
	s.Selection = append([]string(nil), m.state.Selection...)
	return s
}

// IsOwner reports whether the local identity created this quiz.
func (m *Machine) IsOwner() bool {
	return m.state.CreatedBy != "" && m.identity.UserID == m.state.CreatedBy
}

// CanStart reports whether the start control should be enabled.
func (m *Machine) CanStart() bool {
	return m.state.Phase == PhaseLobby && m.IsOwner() && len(m.state.Roster) >= 2
}

// HandleSnapshot seeds the machine from the initial fetch. A failed fetch is
// terminal for the view until the user retries or navigates away.
func (m *Machine) HandleSnapshot(snap domain.Snapshot, err error) []Effect {
	if m.state.Phase != PhaseLoading {
		return nil
	}
	if err != nil {
		m.state.Phase = PhaseError
		m.state.Err = err
		return nil
	}

	m.state.Title = snap.Title
	m.state.CreatedBy = snap.CreatedBy
	m.state.CreatorName = snap.CreatorName
	m.state.Roster = dedupePlayers(snap.Participants)

	if snap.Status == domain.StatusActive {
		// Joined mid-quiz: skip the lobby and restart the question loop at
		// the top of the fetched list.
		m.enterActive(snap.Questions)
		return nil
	}
	m.state.Phase = PhaseLobby
	return nil
}

// HandlePlayerJoined applies an additive join notification. Replays of the
// same event are idempotent; the roster never holds duplicate user ids.
func (m *Machine) HandlePlayerJoined(p domain.Player) []Effect {
	if m.state.Phase != PhaseLobby && m.state.Phase != PhaseActive {
		return nil
	}
	for _, existing := range m.state.Roster {
		if existing.UserID == p.UserID {
			return nil
		}
	}
	m.state.Roster = append(m.state.Roster, p)
	return []Effect{notify(p.Username + " joined the quiz")}
}

// HandleRoster applies an authoritative full-roster replace.
func (m *Machine) HandleRoster(players []domain.Player) []Effect {
	if m.state.Phase == PhaseEnded || m.state.Phase == PhaseError {
		return nil
	}
	m.state.Roster = dedupePlayers(players)
	return nil
}

// HandleQuizStarted reacts to the room-wide start broadcast. A late start
// arriving while already Active is ignored rather than resynchronized; the
// question list in play stays authoritative for this client.
func (m *Machine) HandleQuizStarted(questions []domain.Question) []Effect {
	if m.state.Phase != PhaseLobby {
		return nil
	}
	m.enterActive(questions)
	return []Effect{notify("Quiz started!")}
}

// RequestStart validates the owner-only start action locally. Both checks
// short-circuit before any remote call is issued.
func (m *Machine) RequestStart() ([]Effect, error) {
	if m.state.Phase == PhaseActive {
		return nil, domain.ErrQuizActive
	}
	if m.state.Phase != PhaseLobby {
		return nil, domain.ErrQuizCompleted
	}
	if !m.IsOwner() {
		return nil, domain.ErrNotOwner
	}
	if len(m.state.Roster) < 2 {
		return nil, domain.ErrNotEnoughPlayers
	}
	return []Effect{{Kind: EffectCallStart}}, nil
}

// HandleStartResult applies the start call's outcome. On failure the machine
// stays in the lobby untouched.
func (m *Machine) HandleStartResult(questions []domain.Question, err error) []Effect {
	if m.state.Phase != PhaseLobby {
		return nil
	}
	if err != nil {
		return []Effect{notify("Failed to start quiz: " + err.Error())}
	}
	m.enterActive(questions)
	return []Effect{
		{Kind: EffectEmitStart},
		notify("Quiz started successfully!"),
	}
}

// Select records the player's current choice for the question in play.
func (m *Machine) Select(selection []string) error {
	if m.state.Phase != PhaseActive {
		return domain.ErrQuizCompleted
	}
	if m.state.Submitted {
		return domain.ErrBadAnswer
	}
	if m.state.Expired {
		return domain.ErrTimeExpired
	}
	m.state.Selection = append([]string(nil), selection...)
	return nil
}

// Tick advances the per-question countdown by one second. Reaching zero
// freezes input; it does not submit anything on the player's behalf.
func (m *Machine) Tick() []Effect {
	if m.state.Phase != PhaseActive || m.state.Submitted || m.state.Expired {
		return nil
	}
	if m.state.TimeLeft > 0 {
		m.state.TimeLeft--
	}
	if m.state.TimeLeft == 0 {
		m.state.Expired = true
		return []Effect{notify("Time is up!")}
	}
	return nil
}

// RequestSubmit validates and encodes the pending selection. Multi-select
// answers are canonicalized (sorted, comma-joined) so the backend sees the
// same token regardless of click order. While a submit call is in flight the
// request is a no-op; the answer must not reach the backend twice.
func (m *Machine) RequestSubmit() ([]Effect, error) {
	if m.state.Phase != PhaseActive {
		return nil, domain.ErrQuizCompleted
	}
	if m.state.Submitted || m.submitting {
		return nil, nil
	}
	if m.state.Expired {
		return nil, domain.ErrTimeExpired
	}
	encoded, err := encodeSelection(m.state.Selection)
	if err != nil {
		return nil, err
	}
	m.submitting = true
	return []Effect{{
		Kind:   EffectCallSubmit,
		Index:  m.state.QuestionIndex,
		Answer: encoded,
	}}, nil
}

// HandleSubmitResult applies the backend's verdict. A result for a question
// other than the one in play is stale and dropped, as is any result arriving
// after the room ended: an external end always wins over an in-flight submit.
func (m *Machine) HandleSubmitResult(index int, res domain.AnswerResult, err error) []Effect {
	if m.state.Phase != PhaseActive || index != m.state.QuestionIndex {
		return nil
	}
	m.submitting = false
	if err != nil {
		return []Effect{notify("Failed to submit answer: " + err.Error())}
	}

	m.state.Submitted = true
	m.answered = true
	m.state.Score = res.CurrentScore
	m.state.LastResult = &res

	effects := make([]Effect, 0, 4)
	if res.Correct {
		effects = append(effects, notify("Correct!"))
	} else {
		effects = append(effects, notify("Incorrect. The correct answer was: "+res.CorrectAnswer))
	}

	if m.state.FinalQuestion() {
		effects = append(effects,
			Effect{Kind: EffectPersistScore, Score: res.CurrentScore},
			Effect{Kind: EffectEmitCompleted, Score: res.CurrentScore},
			Effect{Kind: EffectScheduleAdvance, ToIndex: m.state.QuestionIndex + 1},
		)
		return effects
	}
	effects = append(effects, Effect{Kind: EffectScheduleAdvance, ToIndex: m.state.QuestionIndex + 1})
	return effects
}

// HandleAdvance fires when the post-answer display delay elapses. Stale fires
// (wrong target index, or the room already ended) are dropped, which is how
// an externally signaled end cancels a locally scheduled advance.
func (m *Machine) HandleAdvance(toIndex int) []Effect {
	if m.state.Phase != PhaseActive || toIndex != m.state.QuestionIndex+1 {
		return nil
	}
	if toIndex >= len(m.state.Questions) {
		m.state.Phase = PhaseEnded
		return nil
	}
	m.state.QuestionIndex = toIndex
	m.state.Selection = nil
	m.state.Submitted = false
	m.state.Expired = false
	m.state.LastResult = nil
	m.submitting = false
	m.state.TimeLeft = questionTime(m.state.Questions[toIndex])
	return nil
}

// HandleQuizEnded forces the terminal phase regardless of local position.
// The score is persisted only if at least one submit response was applied;
// an end landing during Loading or Lobby has no score worth keeping.
func (m *Machine) HandleQuizEnded(redirect bool) []Effect {
	if m.state.Phase == PhaseEnded || m.state.Phase == PhaseError {
		return nil
	}
	m.state.Phase = PhaseEnded
	var effects []Effect
	if m.answered {
		effects = append(effects, Effect{Kind: EffectPersistScore, Score: m.state.Score})
	}
	if redirect {
		effects = append(effects, notify("Quiz has ended! See the leaderboard for final standings."))
	}
	return effects
}

// RequestEnd validates the owner-only end action locally before any call.
func (m *Machine) RequestEnd() ([]Effect, error) {
	if !m.IsOwner() {
		return nil, domain.ErrNotOwner
	}
	if m.state.Phase == PhaseEnded {
		return nil, domain.ErrQuizCompleted
	}
	if m.state.Phase != PhaseActive && m.state.Phase != PhaseLobby {
		return nil, domain.ErrQuizNotFound
	}
	return []Effect{{Kind: EffectCallEnd}}, nil
}

// HandleEndResult applies the end call's outcome. Success both ends the local
// view and broadcasts so every room member converges.
func (m *Machine) HandleEndResult(finalScores map[string]int, err error) []Effect {
	if m.state.Phase == PhaseEnded {
		return nil
	}
	if err != nil {
		return []Effect{notify("Failed to end quiz: " + err.Error())}
	}
	m.state.Phase = PhaseEnded
	effects := []Effect{{Kind: EffectEmitEnd, FinalScores: finalScores}}
	if m.answered {
		effects = append(effects, Effect{Kind: EffectPersistScore, Score: m.state.Score})
	}
	return append(effects, notify("Quiz ended successfully"))
}

// HandleRefresh reconciles against a snapshot fetched after a reconnect. A
// start or end broadcast missed while offline is recovered from the room
// status; everything else stays with the live event stream. Fetch errors are
// ignored, the current state is still the best available.
func (m *Machine) HandleRefresh(snap domain.Snapshot, err error) []Effect {
	if err != nil {
		return nil
	}
	switch m.state.Phase {
	case PhaseLobby:
		m.state.Roster = dedupePlayers(snap.Participants)
		switch snap.Status {
		case domain.StatusActive:
			m.enterActive(snap.Questions)
			return []Effect{notify("Quiz started while you were reconnecting")}
		case domain.StatusCompleted:
			return m.HandleQuizEnded(true)
		}
	case PhaseActive:
		if snap.Status == domain.StatusCompleted {
			return m.HandleQuizEnded(true)
		}
	}
	return nil
}

// HandleChannelError surfaces a channel-level error without changing phase.
func (m *Machine) HandleChannelError(message string) []Effect {
	return []Effect{notify(message)}
}

func (m *Machine) enterActive(questions []domain.Question) {
	m.state.Phase = PhaseActive
	m.state.Questions = questions
	m.state.QuestionIndex = 0
	m.state.Selection = nil
	m.state.Submitted = false
	m.state.Expired = false
	m.state.LastResult = nil
	m.submitting = false
	if len(questions) > 0 {
		m.state.TimeLeft = questionTime(questions[0])
	} else {
		m.state.TimeLeft = defaultTimeLimit
	}
}

func questionTime(q domain.Question) int {
	if q.TimeLimit > 0 {
		return q.TimeLimit
	}
	return defaultTimeLimit
}

// encodeSelection produces the deterministic wire encoding of an answer.
func encodeSelection(selection []string) (string, error) {
	switch len(selection) {
	case 0:
		return "", domain.ErrEmptyAnswer
	case 1:
		if strings.TrimSpace(selection[0]) == "" {
			return "", domain.ErrEmptyAnswer
		}
		return selection[0], nil
	default:
		sorted := append([]string(nil), selection...)
		sort.Strings(sorted)
		return strings.Join(sorted, ","), nil
	}
}

func dedupePlayers(players []domain.Player) []domain.Player {
	seen := make(map[string]struct{}, len(players))
	out := make([]domain.Player, 0, len(players))
	for _, p := range players {
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		out = append(out, p)
	}
	return out
}
