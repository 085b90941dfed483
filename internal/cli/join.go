package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"quizboard-client/internal/app"
	"quizboard-client/internal/domain"
	"quizboard-client/internal/transport/ws"
)

func newJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join CODE",
		Short: "Join a quiz room and play",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildStack()
			if err != nil {
				return err
			}
			code := strings.ToUpper(args[0])

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			identity, err := requireIdentity(ctx, s)
			if err != nil {
				return err
			}
			if err := s.client.JoinQuiz(ctx, code, identity.UserID); err != nil {
				return err
			}

			channel, err := ws.Dial(ctx, s.cfg.Server.SocketURL, s.log)
			if err != nil {
				return fmt.Errorf("connect event channel: %w", err)
			}
			defer channel.Close()

			view := newRoomView(cmd.OutOrStdout(), identity)
			room := app.NewRoom(identity, code, app.RoomConfig{
				API:      s.api,
				Channel:  channel,
				Sessions: s.sessions,
				Log:      s.log,
				Render:   view.render,
				Notify:   view.notify,
			})
			view.close = room.Close

			go room.Run(ctx)
			go readCommands(ctx, cmd.InOrStdin(), room, view)

			<-room.Done()

			if view.ended() {
				fmt.Fprintln(cmd.OutOrStdout())
				return showLeaderboard(context.WithoutCancel(ctx), s, code, cmd.OutOrStdout())
			}
			return nil
		},
	}
}

func requireIdentity(ctx context.Context, s *stack) (domain.Identity, error) {
	identity, err := s.sessions.Load(ctx)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w; run `quizboard login` first", domain.ErrNotLoggedIn)
	}
	return identity, nil
}

// readCommands translates stdin lines into room actions until EOF or quit.
func readCommands(ctx context.Context, in io.Reader, room *app.Room, view *roomView) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "q", "quit", "exit":
			room.Close()
			return
		case "start":
			room.Start()
		case "end":
			room.End()
		case "s", "submit":
			room.Submit()
		case "h", "help", "?":
			view.printHelp()
		default:
			selection, err := view.parseSelection(line)
			if err != nil {
				view.notify(err.Error())
				continue
			}
			room.Select(selection)
		}
	}
	room.Close()
}

// roomView is a pure projection of RoomState onto the terminal. It keeps the
// last rendered state so the input goroutine can map option numbers, and it
// asks the room to close once the terminal phase has been displayed.
type roomView struct {
	out      io.Writer
	identity domain.Identity
	close    func()

	mu        sync.Mutex
	last      app.RoomState
	lastPhase app.Phase
	lastIndex int
	wasEnded  bool
}

func newRoomView(out io.Writer, identity domain.Identity) *roomView {
	return &roomView{out: out, identity: identity, lastIndex: -1}
}

func (v *roomView) notify(msg string) {
	fmt.Fprintf(v.out, ">> %s\n", msg)
}

func (v *roomView) ended() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.wasEnded
}

func (v *roomView) parseSelection(line string) ([]string, error) {
	v.mu.Lock()
	state := v.last
	v.mu.Unlock()

	question, ok := state.Question()
	if !ok {
		return nil, fmt.Errorf("no question is in play")
	}
	if question.Type == domain.QuestionText {
		return []string{line}, nil
	}

	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' })
	if question.Type == domain.QuestionSingle && len(fields) > 1 {
		return nil, fmt.Errorf("this question takes a single choice")
	}
	selection := make([]string, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > len(question.Options) {
			return nil, fmt.Errorf("pick option numbers between 1 and %d", len(question.Options))
		}
		selection = append(selection, question.Options[n-1])
	}
	return selection, nil
}

func (v *roomView) render(state app.RoomState) {
	v.mu.Lock()
	prevPhase, prevIndex, prevTime := v.lastPhase, v.lastIndex, v.last.TimeLeft
	prevRoster := len(v.last.Roster)
	v.last = state
	v.lastPhase = state.Phase
	if state.Phase == app.PhaseActive {
		v.lastIndex = state.QuestionIndex
	}
	v.mu.Unlock()

	switch state.Phase {
	case app.PhaseLoading:
		if prevPhase != app.PhaseLoading {
			fmt.Fprintln(v.out, "Loading quiz...")
		}

	case app.PhaseError:
		if prevPhase != app.PhaseError {
			fmt.Fprintf(v.out, "Failed to load quiz: %v\n", state.Err)
			if v.close != nil {
				v.close()
			}
		}

	case app.PhaseLobby:
		// Quiet on timer ticks; re-render only when the roster moves.
		if prevPhase != app.PhaseLobby || len(state.Roster) != prevRoster {
			v.printLobby(state)
		}

	case app.PhaseActive:
		if prevPhase != app.PhaseActive || state.QuestionIndex != prevIndex {
			v.printQuestion(state)
			return
		}
		if state.Submitted && state.LastResult != nil {
			return // verdict already surfaced via notify
		}
		if state.TimeLeft != prevTime && (state.TimeLeft <= 5 || state.TimeLeft%10 == 0) {
			fmt.Fprintf(v.out, "  %ds left...\n", state.TimeLeft)
		}

	case app.PhaseEnded:
		if prevPhase != app.PhaseEnded {
			fmt.Fprintf(v.out, "\nQuiz completed! Your final score: %d\n", state.Score)
			v.mu.Lock()
			v.wasEnded = true
			v.mu.Unlock()
			if v.close != nil {
				v.close()
			}
		}
	}
}

func (v *roomView) printLobby(state app.RoomState) {
	title := state.Title
	if title == "" {
		title = "Quiz Lobby"
	}
	fmt.Fprintf(v.out, "\n%s  [code %s]\n", title, state.Code)
	fmt.Fprintf(v.out, "Players (%d):\n", len(state.Roster))
	for _, p := range state.Roster {
		tags := ""
		if p.UserID == state.CreatedBy {
			tags += " [host]"
		}
		if p.UserID == v.identity.UserID {
			tags += " [you]"
		}
		fmt.Fprintf(v.out, "  - %s%s\n", p.Username, tags)
	}
	if v.identity.UserID == state.CreatedBy {
		if len(state.Roster) < 2 {
			fmt.Fprintln(v.out, "Waiting for at least 2 players before you can `start`.")
		} else {
			fmt.Fprintln(v.out, "All set. Type `start` to begin the quiz.")
		}
	} else {
		fmt.Fprintln(v.out, "Waiting for the host to start the quiz...")
	}
}

func (v *roomView) printQuestion(state app.RoomState) {
	question, ok := state.Question()
	if !ok {
		fmt.Fprintln(v.out, "\nWaiting for questions...")
		return
	}
	fmt.Fprintf(v.out, "\nQuestion %d of %d  (%ds, score %d)\n",
		state.QuestionIndex+1, len(state.Questions), state.TimeLeft, state.Score)
	fmt.Fprintf(v.out, "%s\n", question.Text)
	switch question.Type {
	case domain.QuestionText:
		fmt.Fprintln(v.out, "Type your answer, then `submit`.")
	case domain.QuestionMultiple:
		for i, opt := range question.Options {
			fmt.Fprintf(v.out, "  %d) %s\n", i+1, opt)
		}
		fmt.Fprintln(v.out, "Pick one or more (e.g. `1,3`), then `submit`.")
	default:
		for i, opt := range question.Options {
			fmt.Fprintf(v.out, "  %d) %s\n", i+1, opt)
		}
		fmt.Fprintln(v.out, "Pick one (e.g. `2`), then `submit`.")
	}
}

func (v *roomView) printHelp() {
	fmt.Fprintln(v.out, `Commands:
  1 / 1,3      select answer option(s)
  <text>       answer a free-text question
  submit (s)   submit the selected answer
  start        start the quiz (host only)
  end          end the quiz (host only)
  quit (q)     leave the room`)
}
