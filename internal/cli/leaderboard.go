package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"quizboard-client/internal/domain"
)

func newLeaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard CODE",
		Short: "Show the ranked results for a quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildStack()
			if err != nil {
				return err
			}
			return showLeaderboard(cmd.Context(), s, args[0], cmd.OutOrStdout())
		},
	}
}

// showLeaderboard renders the server-ranked standings. If the fetch fails or
// the caller's row is missing (the backend may not have settled yet), the
// locally persisted final score is shown as a fallback.
func showLeaderboard(ctx context.Context, s *stack, code string, out io.Writer) error {
	identity, _ := s.sessions.Load(ctx)

	lb, err := s.api.Leaderboard(ctx, code)
	if err != nil {
		if score, ok, serr := s.sessions.FinalScore(ctx, code); serr == nil && ok {
			fmt.Fprintf(out, "Leaderboard not available yet (%v)\n", err)
			fmt.Fprintf(out, "Your final score: %d\n", score)
			return nil
		}
		return err
	}

	title := lb.Title
	if title == "" {
		title = "Quiz Leaderboard"
	}
	fmt.Fprintf(out, "%s  [%s]", title, code)
	if lb.Status != "" {
		fmt.Fprintf(out, "  (%s)", lb.Status)
	}
	fmt.Fprintln(out)

	if len(lb.Entries) == 0 {
		fmt.Fprintln(out, "No results yet; waiting for the quiz to complete.")
	} else {
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tPLAYER\tSCORE\t%")
		for _, e := range lb.Entries {
			marker := ""
			if e.UserID == identity.UserID {
				marker = " (you)"
			}
			fmt.Fprintf(w, "#%d\t%s%s\t%d\t%.0f%%\n", e.Rank, e.Username, marker, e.Score, e.Percentage)
		}
		w.Flush()
	}

	if identity.UserID != "" && !hasEntry(lb.Entries, identity.UserID) {
		if score, ok, serr := s.sessions.FinalScore(ctx, code); serr == nil && ok {
			fmt.Fprintf(out, "Your final score (pending): %d\n", score)
		}
	}
	return nil
}

func hasEntry(entries []domain.LeaderboardEntry, userID string) bool {
	for _, e := range entries {
		if e.UserID == userID {
			return true
		}
	}
	return false
}
