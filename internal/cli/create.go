package cli

import (
	"fmt"
	"os"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"quizboard-client/internal/domain"
)

func newCreateCmd() *cobra.Command {
	var draftPath, qrPath string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a quiz from a YAML question file",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildStack()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, err := requireIdentity(ctx, s); err != nil {
				return err
			}

			draft, err := loadDraft(draftPath)
			if err != nil {
				return err
			}

			code, err := s.client.CreateQuiz(ctx, draft)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Quiz created. Share code: %s\n", code)

			if qrPath != "" {
				link := joinLink(s.cfg.Server.APIURL, code)
				if err := qrcode.WriteFile(link, qrcode.Medium, 256, qrPath); err != nil {
					return fmt.Errorf("write QR code: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Join link QR written to %s\n", qrPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&draftPath, "file", "f", "", "YAML file with title and questions")
	cmd.Flags().StringVar(&qrPath, "qr", "", "write a join-link QR code PNG to this path")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func loadDraft(path string) (domain.QuizDraft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.QuizDraft{}, err
	}
	var draft domain.QuizDraft
	if err := yaml.Unmarshal(data, &draft); err != nil {
		return domain.QuizDraft{}, fmt.Errorf("parse quiz file: %w", err)
	}
	if draft.Title == "" {
		return domain.QuizDraft{}, fmt.Errorf("quiz file is missing a title")
	}
	if len(draft.Questions) == 0 {
		return domain.QuizDraft{}, fmt.Errorf("quiz file has no questions")
	}
	for i, q := range draft.Questions {
		if q.Text == "" || q.CorrectAnswer == "" {
			return domain.QuizDraft{}, fmt.Errorf("question %d is missing text or correctAnswer", i+1)
		}
		switch q.Type {
		case domain.QuestionSingle, domain.QuestionMultiple:
			if len(q.Options) < 2 {
				return domain.QuizDraft{}, fmt.Errorf("question %d needs at least 2 options", i+1)
			}
		case domain.QuestionText:
		default:
			return domain.QuizDraft{}, fmt.Errorf("question %d has unknown type %q", i+1, q.Type)
		}
	}
	return draft, nil
}

func joinLink(apiBase, code string) string {
	return strings.TrimSuffix(apiBase, "/") + "/quiz/" + code
}
