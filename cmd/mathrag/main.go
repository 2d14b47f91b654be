package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mathrag/client/internal/api/client"
	"github.com/mathrag/client/internal/models"
	"github.com/mathrag/client/internal/session"
	"github.com/mathrag/client/pkg/config"
	"github.com/mathrag/client/pkg/logger"
)

var version = "0.1.0-dev"

var (
	errSolveFailed    = errors.New("solve failed")
	errFeedbackFailed = errors.New("feedback submission failed")
	errNoSolution     = errors.New("no solution to give feedback on")
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mathrag",
		Short: "Math solver client with a feedback loop",
		Long: `mathrag sends math questions to the solving service and lets you
grade the answer, feeding corrections back for training.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); logging is off when empty")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSolveCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "mathrag version %s\n", version)
			}
		},
	}
}

type solveOptions struct {
	question   string
	assessment string
	correction string
	jsonOut    bool
}

func newSolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve [question]",
		Short: "Solve a math question and optionally grade the answer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if baseURL, _ := cmd.Flags().GetString("base-url"); baseURL != "" {
				cfg.API.BaseURL = baseURL
			}
			if level, _ := cmd.Flags().GetString("log-level"); level != "" {
				if err := logger.Init(level, "console", "stderr"); err != nil {
					return fmt.Errorf("failed to initialize logger: %w", err)
				}
				defer logger.Sync()
			}

			opts := solveOptions{}
			if len(args) == 1 {
				opts.question = args[0]
			}
			opts.assessment, _ = cmd.Flags().GetString("assessment")
			opts.correction, _ = cmd.Flags().GetString("correction")
			opts.jsonOut, _ = cmd.Flags().GetBool("json")

			apiClient := client.FromConfig(cfg)
			coord := session.NewCoordinator(apiClient, apiClient, session.Config{
				Level:           cfg.API.Level,
				UserID:          cfg.API.UserID,
				DefaultQuestion: cfg.Session.DefaultQuestion,
				NoticeDuration:  cfg.Feedback.NoticeDuration(),
			})

			return runSolve(cmd.Context(), cmd.OutOrStdout(), coord, opts)
		},
	}

	cmd.Flags().String("assessment", "", "Grade the answer: CORRECT, INCORRECT, COMPLEX or OFF_TOPIC")
	cmd.Flags().String("correction", "", "Corrected or simplified solution to send with the grade")
	cmd.Flags().String("base-url", "", "Solving service base URL (overrides api.baseURL)")

	return cmd
}

// runSolve drives one question through the coordinator and, when an
// assessment is given, one feedback submission.
func runSolve(ctx context.Context, out io.Writer, coord *session.Coordinator, opts solveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.question != "" {
		if err := coord.SetQuestion(opts.question); err != nil {
			return err
		}
	}

	if err := coord.StartSolve(ctx); err != nil {
		return err
	}
	coord.Wait()

	view := coord.View()
	if opts.jsonOut && (opts.assessment == "" || view.SolveError != nil) {
		if err := writeJSON(out, view); err != nil {
			return err
		}
		if view.SolveError != nil {
			return errSolveFailed
		}
		return nil
	}

	if view.SolveError != nil {
		fmt.Fprintln(out, view.SolveError.Message)
		return errSolveFailed
	}
	if !opts.jsonOut {
		printSolution(out, view.Solution)
	}

	if opts.assessment == "" {
		return nil
	}
	if !view.FeedbackAvailable {
		return errNoSolution
	}

	if err := coord.SetFeedbackField(models.FieldAssessment, opts.assessment); err != nil {
		return err
	}
	if opts.correction != "" {
		if err := coord.SetFeedbackField(models.FieldCorrectionText, opts.correction); err != nil {
			return err
		}
	}

	if err := coord.SubmitFeedback(ctx); err != nil {
		return err
	}
	coord.Wait()

	view = coord.View()
	if opts.jsonOut {
		if err := writeJSON(out, view); err != nil {
			return err
		}
	} else if view.Notice != nil {
		fmt.Fprintln(out, view.Notice.Message)
	}

	if view.FeedbackState == session.FeedbackSubmitFailed {
		return errFeedbackFailed
	}
	return nil
}

func printSolution(out io.Writer, sol *models.Solution) {
	if sol == nil {
		return
	}

	if sol.Present() {
		fmt.Fprintf(out, "Solution Generated by %s Agent\n", sol.Mode.Label())
	}
	fmt.Fprintf(out, "Mode: %s\n", sol.Mode)
	if sol.HasConfidence() {
		fmt.Fprintf(out, "KB Confidence: %.4f\n", sol.Confidence)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, sol.Body())
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
