package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/xhad/regqa/internal/models"
	"github.com/xhad/regqa/pkg/retry"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively",
	Long: `Start an interactive session. Follow-up questions are interpreted in the
context of the conversation.

Commands:
  /clear   forget the conversation so far
  exit     leave the session`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("language", "l", "", "answer language (pt or en); detected when empty")
	chatCmd.Flags().String("session", "", "session id (random when empty)")
}

func runChat(cmd *cobra.Command, args []string) error {
	language, _ := cmd.Flags().GetString("language")
	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.retriever.Ready() {
		color.Yellow("The document index is not loaded. Run `regqa index` first.")
	}

	color.Cyan("\nAsk about the regulations (type 'exit' to quit, '/clear' to start over)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()
	sourceLine := color.New(color.FgHiBlack).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(query) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/clear":
			a.pipeline.ClearSession(sessionID)
			color.Yellow("Conversation cleared.")
			continue
		}

		spinner := getSpinner("Searching the regulations...")
		result, err := a.pipeline.Process(ctx, models.Question{
			Text:      query,
			Language:  language,
			SessionID: sessionID,
		})
		_ = spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, retry.ErrRetriesExhausted) {
				color.Red("The model is unavailable right now, please try again.")
			} else {
				color.Red("Error: %v", err)
			}
			continue
		}

		assistantPrompt("Assistant: %s\n", result.Answer)
		for _, s := range result.Sources {
			sourceLine("  - %s\n", s.Citation)
		}
	}

	return scanner.Err()
}
