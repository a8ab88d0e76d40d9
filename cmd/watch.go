/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fittrack/apiserver/client"
	"github.com/fittrack/apiserver/types"
	"github.com/spf13/cobra"
)

var watchOpts struct {
	api        string
	email      string
	password   string
	maxRetries uint64
}

// watchCmd follows the admin notification stream.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live admin notifications",
	Long: `Signs in as an admin and prints every notification as a JSON line.
Completion events are merged into a local view of the completion list and
recommendation events trigger a refetch of that user's recommendations.

	fittrack watch --api http://localhost:8080 --email admin@example.com --password ...
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		api := client.New(watchOpts.api, nil)
		session, err := api.Login(ctx, watchOpts.email, watchOpts.password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if !session.IsAdmin() {
			return errors.New("watch requires an admin account")
		}

		view := client.NewAdminView()
		completions, err := api.Completions(ctx, session)
		if err != nil {
			return fmt.Errorf("load completions: %w", err)
		}
		view.ReplaceCompletions(completions)
		fmt.Fprintf(cmd.ErrOrStderr(), "loaded %d completions\n", len(completions))

		sub, err := client.NewSubscriber(watchOpts.api, client.WithMaxRetries(watchOpts.maxRetries))
		if err != nil {
			return err
		}

		out := json.NewEncoder(cmd.OutOrStdout())
		err = sub.Run(ctx, session, func(env types.Envelope) {
			_ = out.Encode(env)
			if !view.Apply(env) {
				return
			}
			for _, userID := range view.StaleUsers() {
				recs, err := api.UserRecommendations(ctx, session, userID)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "refetch recommendations for %s: %v\n", userID, err)
					continue
				}
				view.MarkFresh(userID)
				fmt.Fprintf(cmd.ErrOrStderr(), "user %s now has %d recommendations\n", userID, len(recs))
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d completions in view\n", len(view.Completions()))
		})
		if errors.Is(err, client.ErrSessionEnded) {
			return errors.New("session ended, sign in again")
		}
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchOpts.api, "api", "http://localhost:8080", "API base URL")
	watchCmd.Flags().StringVar(&watchOpts.email, "email", "", "admin email")
	watchCmd.Flags().StringVar(&watchOpts.password, "password", os.Getenv("FITTRACK_PASSWORD"), "admin password")
	watchCmd.Flags().Uint64Var(&watchOpts.maxRetries, "max-retries", 8, "consecutive reconnect attempts before giving up")
	_ = watchCmd.MarkFlagRequired("email")
}
