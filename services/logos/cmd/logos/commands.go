package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"logossophia/internal/identity"
	"logossophia/pkg/domain"
	"logossophia/services/logos/internal/app"
)

func enterCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "enter",
		Short: "Pass the landing gate for this session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			if err := rt.app.EnterApp(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "The gate is open. Welcome, seeker.")
			return nil
		},
	}
}

// ensureEntered shows the landing text once per session.
func ensureEntered(ctx context.Context, cmd *cobra.Command, a *app.App) error {
	if a.Entered() {
		return nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), landing+"\n")
	return a.EnterApp(ctx)
}

// display loads the thought for date (or the current date when empty),
// retrying once when retry is set.
func display(ctx context.Context, a *app.App, date string, retry bool) (app.State, error) {
	var st app.State
	var err error
	if date != "" {
		st, err = a.SelectDate(ctx, date)
	} else {
		st, err = a.Refresh(ctx)
	}
	if err != nil && retry && st.Status == domain.StatusError {
		st, err = a.Retry(ctx)
	}
	return st, err
}

func showCmd(c *cli) *cobra.Command {
	var date string
	var retry bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the thought for a date (today by default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := ensureEntered(ctx, cmd, rt.app); err != nil {
				return err
			}
			st, err := display(ctx, rt.app, date, retry)
			if err != nil {
				if st.Status == domain.StatusError {
					return errors.New(st.Error)
				}
				return err
			}
			renderThought(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Date to show (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&retry, "retry", false, "Retry once if the oracle is silent")
	return cmd
}

func prefsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change the focus of generated thoughts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the saved preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			renderPreferences(cmd.OutOrStdout(), rt.app.State().Preferences)
			return nil
		},
	})

	var bible, hermetic, themes []string
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace the saved preferences",
		Long: "Replace the saved preferences. Options:\n" +
			"  --bible:    " + strings.Join(domain.BiblicalOptions, ", ") + "\n" +
			"  --hermetic: " + strings.Join(domain.HermeticOptions, ", ") + "\n" +
			"  --theme:    " + strings.Join(domain.ThemeOptions, ", "),
		RunE: func(cmd *cobra.Command, _ []string) error {
			prefs := domain.Preferences{BiblicalBooks: bible, HermeticTexts: hermetic, PhilosophicalThemes: themes}
			if err := domain.ValidatePreferences(prefs); err != nil {
				return err
			}
			return savePreferences(c, cmd, prefs)
		},
	}
	set.Flags().StringSliceVar(&bible, "bible", nil, "Biblical books to focus on")
	set.Flags().StringSliceVar(&hermetic, "hermetic", nil, "Hermetic texts to focus on")
	set.Flags().StringSliceVar(&themes, "theme", nil, "Philosophical or theurgic themes")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every preference",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return savePreferences(c, cmd, domain.Preferences{})
		},
	})
	return cmd
}

func savePreferences(c *cli, cmd *cobra.Command, prefs domain.Preferences) error {
	rt, err := c.runtime(cmd)
	if err != nil {
		return err
	}
	st, err := rt.app.SavePreferences(cmd.Context(), prefs)
	if err != nil {
		return err
	}
	renderPreferences(cmd.OutOrStdout(), st.Preferences)
	return nil
}

// dispatch delivers one identity event through the app's event handler.
func dispatch(cmd *cobra.Command, rt *runtime, ev identity.Event) app.State {
	events := make(chan identity.Event, 1)
	events <- ev
	close(events)
	rt.app.WatchIdentity(cmd.Context(), events)
	return rt.app.State()
}

func loginCmd(c *cli) *cobra.Command {
	var credential string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a Google ID token credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			ev, err := rt.decoder.Event(credential)
			if err != nil {
				return err
			}
			st := dispatch(cmd, rt, ev)
			fmt.Fprint(cmd.OutOrStdout(), "Signed in as ")
			renderUser(cmd.OutOrStdout(), st.User)
			return nil
		},
	}
	cmd.Flags().StringVar(&credential, "credential", "", "ID token issued by Google Sign-In")
	_ = cmd.MarkFlagRequired("credential")
	return cmd
}

func logoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out; thoughts are generated anonymously afterwards",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			dispatch(cmd, rt, identity.SignOutEvent())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func whoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			renderUser(cmd.OutOrStdout(), rt.app.State().User)
			return nil
		},
	}
}

func historyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List the thoughts already received by the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			items, err := rt.app.History(cmd.Context())
			if errors.Is(err, app.ErrNoUser) {
				return errors.New("sign in to keep a history of received thoughts")
			}
			if err != nil {
				return err
			}
			renderHistory(cmd.OutOrStdout(), items)
			return nil
		},
	}
}

func sessionCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the session that scopes cached thoughts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Print a fresh session id to export as LOGOS_SESSION",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "export LOGOS_SESSION=%s\n", uuid.NewString())
			if c.cfg.SessionBackend != "redis" {
				fmt.Fprintln(cmd.ErrOrStderr(), "note: sessionBackend is memory, so each invocation is its own session")
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "end",
		Short: "Discard cached thoughts and the entered marker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			if err := rt.app.EndSession(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session ended.")
			return nil
		},
	})
	return cmd
}
