package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"logossophia/internal/observability"
	"logossophia/pkg/conversation"
	"logossophia/pkg/domain"
)

const chatHelp = "Commands: /date YYYY-MM-DD, /retry, /thought, /quit. Anything else is sent to the guide."

func chatCmd(c *cli) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Show the thought and converse with the Guide of the Logos about it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if rt.cfg.MetricsAddr != "" {
				srv, err := observability.Serve(rt.cfg.MetricsAddr, rt.metrics, rt.logger)
				if err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}
			if err := ensureEntered(ctx, cmd, rt.app); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			st, err := display(ctx, rt.app, date, false)
			if err != nil && st.Status == domain.StatusError {
				fmt.Fprintln(out, st.Error)
			} else if err != nil {
				return err
			} else {
				renderThought(out, st)
				fmt.Fprintln(out)
				printTurns(out, rt.app.Conversation().Turns())
			}
			fmt.Fprintln(out, chatHelp)
			return chatLoop(ctx, cmd.InOrStdin(), out, c)
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Date of the thought to discuss (YYYY-MM-DD)")
	return cmd
}

func chatLoop(ctx context.Context, in io.Reader, out io.Writer, c *cli) error {
	a := c.rt.app
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/thought":
			renderThought(out, a.State())
			continue
		case line == "/retry" || strings.HasPrefix(line, "/date"):
			var err error
			before, _ := a.Conversation().Bound()
			if line == "/retry" {
				_, err = a.Retry(ctx)
			} else {
				_, err = a.SelectDate(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/date")))
			}
			st := a.State()
			if err != nil {
				if st.Status == domain.StatusError {
					fmt.Fprintln(out, st.Error)
				} else {
					fmt.Fprintln(out, err)
				}
				continue
			}
			renderThought(out, st)
			fmt.Fprintln(out)
			if after, _ := a.Conversation().Bound(); after != before {
				printTurns(out, a.Conversation().Turns())
			}
			continue
		}

		turn, err := a.Conversation().Send(ctx, line)
		var sendErr *conversation.ChatSendError
		switch {
		case err == nil, errors.As(err, &sendErr):
			renderTurn(out, turn)
		case errors.Is(err, conversation.ErrUnbound):
			fmt.Fprintln(out, "There is no thought to discuss yet. Try /retry.")
		default:
			fmt.Fprintln(out, err)
		}
	}
}

func printTurns(out io.Writer, turns []domain.Turn) {
	for _, t := range turns {
		renderTurn(out, t)
	}
}
