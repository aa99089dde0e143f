package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"logossophia/internal/util"
	"logossophia/services/logos/internal/config"
)

var Version = "dev"

// cli carries state shared by every subcommand. The runtime is built on
// first use so commands like `session new` work without a reachable store.
type cli struct {
	configPath string
	cfg        config.FileConfig
	rt         *runtime
}

func (c *cli) runtime(cmd *cobra.Command) (*runtime, error) {
	if c.rt != nil {
		return c.rt, nil
	}
	rt, err := buildRuntime(cmd.Context(), c.cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	c.rt = rt
	return rt, nil
}

func (c *cli) close() {
	if c.rt != nil {
		c.rt.Close()
		c.rt = nil
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	c := &cli{}
	err := newRootCmd(c).ExecuteContext(ctx)
	c.close()
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "logos",
		Short:         "Logos & Sophia - a daily thought joining scripture, Hermetica, theurgy and the stars",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			util.InitLogger(cfg.LogLevel, cmd.ErrOrStderr())
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("LOGOS_CONFIG"), "Path to config.yaml")

	rootCmd.AddCommand(enterCmd(c))
	rootCmd.AddCommand(showCmd(c))
	rootCmd.AddCommand(prefsCmd(c))
	rootCmd.AddCommand(loginCmd(c))
	rootCmd.AddCommand(logoutCmd(c))
	rootCmd.AddCommand(whoamiCmd(c))
	rootCmd.AddCommand(historyCmd(c))
	rootCmd.AddCommand(chatCmd(c))
	rootCmd.AddCommand(sessionCmd(c))
	return rootCmd
}
