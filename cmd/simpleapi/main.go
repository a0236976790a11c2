package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/imattdu/tracecheck/config"
	"github.com/imattdu/tracecheck/logx"
	"github.com/imattdu/tracecheck/server"
	"github.com/imattdu/tracecheck/shutdown"
)

const appName = "simpleapi"

func newCommand() *cobra.Command {
	var (
		addr       string
		downstream string
	)

	command := &cobra.Command{
		Use:          appName,
		Short:        "API server that forwards trace context to one downstream call",
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load(appName)
			if err != nil {
				return err
			}
			if c.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if c.Flags().Changed("downstream") {
				cfg.Downstream.URL = downstream
			}

			if err := logx.Init(logx.Config{
				AppName:        appName,
				Level:          logx.ParseLevel(cfg.Log.Level),
				LogDir:         cfg.Log.Dir,
				ConsoleEnabled: cfg.Log.Console,
			}); err != nil {
				return err
			}
			defer logx.Close()

			ctx, stop := shutdown.SignalContext(c.Context())
			defer stop()

			s, err := server.NewSimpleAPI(ctx, cfg, logx.L())
			if err != nil {
				logx.Error(ctx, logx.TagStartup, err)
				return err
			}
			if _, err := s.ListenAndRun(ctx); err != nil {
				logx.Error(ctx, logx.TagShutdown, err)
				return err
			}
			return nil
		},
	}
	command.Flags().StringVar(&addr, "addr", ":3000", "listen address")
	command.Flags().StringVar(&downstream, "downstream", "", "downstream URL called by GET /")
	return command
}

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
