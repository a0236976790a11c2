package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/imattdu/tracecheck/config"
	"github.com/imattdu/tracecheck/logx"
	"github.com/imattdu/tracecheck/server"
	"github.com/imattdu/tracecheck/shutdown"
)

const appName = "traceidcheck"

func newCommand(exitCode *int) *cobra.Command {
	var (
		addr        string
		resultsFile string
	)

	command := &cobra.Command{
		Use:          appName,
		Short:        "HTTP server that exits when two requests share a trace id",
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load(appName)
			if err != nil {
				return err
			}
			if c.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if c.Flags().Changed("results-file") {
				cfg.Tracker.ResultsFile = resultsFile
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

			s, err := server.NewTraceIDCheck(ctx, cfg, logx.L())
			if err != nil {
				logx.Error(ctx, logx.TagStartup, err)
				return err
			}
			reason, err := s.ListenAndRun(ctx)
			if err != nil {
				logx.Error(ctx, logx.TagShutdown, err)
				return err
			}
			*exitCode = reason.ExitCode()
			return nil
		},
	}
	command.Flags().StringVar(&addr, "addr", ":3000", "listen address")
	command.Flags().StringVar(&resultsFile, "results-file", "trace-results.log", "file receiving per-request results and the run summary")
	return command
}

func main() {
	var exitCode int
	if err := newCommand(&exitCode).Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}
