package main

import (
	"context"
	"os"
	"runtime/debug"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/term"

	"github.com/walteh/twoslash/cmd/twoslash/check"
	"github.com/walteh/twoslash/cmd/twoslash/process"
	"github.com/walteh/twoslash/cmd/twoslash/serve"
	"github.com/walteh/twoslash/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		println(err.Error())
		os.Exit(1)
	}
}

func run() error {
	var (
		debugLogs bool
		logLevel  string
	)

	rootCmd := &cobra.Command{
		Use:          "twoslash",
		Short:        "Annotate code samples with compiler hovers, completions and errors",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel == "" {
				logLevel = os.Getenv("TWOSLASH_LOG_LEVEL")
			}
			console := term.IsTerminal(int(os.Stderr.Fd()))
			ctx := logging.WithLogger(cmd.Context(), os.Stderr, logging.Options{
				Level:   logging.ParseLevel(logLevel, debugLogs),
				Console: console,
				Color:   console && !color.NoColor,
			})
			cmd.SetContext(ctx)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debugLogs, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	info, ok := debug.ReadBuildInfo()
	if !ok {
		rootCmd.Version = "unknown"
	} else {
		rootCmd.Version = info.Main.Version
	}

	cmdVersion := &cobra.Command{
		Use: "raw-version",
		Run: func(cmdz *cobra.Command, args []string) {
			cmdz.Println(rootCmd.Version)
		},
		Hidden: true,
	}

	rootCmd.AddCommand(cmdVersion)
	rootCmd.AddCommand(process.NewProcessCommand())
	rootCmd.AddCommand(check.NewCheckCommand())
	rootCmd.AddCommand(serve.NewServeCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		return errors.Errorf("failed to execute command: %w", err)
	}

	return nil
}
