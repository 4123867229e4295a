package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/talos-perf/talos/internal/common"
	"github.com/talos-perf/talos/internal/talos"
	"github.com/talos-perf/talos/internal/talos/configuration"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "talos",
		Short: "talos reports browser performance test results to results servers.",
		Long: `talos reports browser performance test results to results servers.

Results are read from browser logs and sent to every configured destination.
Run settings are read from a YAML config file, passed in using the --config argument.

Example structure:
title: qm-pxp01
browser_config:
  browser_name: Firefox
  browser_version: 14.0a1
  buildid: "20120404030502"
  branch_name: mozilla-central
  sourcestamp: a1b2c3d4
filters: [ignore_first:5, median]
results_urls:
  - http://graphs.example.com/server/collect.cgi

If no url is configured, results are written to results.out in the working directory.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path of the YAML run config.")
	cmd.PersistentFlags().Bool("debug", false, "Log at debug level.")

	cmd.AddCommand(
		versionCmd(talos.New()),
		checkCmd(talos.New()),
		reportCmd(talos.New()),
	)

	return cmd
}

// Print version info and exit.
func versionCmd(app *talos.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Version()
		},
	}
	return cmd
}

// Validate the config without reading logs or contacting any server.
func checkCmd(app *talos.App) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the run config, including output formats, urls, and filters.",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			common.ConfigureCommandLineLogging()
			return initParams(cmd, app, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Check()
		},
	}
	return cmd
}

// Report the results found in browser logs.
// Exits with 2 on configuration errors and 1 if results could not be delivered.
func reportCmd(app *talos.App) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "report [browser.log...]",
		Short: "Send the results found in browser logs to the configured results servers.",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, app, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Create a context that is cancelled on SIGINT/SIGTERM.
			// Stops retrying posts on ctrl-C.
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			stopSignal := make(chan os.Signal, 1)
			signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				select {
				case <-ctx.Done():
					return
				case <-stopSignal:
					cancel()
				}
			}()

			return app.Report(ctx, args...)
		},
	}

	cmd.Flags().StringP("testname", "a", "", "Name of the test the logs belong to. Defaults to the name of each log file.")
	cmd.Flags().StringP("title", "t", "", "Title of the test machine, e.g., qm-pxp01.")
	cmd.Flags().Int64("date", 0, "Unix time of the run. Defaults to now.")
	cmd.Flags().StringSlice("results-url", nil, "Graphserver destination (http://, https://, or file://). Replaces results_urls from the config file.")
	cmd.Flags().StringSlice("datazilla-url", nil, "Datazilla destination. Replaces datazilla_urls from the config file.")

	bindFlags(v, cmd.Flags(), map[string]string{
		"testname":       "testname",
		"title":          "title",
		"date":           "date",
		"results_urls":   "results-url",
		"datazilla_urls": "datazilla-url",
	})

	return cmd
}

// bindFlags binds config keys to flags, so that flags set on the command line take precedence over the config file.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func initParams(cmd *cobra.Command, app *talos.App, v *viper.Viper) error {
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return errors.WithStack(err)
	}
	if debug {
		common.ConfigureLogging(true)
	}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return errors.WithStack(err)
	}
	configuration.SetDefaults(v)
	return common.LoadConfig(v, &app.Params.Config, configPath)
}
