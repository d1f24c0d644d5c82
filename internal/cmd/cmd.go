// Package cmd implements the wiser-home command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/clambin/go-common/charmer"
	"github.com/clambin/wiser-home/internal/app"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "wiser-home",
		Short: "Controls room heating through Wiser radiator valves",
		RunE:  run,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			charmer.SetJSONLogger(cmd, viper.GetBool("debug"))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	RootCmd.PersistentFlags().Bool("debug", false, "Log debug messages")
	_ = viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug"))
}

var args = charmer.Arguments{
	"debug":             charmer.Argument{Default: false, Help: "Log debug messages"},
	"interval":          charmer.Argument{Default: 30 * time.Second, Help: "Schedule evaluation interval"},
	"mqtt.url":          charmer.Argument{Default: "tcp://localhost:1883", Help: "MQTT broker URL"},
	"mqtt.topic":        charmer.Argument{Default: "wiser-home/valves", Help: "MQTT topic prefix for valve state & setpoints"},
	"mqtt.commandTopic": charmer.Argument{Default: "wiser-home/command", Help: "MQTT topic for external commands"},
	"exporter.addr":     charmer.Argument{Default: ":9090", Help: "Address of Prometheus exporter"},
	"health.addr":       charmer.Argument{Default: ":8080", Help: "Address of /health endpoint"},
	"slack.token":       charmer.Argument{Default: "", Help: "Slack token"},
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/wiser-home/")
		viper.AddConfigPath("$HOME/.wiser-home")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	if err := charmer.SetDefaults(viper.GetViper(), args); err != nil {
		panic("failed to set viper defaults: " + err.Error())
	}

	viper.SetEnvPrefix("WISER_HOME")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		slog.Error("failed to read config file", "err", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()
	logger.Info("starting wiser-home", "version", cmd.Root().Version)

	m, err := app.New(viper.GetViper(), prometheus.DefaultRegisterer, logger)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err = m.Run(cmd.Context()); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	return nil
}
