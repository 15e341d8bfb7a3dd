package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configFile string

// Color definitions
var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.FgHiBlack)
)

var rootCmd = &cobra.Command{
	Use:   "metroid-cli",
	Short: "metroid-cli is the command-line interface for metroid.",
	Long: `A CLI for operating a metroid deployment: validating subscription files,
inspecting and replaying failed messages, and publishing events.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Service config file (overrides METROID_CONFIG_FILE)")
	rootCmd.PersistentFlags().String("subscriptions", "", "Subscriptions file (overrides METROID_SUBSCRIPTIONS_FILE)")

	if err := viper.BindPFlag("SUBSCRIPTIONS_FILE", rootCmd.PersistentFlags().Lookup("subscriptions")); err != nil {
		slog.Error("Error binding flag", "error", err)
		os.Exit(1)
	}
}

// initConfig hands the flags to the service configuration loader, which
// reads METROID_* variables.
func initConfig() {
	viper.SetEnvPrefix("METROID")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		_ = os.Setenv("METROID_CONFIG_FILE", configFile)
	}
	if file := viper.GetString("SUBSCRIPTIONS_FILE"); file != "" {
		_ = os.Setenv("METROID_SUBSCRIPTIONS_FILE", file)
	}
}
