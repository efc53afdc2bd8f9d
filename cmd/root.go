// Package cmd assembles the voiceguard command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/veridict/voiceguard-go/cmd/file"
	"github.com/veridict/voiceguard-go/cmd/serve"
	"github.com/veridict/voiceguard-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "voiceguard",
		Short: "VoiceGuard AI-generated voice detection",
		Long:  "VoiceGuard classifies audio clips as AI-generated or human speech using an AASIST model ensemble.",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		file.Command(settings),
	)

	return rootCmd
}

// setupFlags defines flags global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().Float64VarP(&settings.Fusion.Threshold, "threshold", "t", viper.GetFloat64("fusion.threshold"), "Synthetic probability threshold for the AI_GENERATED label, between 0.0 and 1.0")
	rootCmd.PersistentFlags().IntVar(&settings.Models.Threads, "threads", viper.GetInt("models.threads"), "Interpreter thread count, 0 to use all CPUs")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
