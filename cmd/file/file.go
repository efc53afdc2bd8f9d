// Package file implements one-shot classification of a local audio file.
package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veridict/voiceguard-go/internal/aasist"
	"github.com/veridict/voiceguard-go/internal/conf"
	"github.com/veridict/voiceguard-go/internal/detect"
	"github.com/veridict/voiceguard-go/internal/weights"
)

// Command creates the file command for classifying a single audio file.
func Command(settings *conf.Settings) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "file [input audio]",
		Short: "Classify a single audio file",
		Long:  "Classify one local audio file as AI-generated or human speech and print the result as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(cmd, settings, args[0], language)
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "English", "Spoken language of the clip")

	return cmd
}

func runFile(cmd *cobra.Command, settings *conf.Settings, path, language string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	resolver, err := weights.NewResolver(ctx, settings)
	if err != nil {
		return fmt.Errorf("error creating weights resolver: %w", err)
	}
	registry := aasist.NewRegistry(ctx, settings, aasist.DefaultLoader(settings, resolver))
	defer registry.Close()

	result, err := detect.New(settings, registry, nil).Detect(ctx, language, data, format)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
