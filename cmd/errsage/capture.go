package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmorgan/errsage/internal/model"
)

func captureCmd() *cobra.Command {
	var (
		stackTrace  string
		errContext  string
		environment string
		platform    string
		meta        []string
	)

	cmd := &cobra.Command{
		Use:   "capture <message>",
		Short: "Capture one error and resolve it locally or queue it",
		Long: `Classify a single error against the pattern library. A confident match
returns the cached solution immediately at zero cost; a novel error is
queued for the next scheduled analysis batch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			metadata, err := parseMetadata(meta)
			if err != nil {
				return err
			}

			errCtx := model.ErrorContext{
				Message:     args[0],
				StackTrace:  stackTrace,
				Context:     errContext,
				Environment: environment,
				Platform:    platform,
				Metadata:    metadata,
			}

			result, err := a.engine.Capture(ctx, errCtx)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&stackTrace, "stack", "", "stack trace text")
	cmd.Flags().StringVar(&errContext, "context", "", "what was happening (e.g. build, api call)")
	cmd.Flags().StringVar(&environment, "environment", "", "where it happened (e.g. production, test)")
	cmd.Flags().StringVar(&platform, "platform", "", "runtime hint (e.g. node, go, ci)")
	cmd.Flags().StringSliceVar(&meta, "meta", nil, "metadata entries as key=value")
	return cmd
}

func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	metadata := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid metadata entry %q, expected key=value", pair)
		}
		metadata[key] = value
	}
	return metadata, nil
}
