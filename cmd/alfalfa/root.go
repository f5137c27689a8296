package main

import (
	"github.com/spf13/cobra"
)

// newRootCommand builds the command tree. The returned context must be closed
// once the command has run.
func newRootCommand() (*cobra.Command, *commandContext) {
	var configFlag string
	var reconstructorFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "alfalfa",
		Short:         "Inspect and replay VP8 decoder states",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if reconstructorFlag != "" {
				if _, err := reconstructorByName(reconstructorFlag); err != nil {
					return err
				}
				cfg.Decoder.Reconstructor = reconstructorFlag
			}
			_, err = ctx.ensureLogger(cmd.ErrOrStderr())
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&reconstructorFlag, "reconstructor", "", "Pixel reconstructor: intra or synthetic (overrides config)")

	rootCmd.AddCommand(newInfoCommand(ctx))
	rootCmd.AddCommand(newPlayCommand(ctx))
	rootCmd.AddCommand(newDiffCommand(ctx))
	rootCmd.AddCommand(newSerializeCommand(ctx))
	rootCmd.AddCommand(newSwitchCommand(ctx))
	rootCmd.AddCommand(newCatalogCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd, ctx
}
