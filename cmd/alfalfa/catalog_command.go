package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"alfalfa/internal/catalog"
	"alfalfa/internal/decoder"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the serialized frame catalog",
	}

	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	catalogCmd.AddCommand(newCatalogCandidatesCommand(ctx))
	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the streams recorded in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCatalogReadOnly(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			summaries, err := store.Streams(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, summaries)
			}
			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "Catalog is empty")
				return nil
			}
			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				rows = append(rows, []string{s.Stream, strconv.Itoa(s.Frames), humanize.IBytes(uint64(s.Bytes))})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Stream", "Frames", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newCatalogCandidatesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates <fingerprint>",
		Short: "List catalog frames a decoder in the given state can decode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := decoder.ParseFingerprint(args[0])
			if err != nil {
				return err
			}
			store, err := openCatalogReadOnly(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Candidates(cmd.Context(), source)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No frames start from %s\n", source.Short())
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Stream,
					strconv.Itoa(e.FrameIndex),
					yesNo(e.Shown),
					humanize.IBytes(uint64(e.Frame.Size())),
					e.Frame.Target.String(),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Stream", "Frame", "Shown", "Size", "Target"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func openCatalogReadOnly(ctx *commandContext) (*catalog.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return catalog.OpenReadOnly(cfg.Paths.Catalog)
}
