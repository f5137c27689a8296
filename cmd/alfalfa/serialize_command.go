package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"alfalfa/internal/catalog"
	"alfalfa/internal/decoder"
	"alfalfa/internal/frame"
	"alfalfa/internal/logging"
	"alfalfa/internal/player"
)

type serializedRow struct {
	Index              int    `json:"index"`
	Shown              bool   `json:"shown"`
	Size               int    `json:"size"`
	Source             string `json:"source"`
	Target             string `json:"target"`
	ProbabilityChanges int    `json:"probability_changes"`
	References         string `json:"references_changed"`
	Continuation       string `json:"continuation"`
	Stored             bool   `json:"stored"`
}

func newSerializeCommand(ctx *commandContext) *cobra.Command {
	var streamName string
	var every int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "serialize <file.ivf>",
		Short: "Record every frame of a stream as a serialized frame in the catalog",
		Long: "Plays the stream and stores each frame together with the decoder state\n" +
			"fingerprints it starts from and leads to. The per-frame state change is\n" +
			"reported; the continuation part of it is recomputed every --continuation-every\n" +
			"frames and carried over in between.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if every <= 0 {
				every = cfg.Serialize.ContinuationEvery
			}
			if strings.TrimSpace(streamName) == "" {
				streamName = filepath.Base(args[0])
			}

			reconName := ctx.configuredReconstructor()
			opts, err := ctx.playerOptions(reconName)
			if err != nil {
				return err
			}
			fp, err := player.OpenFilePlayer(args[0], opts...)
			if err != nil {
				return err
			}
			defer fp.Close()

			store, err := catalog.Open(cfg.Paths.Catalog)
			if err != nil {
				return err
			}
			defer store.Close()

			logger := ctx.loggerFor("serialize").With(logging.String(logging.FieldStream, streamName))
			sampler := logging.NewProgressSampler(0)

			var (
				rows   []serializedRow
				diff   decoder.Diff
				stored int
				bytes  int64
			)
			for step := 0; !fp.EOF(); step++ {
				if err := cmd.Context().Err(); err != nil {
					logger.Warn("serialize interrupted", logging.Int("stored", stored))
					return err
				}
				prev := fp.Clone()
				chunk, err := fp.GetNextFrame()
				if err != nil {
					return err
				}
				shown, err := fp.Decode(chunk)
				if err != nil {
					return decodeError(fp.CurrentFrame(), err)
				}

				if step%every == 0 {
					diff, err = fp.DecoderDifference(prev)
				} else {
					err = fp.UpdateDifference(&diff, prev)
				}
				if err != nil {
					return err
				}

				sf := frame.New(chunk, prev.Fingerprint(), fp.Fingerprint())
				_, created, err := store.Put(cmd.Context(), catalog.Entry{
					Stream:        streamName,
					FrameIndex:    fp.CurrentFrame(),
					Width:         fp.Width(),
					Height:        fp.Height(),
					Reconstructor: reconName,
					Shown:         shown != nil,
					Frame:         sf,
				})
				if err != nil {
					return err
				}
				if created {
					stored++
					bytes += int64(sf.Size())
				}

				rows = append(rows, serializedRow{
					Index:              fp.CurrentFrame(),
					Shown:              shown != nil,
					Size:               len(chunk),
					Source:             sf.Source.String(),
					Target:             sf.Target.String(),
					ProbabilityChanges: diff.ProbabilityChanges(),
					References:         changedReferences(diff),
					Continuation:       continuationLabel(diff.Continuation),
					Stored:             created,
				})
				if sampler.ShouldLog(fp.FrameIndex(), fp.FrameCount(), "serialize") {
					logger.Info("serializing",
						logging.Int(logging.FieldFrameIndex, fp.CurrentFrame()),
						logging.String(logging.FieldFingerprint, sf.Target.Short()),
					)
				}
			}
			logger.Info("stream serialized",
				logging.Int("frames", len(rows)),
				logging.Int("stored", stored),
				logging.Int64(logging.FieldBytes, bytes),
			)

			if jsonOut {
				return writeJSON(cmd, rows)
			}
			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				table = append(table, []string{
					strconv.Itoa(r.Index),
					yesNo(r.Shown),
					humanize.IBytes(uint64(r.Size)),
					r.Source[:8] + "#" + r.Target[:8],
					strconv.Itoa(r.ProbabilityChanges),
					r.References,
					r.Continuation,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Shown", "Size", "Frame", "Probs", "Refs", "Continuation"},
				table,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "Stored %d of %d frames (%s) as %q in %s\n",
				stored, len(rows), humanize.IBytes(uint64(bytes)), streamName, store.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&streamName, "name", "", "Stream name in the catalog (default: file name)")
	cmd.Flags().IntVar(&every, "continuation-every", 0, "Recompute the continuation diff every N frames (default from config)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func changedReferences(d decoder.Diff) string {
	var refs []string
	if d.Last != nil {
		refs = append(refs, "last")
	}
	if d.Golden != nil {
		refs = append(refs, "golden")
	}
	if d.AltRef != nil {
		refs = append(refs, "altref")
	}
	if len(refs) == 0 {
		return "-"
	}
	return strings.Join(refs, ",")
}

func continuationLabel(c decoder.ContinuationDiff) string {
	state := "same"
	if c.Changed {
		state = "changed"
	}
	return state + "/" + c.Origin.String()
}
