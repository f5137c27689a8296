package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"alfalfa/internal/decoder"
	"alfalfa/internal/player"
)

type diffSummary struct {
	From                int    `json:"from"`
	To                  int    `json:"to"`
	Base                string `json:"base"`
	Result              string `json:"result"`
	Identity            bool   `json:"identity"`
	ProbabilityChanges  int    `json:"probability_changes"`
	SegmentationChanged bool   `json:"segmentation_changed"`
	FilterChanged       bool   `json:"filter_adjustments_changed"`
	LastChanged         bool   `json:"last_changed"`
	GoldenChanged       bool   `json:"golden_changed"`
	AltRefChanged       bool   `json:"altref_changed"`
	ContinuationChanged bool   `json:"continuation_changed"`
	ContinuationOrigin  string `json:"continuation_origin"`
	Verified            bool   `json:"verified"`
}

func newDiffCommand(ctx *commandContext) *cobra.Command {
	var from, to int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "diff <file.ivf>",
		Short: "Show the decoder diff between the states after two frames",
		Long: "Plays the stream to frame --from, then on to frame --to, and prints the diff\n" +
			"that moves the first state to the second. The diff is applied to a copy of\n" +
			"the first state to confirm it reproduces the second.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if to < from {
				return fmt.Errorf("--to (%d) must not precede --from (%d)", to, from)
			}
			opts, err := ctx.playerOptions(ctx.configuredReconstructor())
			if err != nil {
				return err
			}
			fp, err := player.OpenFilePlayer(args[0], opts...)
			if err != nil {
				return err
			}
			defer fp.Close()

			if err := seekPast(fp, from); err != nil {
				return err
			}
			base := fp.Clone()
			if err := seekPast(fp, to); err != nil {
				return err
			}

			diff, err := fp.DecoderDifference(base)
			if err != nil {
				return err
			}
			check := base.Clone()
			if err := check.ApplyDifference(diff); err != nil {
				return err
			}

			summary := summarizeDiff(diff)
			summary.From, summary.To = from, to
			summary.Verified = check.Equal(fp.FramePlayer)
			if jsonOut {
				return writeJSON(cmd, summary)
			}

			out := cmd.OutOrStdout()
			colors := shouldColorize(out)
			fmt.Fprintf(out, "Base   (after frame %d): %s\n", from, summary.Base)
			fmt.Fprintf(out, "Result (after frame %d): %s\n", to, summary.Result)
			if summary.Identity {
				fmt.Fprintln(out, colorize("States are identical", ansiGreen, colors))
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Field", "Changed"},
				[][]string{
					{"probabilities", fmt.Sprintf("%d bytes", summary.ProbabilityChanges)},
					{"segmentation", yesNo(summary.SegmentationChanged)},
					{"filter adjustments", yesNo(summary.FilterChanged)},
					{"last", yesNo(summary.LastChanged)},
					{"golden", yesNo(summary.GoldenChanged)},
					{"altref", yesNo(summary.AltRefChanged)},
					{"continuation", fmt.Sprintf("%s (%s)", yesNo(summary.ContinuationChanged), summary.ContinuationOrigin)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			if summary.Verified {
				fmt.Fprintln(out, colorize("Diff reproduces the result state", ansiGreen, colors))
			} else {
				fmt.Fprintln(out, colorize("Diff does NOT reproduce the result state", ansiYellow, colors))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&from, "from", -1, "Frame index of the base state (-1 is the state before the first key frame)")
	cmd.Flags().IntVar(&to, "to", 0, "Frame index of the result state")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// seekPast decodes frames until the frame at index has been consumed. The
// player skips frames before the first key frame, so the state reached may
// lie past index.
func seekPast(fp *player.FilePlayer, index int) error {
	for fp.CurrentFrame() < index {
		chunk, err := fp.GetNextFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("frame %d is beyond the end of the stream (%d frames)", index, fp.FrameCount())
			}
			return err
		}
		if _, err := fp.Decode(chunk); err != nil {
			return decodeError(fp.CurrentFrame(), err)
		}
	}
	return nil
}

func summarizeDiff(d decoder.Diff) diffSummary {
	return diffSummary{
		Base:                d.Base.String(),
		Result:              d.Result.String(),
		Identity:            d.IsIdentity(),
		ProbabilityChanges:  d.ProbabilityChanges(),
		SegmentationChanged: d.Segmentation != nil,
		FilterChanged:       d.FilterAdjustments != nil,
		LastChanged:         d.Last != nil,
		GoldenChanged:       d.Golden != nil,
		AltRefChanged:       d.AltRef != nil,
		ContinuationChanged: d.Continuation.Changed,
		ContinuationOrigin:  d.Continuation.Origin.String(),
	}
}
