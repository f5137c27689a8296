package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"alfalfa/internal/decoder"
	"alfalfa/internal/logging"
	"alfalfa/internal/player"
)

type shownFrame struct {
	Index       int    `json:"index"`
	Size        int    `json:"size"`
	Fingerprint string `json:"fingerprint"`
	Raster      string `json:"raster"`
}

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "play <file.ivf>",
		Short: "Decode a stream and print the state after every shown frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := ctx.playerOptions(ctx.configuredReconstructor())
			if err != nil {
				return err
			}
			fp, err := player.OpenFilePlayer(args[0], opts...)
			if err != nil {
				return err
			}
			defer fp.Close()

			frames, err := playShown(fp, limit, ctx.loggerFor("play").With(logging.String(logging.FieldStream, args[0])))
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, frames)
			}
			rows := make([][]string, 0, len(frames))
			for _, f := range frames {
				rows = append(rows, []string{
					strconv.Itoa(f.Index),
					humanize.IBytes(uint64(f.Size)),
					f.Fingerprint[:16],
					f.Raster[:16],
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Size", "State", "Raster"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "Final state: %s\n", fp)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Stop after this many shown frames (0 plays everything)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// playShown advances fp until the end of the stream or until limit frames
// have been shown. Trailing hidden frames are reported in the log only.
func playShown(fp *player.FilePlayer, limit int, logger *slog.Logger) ([]shownFrame, error) {
	sampler := logging.NewProgressSampler(0)
	var frames []shownFrame
	for limit <= 0 || len(frames) < limit {
		r, err := fp.Advance()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, player.ErrHiddenFramesAtEOF) {
			logger.Warn("stream ends with hidden frames", logging.Int(logging.FieldFrameIndex, fp.CurrentFrame()))
			break
		}
		if err != nil {
			return frames, decodeError(fp.CurrentFrame(), err)
		}
		size, err := fp.OriginalSize()
		if err != nil {
			return frames, err
		}
		frames = append(frames, shownFrame{
			Index:       fp.CurrentFrame(),
			Size:        size,
			Fingerprint: fp.Fingerprint().String(),
			Raster:      r.Hash().String(),
		})
		if sampler.ShouldLog(fp.FrameIndex(), fp.FrameCount(), "play") {
			logger.Info("playing",
				logging.Int(logging.FieldFrameIndex, fp.CurrentFrame()),
				logging.Int("frame_count", fp.FrameCount()),
			)
		}
	}
	return frames, nil
}

func decodeError(index int, err error) error {
	if errors.Is(err, decoder.ErrInterPrediction) {
		return fmt.Errorf("frame %d: %w (use --reconstructor synthetic to follow inter frames)", index, err)
	}
	return fmt.Errorf("frame %d: %w", index, err)
}
