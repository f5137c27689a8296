package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"alfalfa/internal/catalog"
	"alfalfa/internal/frame"
	"alfalfa/internal/logging"
	"alfalfa/internal/player"
)

type switchStep struct {
	Step      int    `json:"step"`
	Preferred string `json:"preferred"`
	Stream    string `json:"stream"`
	Frame     int    `json:"frame"`
	Shown     bool   `json:"shown"`
	State     string `json:"state"`
}

// switchReplay drives a client player through catalog frames. At every step
// it offers the next frame of the preferred stream first and falls back to
// any other frame the client can decode.
type switchReplay struct {
	store   *catalog.Store
	client  *player.FramePlayer
	logger  *slog.Logger
	streams map[string][]catalog.Entry
	last    map[string]int
	used    map[string]bool
}

func newSwitchCommand(ctx *commandContext) *cobra.Command {
	var target string
	var at int
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "switch <stream>",
		Short: "Replay catalog frames, switching to another stream where states allow it",
		Long: "Starts a client in the initial decoder state of <stream> and decodes catalog\n" +
			"frames one at a time. From step --at onwards the client prefers --to. A frame\n" +
			"of the preferred stream is only decoded when it starts from the client's\n" +
			"current state; otherwise any catalog frame that does is used instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := catalog.OpenReadOnly(cfg.Paths.Catalog)
			if err != nil {
				return err
			}
			defer store.Close()

			logger := ctx.loggerFor("switch")
			replay := &switchReplay{
				store:   store,
				logger:  logger,
				streams: map[string][]catalog.Entry{},
				last:    map[string]int{},
				used:    map[string]bool{},
			}
			first, err := replay.entries(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if first[0].Reconstructor != ctx.configuredReconstructor() {
				logger.Info("using the reconstructor the stream was serialized with",
					logging.String("reconstructor", first[0].Reconstructor))
			}
			opts, err := ctx.playerOptions(first[0].Reconstructor)
			if err != nil {
				return err
			}
			replay.client = player.NewFramePlayer(first[0].Width, first[0].Height, opts...)

			if limit <= 0 {
				limit = len(first)
			}
			var steps []switchStep
			preferred := args[0]
			for step := 0; step < limit; step++ {
				if target != "" && step == at {
					preferred = target
				}
				entry, ok, err := replay.next(cmd.Context(), preferred)
				if err != nil {
					return err
				}
				if !ok {
					logger.Info("no decodable frame left", logging.String(logging.FieldFingerprint, replay.client.Fingerprint().Short()))
					break
				}
				shown, err := replay.decode(entry)
				if err != nil {
					return err
				}
				steps = append(steps, switchStep{
					Step:      step,
					Preferred: preferred,
					Stream:    entry.Stream,
					Frame:     entry.FrameIndex,
					Shown:     shown,
					State:     replay.client.Fingerprint().String(),
				})
			}

			if jsonOut {
				return writeJSON(cmd, steps)
			}
			out := cmd.OutOrStdout()
			colors := shouldColorize(out)
			rows := make([][]string, 0, len(steps))
			for _, s := range steps {
				source := s.Stream
				if s.Stream != s.Preferred {
					source = colorize(s.Stream+" (fallback)", ansiYellow, colors)
				}
				rows = append(rows, []string{
					strconv.Itoa(s.Step),
					source,
					strconv.Itoa(s.Frame),
					yesNo(s.Shown),
					s.State[:16],
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Step", "Stream", "Frame", "Shown", "State"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "to", "", "Stream to switch to")
	cmd.Flags().IntVar(&at, "at", 0, "Step at which the client starts preferring --to")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of frames to decode (default: length of <stream>)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func (r *switchReplay) entries(ctx context.Context, stream string) ([]catalog.Entry, error) {
	if entries, ok := r.streams[stream]; ok {
		return entries, nil
	}
	entries, err := r.store.Stream(ctx, stream)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("stream %q: %w", stream, catalog.ErrNotFound)
	}
	r.streams[stream] = entries
	if _, ok := r.last[stream]; !ok {
		r.last[stream] = -1
	}
	return entries, nil
}

// next picks the entry to decode: the preferred stream's next frame when the
// client can decode it, otherwise the first unused catalog frame that starts
// from the client's state. Frames the preferred stream has already moved past
// are never offered again.
func (r *switchReplay) next(ctx context.Context, preferred string) (catalog.Entry, bool, error) {
	var offered []catalog.Entry
	entries, err := r.entries(ctx, preferred)
	if err != nil {
		return catalog.Entry{}, false, err
	}
	// A stream not decoded from yet is joined wherever its state matches.
	joining := r.last[preferred] < 0
	for _, e := range entries {
		if e.FrameIndex > r.last[preferred] {
			offered = append(offered, e)
			if !joining {
				break
			}
		}
	}
	candidates, err := r.store.Candidates(ctx, r.client.Fingerprint())
	if err != nil {
		return catalog.Entry{}, false, err
	}
	for _, c := range candidates {
		if !r.used[c.ID] {
			offered = append(offered, c)
		}
	}

	frames := make([]frame.SerializedFrame, len(offered))
	for i, e := range offered {
		frames[i] = e.Frame
	}
	idx, ok := r.client.SelectDecodable(frames)
	if !ok {
		return catalog.Entry{}, false, nil
	}
	return offered[idx], true, nil
}

// decode applies e to the client. A frame that does not reproduce its
// recorded target means the catalog was built with a different engine; the
// contract violation is reported as an error.
func (r *switchReplay) decode(e catalog.Entry) (shown bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var violation *player.ContractViolation
			if asErr, ok := rec.(error); ok && errors.As(asErr, &violation) {
				r.logger.Error("catalog frame does not match its fingerprints",
					logging.String(logging.FieldStream, e.Stream),
					logging.Int(logging.FieldFrameIndex, e.FrameIndex),
					logging.Error(violation),
				)
				err = fmt.Errorf("catalog frame %s@%d: %w", e.Stream, e.FrameIndex, violation)
				return
			}
			panic(rec)
		}
	}()

	raster, err := r.client.DecodeSerialized(e.Frame)
	if err != nil {
		return false, decodeError(e.FrameIndex, err)
	}
	r.used[e.ID] = true
	if last, ok := r.last[e.Stream]; !ok || e.FrameIndex > last {
		r.last[e.Stream] = e.FrameIndex
	}
	r.logger.Debug("catalog frame decoded",
		logging.String(logging.FieldStream, e.Stream),
		logging.Int(logging.FieldFrameIndex, e.FrameIndex),
		logging.String(logging.FieldFingerprint, e.Frame.Target.Short()),
	)
	return raster != nil, nil
}
