package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"alfalfa/internal/ivf"
	"alfalfa/internal/vp8"
)

type frameInfo struct {
	Index     int    `json:"index"`
	Timestamp uint64 `json:"timestamp"`
	Size      int    `json:"size"`
	KeyFrame  bool   `json:"key_frame"`
	Shown     bool   `json:"shown"`
	Error     string `json:"error,omitempty"`
}

type streamInfo struct {
	Path       string      `json:"path"`
	FourCC     string      `json:"fourcc"`
	Width      uint16      `json:"width"`
	Height     uint16      `json:"height"`
	Rate       uint32      `json:"rate"`
	Scale      uint32      `json:"scale"`
	FrameCount int         `json:"frame_count"`
	KeyFrames  int         `json:"key_frames"`
	Hidden     int         `json:"hidden_frames"`
	Bytes      int64       `json:"bytes"`
	Frames     []frameInfo `json:"frames,omitempty"`
}

func newInfoCommand(ctx *commandContext) *cobra.Command {
	var showFrames bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "info <file.ivf>",
		Short: "Describe an IVF file without decoding it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := inspectStream(args[0])
			if err != nil {
				return err
			}
			ctx.loggerFor("info").Debug("stream inspected",
				"path", info.Path,
				"frames", info.FrameCount,
			)
			if jsonOut {
				if !showFrames {
					info.Frames = nil
				}
				return writeJSON(cmd, info)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:       %s\n", info.Path)
			fmt.Fprintf(out, "Codec:      %s\n", info.FourCC)
			fmt.Fprintf(out, "Size:       %dx%d\n", info.Width, info.Height)
			fmt.Fprintf(out, "Rate:       %d/%d\n", info.Rate, info.Scale)
			fmt.Fprintf(out, "Frames:     %d (%d key, %d hidden)\n", info.FrameCount, info.KeyFrames, info.Hidden)
			fmt.Fprintf(out, "Payload:    %s\n", humanize.IBytes(uint64(info.Bytes)))
			if !showFrames || len(info.Frames) == 0 {
				return nil
			}

			rows := make([][]string, 0, len(info.Frames))
			for _, f := range info.Frames {
				kind := "inter"
				if f.KeyFrame {
					kind = "key"
				}
				if f.Error != "" {
					kind = "invalid"
				}
				rows = append(rows, []string{
					strconv.Itoa(f.Index),
					strconv.FormatUint(f.Timestamp, 10),
					humanize.IBytes(uint64(f.Size)),
					kind,
					yesNo(f.Shown),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "PTS", "Size", "Type", "Shown"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showFrames, "frames", false, "List every frame")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func inspectStream(path string) (streamInfo, error) {
	r, err := ivf.Open(path)
	if err != nil {
		return streamInfo{}, err
	}
	defer r.Close()

	hdr := r.Header()
	info := streamInfo{
		Path:       path,
		FourCC:     hdr.FourCC,
		Width:      hdr.Width,
		Height:     hdr.Height,
		Rate:       hdr.Rate,
		Scale:      hdr.Scale,
		FrameCount: r.FrameCount(),
		Frames:     make([]frameInfo, 0, r.FrameCount()),
	}
	for i := range r.FrameCount() {
		chunk, err := r.Frame(i)
		if err != nil {
			return streamInfo{}, err
		}
		ts, err := r.Timestamp(i)
		if err != nil {
			return streamInfo{}, err
		}
		f := frameInfo{Index: i, Timestamp: ts, Size: len(chunk)}
		info.Bytes += int64(len(chunk))
		tag, err := vp8.ParseFrameTag(chunk)
		if err != nil {
			f.Error = err.Error()
		} else {
			f.KeyFrame = tag.KeyFrame
			f.Shown = tag.ShowFrame
			if tag.KeyFrame {
				info.KeyFrames++
			}
			if !tag.ShowFrame {
				info.Hidden++
			}
		}
		info.Frames = append(info.Frames, f)
	}
	return info, nil
}
