package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const ytdlpProbeTimeout = 30 * time.Second

// ytdlpStrategy probes the video with `yt-dlp -J` and picks a directly
// playable format. For live streams it prefers audio-only formats, then
// the lowest-resolution video; for finite videos it takes yt-dlp's
// preferred format.
type ytdlpStrategy struct {
	binary string
}

func NewYtdlpStrategy() Strategy { return &ytdlpStrategy{binary: "yt-dlp"} }

func (s *ytdlpStrategy) Name() string { return "yt-dlp" }

type ytdlpInfo struct {
	Title   string        `json:"title"`
	IsLive  bool          `json:"is_live"`
	URL     string        `json:"url"`
	Formats []ytdlpFormat `json:"formats"`
}

type ytdlpFormat struct {
	URL    string  `json:"url"`
	ACodec string  `json:"acodec"`
	VCodec string  `json:"vcodec"`
	ABR    float64 `json:"abr"`
	Height int     `json:"height"`
}

func (s *ytdlpStrategy) Resolve(ctx context.Context, url string) (*Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, ytdlpProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.binary,
		"-J", "--no-warnings", "--no-playlist", url)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%w: yt-dlp: %s", ErrStrategyUnavailable,
				strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("%w: yt-dlp: %v", ErrStrategyUnavailable, err)
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("%w: yt-dlp: parse probe output: %v", ErrStrategyUnavailable, err)
	}

	mediaURL := pickFormat(info)
	if mediaURL == "" {
		return nil, fmt.Errorf("%w: yt-dlp: no playable format", ErrStrategyUnavailable)
	}

	return &Handle{
		VideoID:  VideoID(url),
		PageURL:  url,
		MediaURL: mediaURL,
		Title:    info.Title,
		IsLive:   info.IsLive,
	}, nil
}

func pickFormat(info ytdlpInfo) string {
	if !info.IsLive {
		if info.URL != "" {
			return info.URL
		}
		if len(info.Formats) > 0 {
			return info.Formats[len(info.Formats)-1].URL
		}
		return ""
	}

	// Live edge: favor the cheapest stream that still carries audio.
	var bestAudio *ytdlpFormat
	var lowVideo *ytdlpFormat
	for i := range info.Formats {
		f := &info.Formats[i]
		if f.URL == "" || f.ACodec == "none" {
			continue
		}
		if f.VCodec == "none" {
			if bestAudio == nil || f.ABR > bestAudio.ABR {
				bestAudio = f
			}
			continue
		}
		if f.Height > 0 && (lowVideo == nil || f.Height < lowVideo.Height) {
			lowVideo = f
		}
	}
	switch {
	case bestAudio != nil:
		return bestAudio.URL
	case lowVideo != nil:
		return lowVideo.URL
	case info.URL != "":
		return info.URL
	}
	return ""
}
