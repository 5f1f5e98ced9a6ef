package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const streamlinkProbeTimeout = 30 * time.Second

// streamlinkStrategy asks streamlink for the available qualities and
// then resolves the chosen one to a direct stream URL.
type streamlinkStrategy struct {
	binary string
}

func NewStreamlinkStrategy() Strategy { return &streamlinkStrategy{binary: "streamlink"} }

func (s *streamlinkStrategy) Name() string { return "streamlink" }

// Quality preference mirrors what the pipeline can afford to decode.
var preferredQualities = []string{"480p", "360p", "720p", "best"}

type streamlinkProbe struct {
	Metadata struct {
		Title string `json:"title"`
	} `json:"metadata"`
	Streams map[string]json.RawMessage `json:"streams"`
}

func (s *streamlinkStrategy) Resolve(ctx context.Context, url string) (*Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, streamlinkProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, s.binary, "--json", url).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%w: streamlink: %s", ErrStrategyUnavailable,
				strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("%w: streamlink: %v", ErrStrategyUnavailable, err)
	}

	var probe streamlinkProbe
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("%w: streamlink: parse probe output: %v", ErrStrategyUnavailable, err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("%w: streamlink: no streams found", ErrStrategyUnavailable)
	}

	quality := ""
	for _, q := range preferredQualities {
		if _, ok := probe.Streams[q]; ok {
			quality = q
			break
		}
	}
	if quality == "" {
		for q := range probe.Streams {
			quality = q
			break
		}
	}

	urlOut, err := exec.CommandContext(ctx, s.binary, "--stream-url", url, quality).Output()
	if err != nil {
		return nil, fmt.Errorf("%w: streamlink: resolve %s url: %v", ErrStrategyUnavailable, quality, err)
	}
	mediaURL := strings.TrimSpace(string(urlOut))
	if mediaURL == "" {
		return nil, fmt.Errorf("%w: streamlink: empty stream url", ErrStrategyUnavailable)
	}

	title := probe.Metadata.Title
	if title == "" {
		title = "Live Stream"
	}
	return &Handle{
		VideoID:  VideoID(url),
		PageURL:  url,
		MediaURL: mediaURL,
		Title:    title,
		// streamlink primarily serves live streams.
		IsLive: true,
	}, nil
}
