package stream

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// dataAPIStrategy verifies the video through the YouTube Data API v3.
// It yields a page-URL handle only: extraction of such a handle goes
// through yt-dlp per chunk, since the Data API never exposes media URLs.
type dataAPIStrategy struct {
	apiKey string
}

func NewDataAPIStrategy(apiKey string) Strategy { return &dataAPIStrategy{apiKey: apiKey} }

func (s *dataAPIStrategy) Name() string { return "data-api" }

func (s *dataAPIStrategy) Resolve(ctx context.Context, url string) (*Handle, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("%w: data-api: no API key configured", ErrStrategyUnavailable)
	}
	id := VideoID(url)
	if id == "" {
		return nil, fmt.Errorf("%w: data-api: no video ID in %q", ErrStrategyUnavailable, url)
	}

	svc, err := youtube.NewService(ctx, option.WithAPIKey(s.apiKey))
	if err != nil {
		return nil, fmt.Errorf("%w: data-api: init service: %v", ErrStrategyUnavailable, err)
	}

	resp, err := svc.Videos.List([]string{"snippet", "liveStreamingDetails"}).
		Id(id).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: data-api: videos.list: %v", ErrStrategyUnavailable, err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: data-api: video %s not found", ErrStrategyUnavailable, id)
	}

	v := resp.Items[0]
	return &Handle{
		VideoID: id,
		PageURL: url,
		Title:   v.Snippet.Title,
		IsLive:  v.Snippet.LiveBroadcastContent == "live",
	}, nil
}
