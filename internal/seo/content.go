package seo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound reports that the content API has no clip or feed with the
// requested id.
var ErrNotFound = errors.New("content not found")

// Clip is the share metadata for a single clip.
type Clip struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Quote        string  `json:"quote"`
	EpisodeTitle string  `json:"episodeTitle"`
	PodcastName  string  `json:"podcastName"`
	FeedID       string  `json:"feedId"`
	ImageURL     string  `json:"imageUrl"`
	AudioURL     string  `json:"audioUrl"`
	StartTime    float64 `json:"startTime"`
	EndTime      float64 `json:"endTime"`
	Published    string  `json:"publishedDate"`
}

// Feed is the share metadata for a podcast feed.
type Feed struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	ImageURL    string `json:"imageUrl"`
	FeedURL     string `json:"url"`
}

// Content looks up share metadata.
type Content interface {
	Clip(ctx context.Context, id string) (*Clip, error)
	Feed(ctx context.Context, id string) (*Feed, error)
}

var _ Content = (*ContentClient)(nil)

// ContentClient reads metadata from the public content API.
type ContentClient struct {
	baseURL *url.URL
	http    *http.Client
}

const (
	contentTimeout  = 5 * time.Second
	maxContentBody  = 1 << 20
	pathClip        = "/api/clips/"
	pathFeed        = "/api/feeds/"
	contentUAHeader = "jamie-seo/0.1"
)

// NewContentClient builds a client for the API rooted at base. A nil hc uses
// a client with a 5s timeout.
func NewContentClient(base string, hc *http.Client) (*ContentClient, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil, fmt.Errorf("content api url is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse content api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("content api url %q: scheme must be http or https", base)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	if hc == nil {
		hc = &http.Client{Timeout: contentTimeout}
	}
	return &ContentClient{baseURL: u, http: hc}, nil
}

// Clip fetches a clip by id.
func (c *ContentClient) Clip(ctx context.Context, id string) (*Clip, error) {
	var clip Clip
	if err := c.get(ctx, pathClip+url.PathEscape(id), &clip); err != nil {
		return nil, fmt.Errorf("fetch clip %s: %w", id, err)
	}
	if clip.ID == "" {
		clip.ID = id
	}
	return &clip, nil
}

// Feed fetches a feed by id.
func (c *ContentClient) Feed(ctx context.Context, id string) (*Feed, error) {
	var feed Feed
	if err := c.get(ctx, pathFeed+url.PathEscape(id), &feed); err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", id, err)
	}
	if feed.ID == "" {
		feed.ID = id
	}
	return &feed, nil
}

func (c *ContentClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", contentUAHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxContentBody))
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxContentBody))
		return fmt.Errorf("content api returned %s", resp.Status)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxContentBody)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
