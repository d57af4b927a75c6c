// Package mediaclient fetches song media and lyric sheets for the playback
// engine, either from the backend API or from a local directory.
package mediaclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/naver-ai/elmi-monorepo/internal/lyrics"
)

// Source is everything the player needs from a media collaborator. The id
// passed to Sheet is a project id for the API client and a song id for a
// local directory.
type Source interface {
	Audio(ctx context.Context, songID string) ([]byte, error)
	Samples(ctx context.Context, songID string) ([]float64, error)
	Sheet(ctx context.Context, id string) (*lyrics.Sheet, error)
}

// FetchError reports a failed retrieval of media for a song.
type FetchError struct {
	SongID     string
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s for %s: HTTP %d", e.Op, e.SongID, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s for %s: %v", e.Op, e.SongID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Song is the song record of a project.
type Song struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Artist           string `json:"artist"`
	Description      string `json:"description,omitempty"`
	CoverImageStored bool   `json:"cover_image_stored"`
}

// ProjectDetail is the subset of the project detail payload the player
// consumes.
type ProjectDetail struct {
	ID             string             `json:"id"`
	LastAccessedAt string             `json:"last_accessed_at,omitempty"`
	Song           Song               `json:"song"`
	Verses         []lyrics.Verse     `json:"verses"`
	Lines          []lyrics.LyricLine `json:"lines"`
}

// Sheet returns the lyric sheet of the project's song.
func (p *ProjectDetail) Sheet() *lyrics.Sheet {
	return &lyrics.Sheet{SongID: p.Song.ID, Verses: p.Verses, Lines: p.Lines}
}

// Client talks to the backend REST API. Each request is attempted once.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates an API client. baseURL is the app root, e.g.
// "http://localhost:3000/api/v1/app".
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) get(ctx context.Context, songID, op, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, &FetchError{SongID: songID, Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{SongID: songID, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{SongID: songID, Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			SongID:     songID,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	}
	return body, nil
}

// Audio downloads the encoded audio of a song.
func (c *Client) Audio(ctx context.Context, songID string) ([]byte, error) {
	return c.get(ctx, songID, "audio", "/media/songs/"+url.PathEscape(songID)+"/audio")
}

// Samples downloads the waveform amplitudes of a song.
func (c *Client) Samples(ctx context.Context, songID string) ([]float64, error) {
	body, err := c.get(ctx, songID, "samples", "/media/songs/"+url.PathEscape(songID)+"/audio/samples")
	if err != nil {
		return nil, err
	}
	var samples []float64
	if err := json.Unmarshal(body, &samples); err != nil {
		return nil, &FetchError{SongID: songID, Op: "samples", Err: fmt.Errorf("decode samples: %w", err)}
	}
	return samples, nil
}

// Project downloads a project detail.
func (c *Client) Project(ctx context.Context, projectID string) (*ProjectDetail, error) {
	body, err := c.get(ctx, "", "project "+projectID, "/projects/"+url.PathEscape(projectID))
	if err != nil {
		return nil, err
	}
	var p ProjectDetail
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", projectID, err)
	}
	return &p, nil
}

// Sheet fetches the project and returns its lyric sheet.
func (c *Client) Sheet(ctx context.Context, projectID string) (*lyrics.Sheet, error) {
	p, err := c.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return p.Sheet(), nil
}
