// Package catalog adapts the external exercise catalog. Lookups are
// bounded by a timeout and their failures are reported as ErrUpstream so
// callers can degrade per record.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fittrack/apiserver/config"
	"github.com/fittrack/apiserver/types"
)

var (
	// ErrNotFound is returned when the catalog has no exercise with the id.
	ErrNotFound = errors.New("catalog: exercise not found")
	// ErrUpstream is returned when the catalog cannot be reached or answers with an error.
	ErrUpstream = errors.New("catalog: upstream unavailable")
)

const maxResponseBytes = 8 << 20

// Page limits a list query. Zero Limit leaves the catalog default.
type Page struct {
	Limit  int
	Offset int
}

// Client talks to an ExerciseDB-compatible HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	apiHost string
	http    *http.Client
}

// NewClient constructs a Client from config.
func NewClient(cfg config.CatalogConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		apiHost: cfg.APIHost,
		http:    &http.Client{Timeout: timeout},
	}
}

// ByID fetches a single exercise.
func (c *Client) ByID(ctx context.Context, id string) (types.Exercise, error) {
	var item exerciseDTO
	if err := c.get(ctx, "/exercises/exercise/"+url.PathEscape(id), Page{}, &item); err != nil {
		return types.Exercise{}, err
	}
	if strings.TrimSpace(item.ID) == "" {
		return types.Exercise{}, ErrNotFound
	}
	return item.toExercise(), nil
}

// List returns a page of the whole catalog.
func (c *Client) List(ctx context.Context, page Page) ([]types.Exercise, error) {
	return c.list(ctx, "/exercises", page)
}

// ByBodyPart returns exercises filed under the body part.
func (c *Client) ByBodyPart(ctx context.Context, bodyPart string, page Page) ([]types.Exercise, error) {
	return c.list(ctx, "/exercises/bodyPart/"+url.PathEscape(bodyPart), page)
}

// ByName returns exercises whose name matches.
func (c *Client) ByName(ctx context.Context, name string, page Page) ([]types.Exercise, error) {
	return c.list(ctx, "/exercises/name/"+url.PathEscape(strings.ToLower(name)), page)
}

// BodyParts returns the catalog's body part categories.
func (c *Client) BodyParts(ctx context.Context) ([]string, error) {
	var parts []string
	if err := c.get(ctx, "/exercises/bodyPartList", Page{}, &parts); err != nil {
		return nil, err
	}
	if parts == nil {
		parts = []string{}
	}
	return parts, nil
}

// FetchMedia downloads the media at rawURL.
func (c *Client) FetchMedia(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", ErrNotFound
	}
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: media status %d", ErrUpstream, resp.StatusCode)
	}
	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func (c *Client) list(ctx context.Context, path string, page Page) ([]types.Exercise, error) {
	var items []exerciseDTO
	if err := c.get(ctx, path, page, &items); err != nil {
		return nil, err
	}
	out := make([]types.Exercise, 0, len(items))
	for _, item := range items {
		out = append(out, item.toExercise())
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, page Page, dst any) error {
	u := c.baseURL + path
	if page.Limit > 0 || page.Offset > 0 {
		q := url.Values{}
		if page.Limit > 0 {
			q.Set("limit", strconv.Itoa(page.Limit))
		}
		if page.Offset > 0 {
			q.Set("offset", strconv.Itoa(page.Offset))
		}
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
	}
	if c.apiHost != "" {
		req.Header.Set("X-RapidAPI-Host", c.apiHost)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrUpstream, err)
	}
	if len(data) > maxResponseBytes {
		return nil, fmt.Errorf("%w: response too large", ErrUpstream)
	}
	return data, nil
}

type exerciseDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BodyPart  string `json:"bodyPart"`
	Target    string `json:"target"`
	Equipment string `json:"equipment"`
	GifURL    string `json:"gifUrl"`
}

func (d exerciseDTO) toExercise() types.Exercise {
	return types.Exercise{
		ID:        d.ID,
		Name:      d.Name,
		BodyPart:  d.BodyPart,
		Target:    d.Target,
		Equipment: d.Equipment,
		GifURL:    d.GifURL,
	}
}
