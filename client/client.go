package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fittrack/apiserver/types"
)

// ErrSessionEnded is returned when the API rejects the session's token.
// Callers should drop the session and sign in again.
var ErrSessionEnded = errors.New("session ended")

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client issues REST calls against the API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client for the API at baseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type authResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var out authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, Session{}, http.MethodPost, "/auth/login", body, &out); err != nil {
		return Session{}, err
	}
	return Login(out.Token, out.User)
}

// Register creates an account and returns its session.
func (c *Client) Register(ctx context.Context, username, email, password, adminSecret string) (Session, error) {
	var out authResponse
	body := map[string]string{"username": username, "email": email, "password": password, "adminSecret": adminSecret}
	if err := c.do(ctx, Session{}, http.MethodPost, "/auth/register", body, &out); err != nil {
		return Session{}, err
	}
	return Login(out.Token, out.User)
}

// Me returns the session's user as the API currently sees it.
func (c *Client) Me(ctx context.Context, s Session) (types.User, error) {
	var user types.User
	err := c.do(ctx, s, http.MethodGet, "/auth/me", nil, &user)
	return user, err
}

// Recommendations lists every recommendation. Admin only.
func (c *Client) Recommendations(ctx context.Context, s Session) ([]types.RecommendationView, error) {
	var views []types.RecommendationView
	err := c.do(ctx, s, http.MethodGet, "/recommendations", nil, &views)
	return views, err
}

// UserRecommendations lists the recommendations addressed to userID.
func (c *Client) UserRecommendations(ctx context.Context, s Session, userID string) ([]types.RecommendationView, error) {
	var views []types.RecommendationView
	err := c.do(ctx, s, http.MethodGet, "/recommendations/"+url.PathEscape(userID), nil, &views)
	return views, err
}

// Completions lists every workout completion. Admin only.
func (c *Client) Completions(ctx context.Context, s Session) ([]types.CompletionView, error) {
	var views []types.CompletionView
	err := c.do(ctx, s, http.MethodGet, "/exercises/completed", nil, &views)
	return views, err
}

// CompletionRequest is the body of a completion.
type CompletionRequest struct {
	ExerciseID  string `json:"exerciseId"`
	WorkoutType string `json:"workoutType"`
	Target      string `json:"target"`
	Level       string `json:"level"`
}

// CompleteExercise records a completion for the session's user.
func (c *Client) CompleteExercise(ctx context.Context, s Session, req CompletionRequest) (types.WorkoutCompletion, error) {
	var completion types.WorkoutCompletion
	err := c.do(ctx, s, http.MethodPost, "/exercises/complete", req, &completion)
	return completion, err
}

// Progress returns the progress of userID.
func (c *Client) Progress(ctx context.Context, s Session, userID string) (types.Progress, error) {
	var p types.Progress
	err := c.do(ctx, s, http.MethodGet, "/progress/"+url.PathEscape(userID), nil, &p)
	return p, err
}

func (c *Client) do(ctx context.Context, s Session, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && s.Token != "" {
		return ErrSessionEnded
	}
	if resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
