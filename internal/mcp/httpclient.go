package mcp

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

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
)

// HTTPClient implements DataSource by calling the liftlog REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server. The server scopes every call to the
// token's subject, so the userID arguments are not sent.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// statusError is a non-200 response.
type statusError struct {
	path string
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("httpclient: %s returned %d: %s", e.path, e.code, e.body)
}

// NewHTTPClient creates an HTTPClient targeting the given base URL. A
// non-empty token is sent as a bearer credential.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &statusError{path: path, code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

// Me returns the user the token resolves to.
func (c *HTTPClient) Me(ctx context.Context) (models.User, error) {
	var u models.User
	err := c.get(ctx, "/api/v1/me", nil, &u)
	return u, err
}

func (c *HTTPClient) ListWorkouts(ctx context.Context, _ int64) ([]models.WorkoutSummary, error) {
	var workouts []models.WorkoutSummary
	if err := c.get(ctx, "/api/v1/workouts", nil, &workouts); err != nil {
		return nil, err
	}
	return workouts, nil
}

func (c *HTTPClient) ListWorkoutExercises(ctx context.Context, workoutID int64) ([]models.WorkoutExercise, error) {
	var exercises []models.WorkoutExercise
	path := "/api/v1/workouts/" + strconv.FormatInt(workoutID, 10) + "/exercises"
	if err := c.get(ctx, path, nil, &exercises); err != nil {
		return nil, err
	}
	return exercises, nil
}

func (c *HTTPClient) ListExerciseClasses(ctx context.Context, _ int64, includeArchived bool) ([]models.ExerciseClass, error) {
	params := url.Values{}
	if includeArchived {
		params.Set("archived", "true")
	}
	var classes []models.ExerciseClass
	if err := c.get(ctx, "/api/v1/exercise-classes", params, &classes); err != nil {
		return nil, err
	}
	return classes, nil
}

func (c *HTTPClient) ListWorkoutSessions(ctx context.Context, _ int64, limit int) ([]models.WorkoutSession, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var sessions []models.WorkoutSession
	if err := c.get(ctx, "/api/v1/history", params, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *HTTPClient) GetWorkoutSession(ctx context.Context, sessionID int64) (*models.SessionDetail, bool, error) {
	var detail models.SessionDetail
	err := c.get(ctx, "/api/v1/history/"+strconv.FormatInt(sessionID, 10), nil, &detail)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &detail, true, nil
}

func (c *HTTPClient) GetExerciseVolume(ctx context.Context, _ int64, since time.Time) ([]storage.ExerciseVolume, error) {
	params := url.Values{}
	params.Set("since", since.Format(time.RFC3339))
	var volume []storage.ExerciseVolume
	if err := c.get(ctx, "/api/v1/stats/volume", params, &volume); err != nil {
		return nil, err
	}
	return volume, nil
}

func (c *HTTPClient) ActiveSession(ctx context.Context, _ int64) (session.State, error) {
	var st session.State
	err := c.get(ctx, "/api/v1/session", nil, &st)
	return st, err
}
