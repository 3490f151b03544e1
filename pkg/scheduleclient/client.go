// Package scheduleclient talks to the timetable REST API on behalf of
// editing tools.
package scheduleclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 64 << 10

// PersistenceError is the server's rejection of a request, kept verbatim.
type PersistenceError struct {
	Status  int             `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Code == "" {
		return fmt.Sprintf("schedule service returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("schedule service returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Conflict decodes the overlapping entry when the server rejected an overlap.
func (e *PersistenceError) Conflict() (*models.ScheduleConflict, bool) {
	if e == nil || e.Code != appErrors.ErrOverlapConflict.Code || len(e.Details) == 0 {
		return nil, false
	}
	var conflict models.ScheduleConflict
	if err := json.Unmarshal(e.Details, &conflict); err != nil {
		return nil, false
	}
	return &conflict, true
}

// Client is a JSON client for the group schedule endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithToken sends the bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New builds a client for baseURL, e.g. "http://localhost:8080/api/v1".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: DefaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultHTTPClient returns the client used when none is supplied.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

type schedulePayload struct {
	Weekday   models.Weekday        `json:"weekday"`
	StartTime string                `json:"startTime"`
	EndTime   string                `json:"endTime"`
	SubjectID string                `json:"subjectId"`
	TeacherID *string               `json:"teacherId,omitempty"`
	RoomID    *string               `json:"roomId,omitempty"`
	Mode      models.ScheduleMode   `json:"mode,omitempty"`
	Status    models.ScheduleStatus `json:"status,omitempty"`
}

func payloadFrom(entry models.ScheduleEntry) schedulePayload {
	return schedulePayload{
		Weekday:   entry.Weekday,
		StartTime: entry.StartTime,
		EndTime:   entry.EndTime,
		SubjectID: entry.SubjectID,
		TeacherID: entry.TeacherID,
		RoomID:    entry.RoomID,
		Mode:      entry.Mode,
		Status:    entry.Status,
	}
}

type envelope struct {
	Data  json.RawMessage   `json:"data"`
	Error *PersistenceError `json:"error"`
}

// List fetches a group's entries, optionally for one weekday.
func (c *Client) List(ctx context.Context, groupID string, day *models.Weekday) ([]models.ScheduleEntry, error) {
	path := c.schedulesPath(groupID)
	if day != nil {
		path += "?" + url.Values{"day": {strconv.Itoa(int(*day))}}.Encode()
	}
	var entries []models.ScheduleEntry
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Create stores a new entry for entry.GroupID.
func (c *Client) Create(ctx context.Context, entry models.ScheduleEntry) (*models.ScheduleEntry, error) {
	var created models.ScheduleEntry
	if err := c.do(ctx, http.MethodPost, c.schedulesPath(entry.GroupID), payloadFrom(entry), &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces the entry identified by entry.ID.
func (c *Client) Update(ctx context.Context, entry models.ScheduleEntry) (*models.ScheduleEntry, error) {
	if entry.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entry id is required for update")
	}
	var updated models.ScheduleEntry
	path := c.schedulesPath(entry.GroupID) + "/" + url.PathEscape(entry.ID)
	if err := c.do(ctx, http.MethodPut, path, payloadFrom(entry), &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes an entry.
func (c *Client) Delete(ctx context.Context, groupID, id string) error {
	return c.do(ctx, http.MethodDelete, c.schedulesPath(groupID)+"/"+url.PathEscape(id), nil, nil)
}

// Export downloads the rendered timetable of a group. The file name comes from
// the Content-Disposition header when the server sends one.
func (c *Client) Export(ctx context.Context, groupID, format, locale string) (string, []byte, error) {
	query := url.Values{}
	if format != "" {
		query.Set("format", format)
	}
	if locale != "" {
		query.Set("lang", locale)
	}
	path := c.schedulesPath(groupID) + "/export"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read export: %w", err)
	}
	filename := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}
	if filename == "" {
		filename = fmt.Sprintf("timetable_%s.%s", groupID, strings.ToLower(format))
	}
	return filename, data, nil
}

func (c *Client) schedulesPath(groupID string) string {
	return "/groups/" + url.PathEscape(groupID) + "/schedules"
}

// do performs a JSON request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	return decodeData(raw, out)
}

// send issues the request. Transport failures and non-2xx responses become
// PERSISTENCE_ERROR values wrapping a *PersistenceError; on success the caller
// owns the response body.
func (c *Client) send(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	if c.baseURL == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule service base url is not configured")
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "schedule service unreachable")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, rejection(resp)
	}
	return resp, nil
}

// decodeData accepts the {data: ...} envelope or a bare JSON payload.
func decodeData(raw []byte, out interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Data != nil {
			trimmed = env.Data
		}
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func rejection(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	rejected := &PersistenceError{Status: resp.StatusCode}
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil {
		rejected.Code = env.Error.Code
		rejected.Message = env.Error.Message
		rejected.Details = env.Error.Details
	}
	if rejected.Message == "" {
		rejected.Message = strings.TrimSpace(string(raw))
	}
	if rejected.Message == "" {
		rejected.Message = http.StatusText(resp.StatusCode)
	}
	return appErrors.Wrap(rejected, appErrors.ErrPersistence.Code, resp.StatusCode, rejected.Message)
}
