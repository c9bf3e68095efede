package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"geoattend/internal/attendance"
)

var (
	// ErrNetwork marks transient transport failures; the user may retry.
	ErrNetwork = errors.New("network error")

	// ErrMalformedResponse marks an unexpected response shape from the
	// server. Treated as a hard failure, never blindly retried.
	ErrMalformedResponse = errors.New("malformed server response")
)

// APIClient submits attendance over the service's REST API. It implements
// Submitter.
type APIClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewAPIClient creates a client with a bounded request timeout.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type submitPayload struct {
	SessionID  string  `json:"session_id"`
	Code       string  `json:"code"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	DeviceHash string  `json:"device_hash"`
	DeviceInfo any     `json:"device_info,omitempty"`
}

type submitResponse struct {
	AttendanceID string     `json:"attendance_id"`
	RecordedAt   *time.Time `json:"recorded_at"`
	Status       string     `json:"status"`
	Error        string     `json:"error"`
	ErrorCode    string     `json:"error_code"`
	DistanceM    float64    `json:"distance_m"`
	RadiusM      float64    `json:"radius_m"`
}

// Submit posts the submission and maps the outcome onto the shared error
// taxonomy. Validator rejections surface verbatim.
func (c *APIClient) Submit(ctx context.Context, req Request) (attendance.Result, error) {
	body, err := json.Marshal(submitPayload{
		SessionID:  req.SessionID,
		Code:       req.Code,
		Latitude:   req.Location.Latitude,
		Longitude:  req.Location.Longitude,
		DeviceHash: req.DeviceHash,
		DeviceInfo: req.Signals,
	})
	if err != nil {
		return attendance.Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/attendance", bytes.NewReader(body))
	if err != nil {
		return attendance.Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return attendance.Result{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return attendance.Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if resp.StatusCode >= 300 {
		return attendance.Result{}, decodeRejection(out, resp.StatusCode)
	}
	if out.AttendanceID == "" || out.RecordedAt == nil || out.Status == "" {
		return attendance.Result{}, ErrMalformedResponse
	}
	return attendance.Result{
		AttendanceID: out.AttendanceID,
		RecordedAt:   *out.RecordedAt,
		Status:       out.Status,
	}, nil
}

// decodeRejection maps the server's stable error codes back onto the
// validator's sentinel errors.
func decodeRejection(out submitResponse, statusCode int) error {
	switch out.ErrorCode {
	case "session_not_active":
		return attendance.ErrSessionNotActive
	case "invalid_code":
		return attendance.ErrInvalidCode
	case "already_marked":
		return attendance.ErrAlreadyMarked
	case "out_of_range":
		return &attendance.OutOfRangeError{
			DistanceMeters: out.DistanceM,
			RadiusMeters:   out.RadiusM,
		}
	}
	if out.Error != "" {
		return errors.New(out.Error)
	}
	return fmt.Errorf("%w: status %d with no error body", ErrMalformedResponse, statusCode)
}
