package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"utkarsh/portal/internal/models"
)

// HTTPDirectory calls the identity service's JSON API. Both endpoints take
// the user's own credentials; the service exposes no privileged lookup.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

func NewHTTPDirectory(baseURL string, timeout time.Duration) *HTTPDirectory {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDirectory{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyResponse struct {
	Group string `json:"group"`
}

func (d *HTTPDirectory) Verify(ctx context.Context, username, password string) (models.UserGroup, error) {
	var resp verifyResponse
	status, err := d.post(ctx, "/auth/verify", credentialsRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return "", err
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "", ErrRejected
	case status != http.StatusOK:
		return "", fmt.Errorf("directory verify: unexpected status %d", status)
	}
	return parseGroup(resp.Group)
}

func (d *HTTPDirectory) FetchProfile(ctx context.Context, username, password string) (Profile, error) {
	var profile Profile
	status, err := d.post(ctx, "/students/profile", credentialsRequest{Username: username, Password: password}, &profile)
	if err != nil {
		return Profile{}, err
	}
	switch {
	case status == http.StatusNotFound:
		return Profile{}, ErrProfileNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Profile{}, ErrRejected
	case status != http.StatusOK:
		return Profile{}, fmt.Errorf("directory profile: unexpected status %d", status)
	}
	if profile.Name == "" {
		return Profile{}, ErrProfileNotFound
	}
	return profile, nil
}

// post sends body as JSON and decodes a 200 response into out. Non-200
// statuses are returned without decoding.
func (d *HTTPDirectory) post(ctx context.Context, path string, body any, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("directory request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
	}
	return resp.StatusCode, nil
}
