package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Client is a thin wrapper over the server's JSON API.
type Client struct {
	BaseURL string
	Key     string
	Email   string

	http *http.Client
	log  *logrus.Logger
}

// NewClientFromEnv builds a client from ASSETVAULT_* environment variables.
func NewClientFromEnv(log *logrus.Logger) *Client {
	base := os.Getenv("ASSETVAULT_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	return &Client{
		BaseURL: base,
		Key:     os.Getenv("ASSETVAULT_KEY"),
		Email:   os.Getenv("ASSETVAULT_EMAIL"),
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     log,
	}
}

// apiError mirrors the server's error envelope.
type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (c *Client) do(method, path string, query url.Values, body, dest interface{}) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Key != "" {
		req.Header.Set("Authorization", "Bearer "+c.Key)
	}
	if c.Email != "" {
		req.Header.Set("X-User-Email", c.Email)
	}

	c.log.Debugf("%s %s", method, u)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			if apiErr.Kind != "" {
				return fmt.Errorf("%s: %s", apiErr.Kind, apiErr.Error)
			}
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Get performs a GET against the operations API.
func (c *Client) Get(path string, query url.Values, dest interface{}) error {
	return c.do(http.MethodGet, path, query, nil, dest)
}

// Post performs a POST against the operations API.
func (c *Client) Post(path string, body, dest interface{}) error {
	return c.do(http.MethodPost, path, nil, body, dest)
}

// UploadBytes sends raw bytes to an upload URL issued by startUpload.
func (c *Client) UploadBytes(uploadURL, method, contentType string, body io.Reader) (io.ReadCloser, error) {
	req, err := http.NewRequest(method, uploadURL, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("upload returned %s", resp.Status)
	}
	return resp.Body, nil
}
