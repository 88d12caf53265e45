package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	igerrors "igmedia/pkg/errors"
	"igmedia/pkg/logger"
)

// maxBodyPreview bounds the response text quoted in protocol error logs
const maxBodyPreview = 200

// Client performs requests against instagram.com on behalf of a Session
type Client struct {
	httpClient *http.Client
	session    *Session
	baseURL    string
	logger     logger.Logger
}

// NewClient creates a new Instagram client bound to a session
func NewClient(session *Session, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		session: session,
		baseURL: BaseURL,
		logger:  log.WithField("component", "instagram"),
	}
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// SetBaseURL points the client at a different host, e.g. a test server
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// Session returns the session the client was built with
func (c *Client) Session() *Session {
	return c.session
}

// doRequest performs an HTTP request and maps network failures to transport errors
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, igerrors.Transport(0, fmt.Sprintf("%s %s", req.Method, req.URL.Path), err)
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, duration)
	return resp, nil
}

// checkResponseStatus returns a typed error for any non-2xx response
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	err := igerrors.FromStatus(resp.StatusCode, fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, resp.Request.URL.Path))
	if err.Type == igerrors.ErrorTypeAuth {
		err.Message = "session cookies were rejected; refresh sessionid and csrftoken"
	}
	return err
}

// GetProfilePage fetches the HTML of a user's profile page
func (c *Client) GetProfilePage(ctx context.Context, username string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/", c.baseURL, url.PathEscape(username)), nil)
	if err != nil {
		return "", igerrors.Transport(0, "failed to create request", err)
	}
	c.session.apply(req)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")

	resp, err := c.doRequest(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return "", err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", igerrors.Transport(resp.StatusCode, "failed to read profile page", err)
	}
	return string(body), nil
}

// PostForm submits a form-encoded POST with the session's CSRF token and
// decodes the JSON response into target
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return igerrors.Transport(0, "failed to create request", err)
	}
	c.session.apply(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-CSRFToken", c.session.CSRFToken())

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return igerrors.Transport(resp.StatusCode, "failed to read response body", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > maxBodyPreview {
			bodyPreview = bodyPreview[:maxBodyPreview] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"path":         path,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return igerrors.Protocol("response is not valid JSON", err)
	}

	return nil
}

// OpenMedia starts a CDN download. The caller must close the returned body.
// The length is -1 when the server does not announce one.
func (c *Client) OpenMedia(ctx context.Context, mediaURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, 0, igerrors.Transport(0, "failed to create request", err)
	}
	req.Header.Set("User-Agent", c.session.UserAgent())

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, 0, err
	}

	if err := c.checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, 0, err
	}

	return resp.Body, resp.ContentLength, nil
}
