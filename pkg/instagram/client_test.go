package instagram

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	igerrors "igmedia/pkg/errors"
	"igmedia/pkg/logger"
)

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newMockHTTPClient(handler func(req *http.Request) (*http.Response, error)) *http.Client {
	return &http.Client{
		Transport: &mockRoundTripper{handler: handler},
		Timeout:   30 * time.Second,
	}
}

func newResponse(req *http.Request, statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode:    statusCode,
		Body:          io.NopCloser(bytes.NewBufferString(body)),
		Header:        make(http.Header),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func testSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(map[string]string{
		"sessionid":  "sess%3A1",
		"csrftoken":  "csrf-123",
		"ds_user_id": "42",
		"mid":        "",
	}, SessionOptions{})
	require.NoError(t, err)
	return s
}

func newTestClient(t *testing.T, log logger.Logger, handler func(req *http.Request) (*http.Response, error)) *Client {
	t.Helper()
	client := NewClient(testSession(t), 30*time.Second, log)
	client.SetHTTPClient(newMockHTTPClient(handler))
	return client
}

func TestNewSessionRequiresCookies(t *testing.T) {
	_, err := NewSession(map[string]string{"sessionid": "s"}, SessionOptions{})
	require.Error(t, err)
	assert.True(t, igerrors.IsType(err, igerrors.ErrorTypeConfiguration))
	assert.Contains(t, err.Error(), "csrftoken, ds_user_id")
}

func TestSessionDefaultsAndCopy(t *testing.T) {
	cookies := map[string]string{"sessionid": "s", "csrftoken": "c", "ds_user_id": "1", "rur": ""}
	s, err := NewSession(cookies, SessionOptions{})
	require.NoError(t, err)

	cookies["sessionid"] = "changed"

	assert.Equal(t, DefaultUserAgent, s.UserAgent())
	assert.Equal(t, TimelineDocID, s.DocID())
	assert.Equal(t, "c", s.CSRFToken())
	assert.Equal(t, []string{"csrftoken", "ds_user_id", "sessionid"}, s.CookieNames())

	req := httptest.NewRequest(http.MethodGet, BaseURL, nil)
	s.apply(req)
	c, err := req.Cookie("sessionid")
	require.NoError(t, err)
	assert.Equal(t, "s", c.Value)
	assert.Equal(t, AppID, req.Header.Get("X-IG-App-ID"))
}

func TestPostFormSendsSessionHeaders(t *testing.T) {
	var captured *http.Request
	var body string
	client := newTestClient(t, logger.NewNopLogger(), func(req *http.Request) (*http.Response, error) {
		captured = req
		b, _ := io.ReadAll(req.Body)
		body = string(b)
		return newResponse(req, http.StatusOK, `{"ok":true}`), nil
	})

	var out struct {
		OK bool `json:"ok"`
	}
	form := url.Values{"doc_id": {TimelineDocID}}
	require.NoError(t, client.PostForm(context.Background(), GraphQLEndpoint, form, &out))

	assert.True(t, out.OK)
	assert.Equal(t, http.MethodPost, captured.Method)
	assert.Equal(t, BaseURL+GraphQLEndpoint, captured.URL.String())
	assert.Equal(t, "csrf-123", captured.Header.Get("X-CSRFToken"))
	assert.Equal(t, "application/x-www-form-urlencoded", captured.Header.Get("Content-Type"))
	assert.Equal(t, "XMLHttpRequest", captured.Header.Get("X-Requested-With"))
	assert.Equal(t, "doc_id="+TimelineDocID, body)

	cookie, err := captured.Cookie("csrftoken")
	require.NoError(t, err)
	assert.Equal(t, "csrf-123", cookie.Value)
	_, err = captured.Cookie("mid")
	assert.ErrorIs(t, err, http.ErrNoCookie)
}

func TestPostFormErrors(t *testing.T) {
	tests := []struct {
		name     string
		handler  func(req *http.Request) (*http.Response, error)
		wantType igerrors.ErrorType
		wantCode int
	}{
		{
			name: "network failure",
			handler: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			},
			wantType: igerrors.ErrorTypeTransport,
		},
		{
			name: "server error",
			handler: func(req *http.Request) (*http.Response, error) {
				return newResponse(req, http.StatusBadGateway, ""), nil
			},
			wantType: igerrors.ErrorTypeServerError,
			wantCode: http.StatusBadGateway,
		},
		{
			name: "rejected session",
			handler: func(req *http.Request) (*http.Response, error) {
				return newResponse(req, http.StatusForbidden, ""), nil
			},
			wantType: igerrors.ErrorTypeAuth,
			wantCode: http.StatusForbidden,
		},
		{
			name: "html instead of json",
			handler: func(req *http.Request) (*http.Response, error) {
				return newResponse(req, http.StatusOK, "<html>login</html>"), nil
			},
			wantType: igerrors.ErrorTypeProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, logger.NewNopLogger(), tt.handler)
			var out map[string]interface{}
			err := client.PostForm(context.Background(), GraphQLEndpoint, url.Values{}, &out)

			require.Error(t, err)
			var igErr *igerrors.Error
			require.ErrorAs(t, err, &igErr)
			assert.Equal(t, tt.wantType, igErr.Type)
			assert.Equal(t, tt.wantCode, igErr.Code)
		})
	}
}

func TestProtocolErrorLogsPreview(t *testing.T) {
	log := logger.NewTestLogger()
	client := newTestClient(t, log, func(req *http.Request) (*http.Response, error) {
		return newResponse(req, http.StatusOK, string(bytes.Repeat([]byte("x"), 500))), nil
	})

	var out map[string]interface{}
	require.Error(t, client.PostForm(context.Background(), GraphQLEndpoint, url.Values{}, &out))

	errs := log.GetMessagesByLevel("ERROR")
	require.Len(t, errs, 1)
	preview := errs[0].Fields["body_preview"].(string)
	assert.Len(t, preview, maxBodyPreview+3)
}

func TestGetProfilePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/natgeo/", r.URL.Path)
		assert.Equal(t, "document", r.Header.Get("Sec-Fetch-Dest"))
		_, _ = w.Write([]byte(`<script>["DTSGInitialData",[],{"token":"abc:1:2"}]</script>`))
	}))
	defer server.Close()

	client := NewClient(testSession(t), 5*time.Second, logger.NewNopLogger())
	client.SetBaseURL(server.URL + "/")

	html, err := client.GetProfilePage(context.Background(), "natgeo")
	require.NoError(t, err)
	tok, found := ExtractDTSG(html)
	assert.True(t, found)
	assert.Equal(t, "abc:1:2", tok)
}

func TestOpenMedia(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-CSRFToken"))
		assert.Empty(t, r.Cookies())
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("jpegbytes"))
	}))
	defer server.Close()

	client := NewClient(testSession(t), 5*time.Second, logger.NewNopLogger())

	body, size, err := client.OpenMedia(context.Background(), server.URL+"/a.jpg")
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, "jpegbytes", string(data))
	assert.Equal(t, int64(9), size)

	_, _, err = client.OpenMedia(context.Background(), server.URL+"/missing.jpg")
	assert.True(t, igerrors.IsType(err, igerrors.ErrorTypeNotFound))
}
