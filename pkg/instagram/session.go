package instagram

import (
	"net/http"
	"sort"
	"strings"

	igerrors "igmedia/pkg/errors"
)

// DefaultUserAgent is sent when the caller does not configure one
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// RequiredCookies must be present for timeline queries to be accepted
var RequiredCookies = []string{"sessionid", "csrftoken", "ds_user_id"}

// SessionOptions holds the non-cookie identity values of a session
type SessionOptions struct {
	UserAgent string
	AppID     string
	DocID     string
}

// Session is the immutable identity attached to every GraphQL request:
// browser cookies, the CSRF token derived from them and fixed headers.
type Session struct {
	cookies   map[string]string
	userAgent string
	appID     string
	docID     string
}

// NewSession builds a session from browser cookies. It fails with a
// configuration error when a required cookie is missing.
func NewSession(cookies map[string]string, opts SessionOptions) (*Session, error) {
	copied := make(map[string]string, len(cookies))
	for k, v := range cookies {
		if v != "" {
			copied[k] = v
		}
	}

	var missing []string
	for _, name := range RequiredCookies {
		if copied[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, igerrors.Configuration("missing required cookies: "+strings.Join(missing, ", "), nil)
	}

	s := &Session{
		cookies:   copied,
		userAgent: opts.UserAgent,
		appID:     opts.AppID,
		docID:     opts.DocID,
	}
	if s.userAgent == "" {
		s.userAgent = DefaultUserAgent
	}
	if s.appID == "" {
		s.appID = AppID
	}
	if s.docID == "" {
		s.docID = TimelineDocID
	}
	return s, nil
}

// CSRFToken returns the csrftoken cookie value
func (s *Session) CSRFToken() string { return s.cookies["csrftoken"] }

// AccountID returns the logged-in account id (ds_user_id)
func (s *Session) AccountID() string { return s.cookies["ds_user_id"] }

// DocID returns the persisted query id used for timeline requests
func (s *Session) DocID() string { return s.docID }

// UserAgent returns the browser user agent
func (s *Session) UserAgent() string { return s.userAgent }

// CookieNames returns the names of the cookies carried by the session, sorted
func (s *Session) CookieNames() []string {
	names := make([]string, 0, len(s.cookies))
	for name := range s.cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// apply sets the browser headers and cookies on an instagram.com request
func (s *Session) apply(req *http.Request) {
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-IG-App-ID", s.appID)
	req.Header.Set("X-Instagram-AJAX", "1")
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("Origin", BaseURL)
	req.Header.Set("Referer", BaseURL+"/")

	for _, name := range s.CookieNames() {
		req.AddCookie(&http.Cookie{Name: name, Value: s.cookies[name]})
	}
}
