package instagram

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// GraphQLEndpoint is the path accepting persisted GraphQL queries
	GraphQLEndpoint = "/graphql/query"

	// TimelineDocID is the persisted query id for a profile's posts tab
	TimelineDocID = "30714410208142251"

	// TimelineQueryName is sent as fb_api_req_friendly_name
	TimelineQueryName = "PolarisProfilePostsTabContentQuery_connection"

	// AppID is the web client's application id
	AppID = "936619743392459"

	// DefaultPageSize is the number of posts requested per page
	DefaultPageSize = 12

	// MaxPageSize is the largest page the endpoint serves
	MaxPageSize = 50

	// FallbackDTSG is used when no token can be scraped from the profile page
	FallbackDTSG = "NAftyF_1mkGDTmQ3T2UX_zP8C9tmpc3h3b5DguTZlumI0VqB9hHdwoQ:17843669410156967:1753514249"
)

var dtsgPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"DTSGInitialData",\[\],\{"token":"([^"]+)"`),
	regexp.MustCompile(`fb_dtsg[^"]*"([^"]+)"`),
}

// ExtractDTSG finds the fb_dtsg token embedded in a profile page. The
// second return value is false when the fallback token was used.
func ExtractDTSG(html string) (string, bool) {
	for _, re := range dtsgPatterns {
		if m := re.FindStringSubmatch(html); m != nil {
			return m[1], true
		}
	}
	return FallbackDTSG, false
}

// TimelineVariables builds the GraphQL variables for one timeline page.
// An empty cursor requests the first page.
func TimelineVariables(username, cursor string, pageSize int) map[string]interface{} {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	} else if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	var after interface{}
	if cursor != "" {
		after = cursor
	}

	return map[string]interface{}{
		"data": map[string]interface{}{
			"count":                             pageSize,
			"include_reel_media_seen_timestamp": true,
			"include_relationship_info":         true,
			"latest_besties_reel_media":         true,
			"latest_reel_media":                 true,
		},
		"first":    pageSize,
		"username": username,
		"after":    after,
		"before":   nil,
		"last":     nil,
		"__relay_internal__pv__PolarisIsLoggedInrelayprovider":  true,
		"__relay_internal__pv__PolarisShareSheetV3relayprovider": true,
	}
}

// TimelineForm builds the form body of a timeline query
func TimelineForm(s *Session, dtsg, username, cursor string, pageSize int, now time.Time) (url.Values, error) {
	variables, err := json.Marshal(TimelineVariables(username, cursor, pageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to encode variables: %w", err)
	}

	av := s.AccountID()
	if av == "" {
		av = "0"
	}

	form := url.Values{}
	form.Set("av", av)
	form.Set("__d", "www")
	form.Set("__user", "0")
	form.Set("__a", "1")
	form.Set("__comet_req", "7")
	form.Set("dpr", "1")
	form.Set("fb_dtsg", dtsg)
	form.Set("__spin_b", "trunk")
	form.Set("__spin_t", strconv.FormatInt(now.Unix(), 10))
	form.Set("fb_api_caller_class", "RelayModern")
	form.Set("fb_api_req_friendly_name", TimelineQueryName)
	form.Set("variables", string(variables))
	form.Set("server_timestamps", "true")
	form.Set("doc_id", s.DocID())
	return form, nil
}

// GetUserProfileURL constructs the public profile URL for a user
func GetUserProfileURL(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/", BaseURL, username)
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername accepts "@name", "name/" or a full profile URL and
// returns the bare username
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	if u, err := url.Parse(username); err == nil && u.Host != "" {
		username = strings.Trim(u.Path, "/")
		if i := strings.Index(username, "/"); i >= 0 {
			username = username[:i]
		}
	}
	username = strings.TrimPrefix(username, "@")
	return strings.TrimRight(username, "/ ")
}
