package instagram

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDTSG(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		want      string
		wantFound bool
	}{
		{
			name:      "initial data block",
			html:      `require("x");["DTSGInitialData",[],{"token":"NAf:123:456"},258]`,
			want:      "NAf:123:456",
			wantFound: true,
		},
		{
			name:      "inline fb_dtsg",
			html:      `<input name=fb_dtsg value="tok-2">`,
			want:      "tok-2",
			wantFound: true,
		},
		{
			name:      "initial data wins over inline",
			html:      `fb_dtsg="second" ["DTSGInitialData",[],{"token":"first"}]`,
			want:      "first",
			wantFound: true,
		},
		{
			name: "fallback",
			html: "<html></html>",
			want: FallbackDTSG,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ExtractDTSG(tt.html)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFound, found)
		})
	}
}

func TestTimelineVariables(t *testing.T) {
	first := TimelineVariables("natgeo", "", 0)
	assert.Nil(t, first["after"])
	assert.Equal(t, DefaultPageSize, first["first"])
	assert.Equal(t, "natgeo", first["username"])

	next := TimelineVariables("natgeo", "QVFE", 500)
	assert.Equal(t, "QVFE", next["after"])
	assert.Equal(t, MaxPageSize, next["first"])

	encoded, err := json.Marshal(first)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"after":null`)
	assert.Contains(t, string(encoded), `"before":null`)
}

func TestTimelineForm(t *testing.T) {
	s := testSession(t)
	now := time.Unix(1700000000, 0)

	form, err := TimelineForm(s, "dtsg-token", "natgeo", "CURSOR", 12, now)
	require.NoError(t, err)

	assert.Equal(t, "42", form.Get("av"))
	assert.Equal(t, "dtsg-token", form.Get("fb_dtsg"))
	assert.Equal(t, TimelineDocID, form.Get("doc_id"))
	assert.Equal(t, TimelineQueryName, form.Get("fb_api_req_friendly_name"))
	assert.Equal(t, "1700000000", form.Get("__spin_t"))

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(form.Get("variables")), &vars))
	assert.Equal(t, "CURSOR", vars["after"])
	assert.Equal(t, float64(12), vars["first"])
}

func TestGetUserProfileURL(t *testing.T) {
	assert.Equal(t, "https://www.instagram.com/natgeo/", GetUserProfileURL("natgeo"))
	assert.Equal(t, "", GetUserProfileURL(""))
}

func TestIsValidUsername(t *testing.T) {
	valid := []string{"natgeo", "a.b_c", "user123", "abcdefghijklmnopqrstuvwxyz1234"}
	invalid := []string{"", "has space", "dash-name", "abcdefghijklmnopqrstuvwxyz12345", "émoji"}

	for _, u := range valid {
		assert.True(t, IsValidUsername(u), u)
	}
	for _, u := range invalid {
		assert.False(t, IsValidUsername(u), u)
	}
}

func TestSanitizeUsername(t *testing.T) {
	tests := map[string]string{
		"@natgeo":                                  "natgeo",
		"natgeo/":                                  "natgeo",
		"  natgeo  ":                               "natgeo",
		"https://www.instagram.com/natgeo/":        "natgeo",
		"https://www.instagram.com/natgeo/reels/":  "natgeo",
		"":                                         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeUsername(in), in)
	}
}
