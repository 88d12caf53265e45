package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieExtractionGuide writes step-by-step instructions for copying the
// session cookies out of a browser
func ShowCookieExtractionGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	lines := []string{
		rule,
		"INSTAGRAM COOKIE GUIDE",
		rule,
		"",
		"igmedia reads the timeline with your browser session's cookies.",
		"",
		"1. Log in at https://www.instagram.com and open your feed.",
		"2. Open developer tools (F12, or Cmd+Option+I on macOS).",
		"3. Chrome/Edge: Application > Cookies > https://www.instagram.com",
		"   Firefox:     Storage > Cookies > https://www.instagram.com",
		"4. Copy the Value column of these cookies:",
		"",
		"   sessionid    required  long string containing %3A",
		"   csrftoken    required  32 characters",
		"   ds_user_id   required  your numeric account id",
		"   mid          optional",
		"   ig_did       optional",
		"   rur          optional",
		"",
		"Copy the whole value without quotes or semicolons. Cookies expire;",
		"run `igmedia auth add` again when downloads start failing with 401.",
		"",
		"These cookies grant full access to the account. Never share them.",
		rule,
		"",
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

// ShowQuickExtractGuide writes a one-line reminder for experienced users
func ShowQuickExtractGuide(w io.Writer) {
	fmt.Fprintln(w, "F12 > Application/Storage > Cookies > instagram.com: sessionid, csrftoken, ds_user_id (mid, ig_did, rur optional)")
}
