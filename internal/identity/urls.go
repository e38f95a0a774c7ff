package identity

import (
	"net/url"
	"strings"
)

const googlePhotoHost = "googleusercontent.com"

// AddSizeToGoogleProfilePic asks Google-hosted avatars for a 150px image.
// URLs that already carry a query, or are hosted elsewhere, are unchanged.
func AddSizeToGoogleProfilePic(photoURL string) string {
	if strings.Contains(photoURL, googlePhotoHost) && !strings.Contains(photoURL, "?") {
		return photoURL + "?sz=150"
	}
	return photoURL
}

// SignInURL builds the redirect to the login page, carrying the path the
// user should return to afterwards.
func SignInURL(scheme, host, loginPath, returnTo string) string {
	if !strings.HasPrefix(loginPath, "/") {
		loginPath = "/" + loginPath
	}
	return scheme + "://" + host + loginPath + "?to=" + escapeComponent(returnTo)
}

// componentUnescaper undoes the query escaping of characters a URI
// component may carry literally, and writes spaces as %20.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func escapeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
