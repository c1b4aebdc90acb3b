package httpapi

import "regexp"

var mobileUA = regexp.MustCompile(`(?i)Mobile|Android|iPhone|iPad|iPod|Windows Phone`)

// IsMobile classifies a User-Agent header as a mobile device.
func IsMobile(userAgent string) bool {
	return mobileUA.MatchString(userAgent)
}
