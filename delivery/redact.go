package delivery

import (
	"net/url"
	"strings"
)

// RedactURL masks credentials in a webhook URL for logging: userinfo
// passwords, query values and the token segment that follows
// /webhooks/<id>/.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}

	segs := strings.Split(u.Path, "/")
	for i, s := range segs {
		if s == "webhooks" && i+2 < len(segs) {
			for j := i + 2; j < len(segs); j++ {
				if segs[j] != "" {
					segs[j] = "REDACTED"
				}
			}
			break
		}
	}
	u.Path = strings.Join(segs, "/")
	u.RawPath = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}
