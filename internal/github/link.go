package github

import (
	"net/url"
	"strconv"
	"strings"
)

// parseLinkLastPage extracts the page number of the rel="last" link from
// an RFC 5988 Link header.
//
// Format: <https://api.github.com/...?page=2>; rel="next", <...?page=7>; rel="last"
func parseLinkLastPage(header string) (int, bool) {
	for _, part := range strings.Split(header, ",") {
		urlPart, relPart, ok := strings.Cut(strings.TrimSpace(part), ";")
		if !ok || !strings.Contains(relPart, `rel="last"`) {
			continue
		}

		urlPart = strings.TrimSpace(urlPart)
		if !strings.HasPrefix(urlPart, "<") || !strings.HasSuffix(urlPart, ">") {
			continue
		}
		u, err := url.Parse(urlPart[1 : len(urlPart)-1])
		if err != nil {
			return 0, false
		}
		page, err := strconv.Atoi(u.Query().Get("page"))
		if err != nil || page < 1 {
			return 0, false
		}
		return page, true
	}
	return 0, false
}
