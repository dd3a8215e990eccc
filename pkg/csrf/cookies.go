package csrf

import "strings"

// ParseCookies parses a raw Cookie header leniently: fragments without a
// '=', empty names, and stray semicolons are silently skipped. Browsers in
// the wild send malformed cookie headers and a parse failure here must
// never take down the request.
func ParseCookies(header string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cookies[name] = strings.TrimSpace(value)
	}
	return cookies
}
