package payment

import "strings"

// BaseURLs are the gateway hosts the hosted widget loads from.
var BaseURLs = []string{
	"https://test.oppwa.com/",
	"https://oppwa.com/",
	"https://www.oppwa.com/",
}

// CSPDirective is one Content-Security-Policy directive and its sources.
type CSPDirective struct {
	Name    string
	Sources []string
}

// CSPOrigins returns the directives pages embedding the widget need.
func CSPOrigins() []CSPDirective {
	with := func(extra ...string) []string {
		out := make([]string, 0, len(BaseURLs)+len(extra))
		out = append(out, BaseURLs...)
		return append(out, extra...)
	}
	return []CSPDirective{
		{Name: "script-src", Sources: with("https://pay.google.com/", "'unsafe-eval'")},
		{Name: "style-src", Sources: with("'unsafe-inline'")},
		{Name: "connect-src", Sources: with()},
		{Name: "img-src", Sources: with("https://www.gstatic.com/")},
		{Name: "frame-src", Sources: with("https://pay.google.com/", "https:")},
	}
}

// CSPHeader renders the directives, each extended with 'self'.
func CSPHeader() string {
	parts := make([]string, 0, 6)
	parts = append(parts, "default-src 'self'")
	for _, d := range CSPOrigins() {
		parts = append(parts, d.Name+" 'self' "+strings.Join(d.Sources, " "))
	}
	return strings.Join(parts, "; ")
}
