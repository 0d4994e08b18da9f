package http

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alessio/shellescape"
)

// Request is a fully resolved request descriptor. Everything the client
// sends comes from here; no further templating happens at execution time.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

// Header looks a header up case-insensitively.
func (r *Request) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Request) BodyString() string {
	return string(r.Body)
}

// CurlCommand renders a shell command that reproduces the request.
func (r *Request) CurlCommand() string {
	parts := []string{"curl", "-sS"}
	if r.Method != "" && r.Method != "GET" {
		parts = append(parts, "-X", r.Method)
	}

	keys := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, "-H", shellescape.Quote(k+": "+r.Headers[k]))
	}

	if len(r.Body) > 0 {
		parts = append(parts, "--data-raw", shellescape.Quote(string(r.Body)))
	}
	if r.Timeout > 0 {
		parts = append(parts, "--max-time", formatSeconds(r.Timeout))
	}
	parts = append(parts, shellescape.Quote(r.URL))
	return strings.Join(parts, " ")
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
