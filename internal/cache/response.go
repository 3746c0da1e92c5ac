package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Response is a fully buffered HTTP response that can be stored and replayed.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// hop-by-hop headers are never stored.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// FromHTTP buffers resp into a Response. resp.Body is replaced with a fresh
// reader over the same bytes so the caller can still hand resp on.
func FromHTTP(resp *http.Response) (*Response, error) {
	var body []byte
	if resp.Body != nil {
		b, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		body = b
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	header := resp.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	for _, h := range hopHeaders {
		header.Del(h)
	}

	return &Response{
		Status: resp.StatusCode,
		Header: header,
		Body:   body,
	}, nil
}

// ToHTTP materializes a new *http.Response. Each call returns an independent body.
func (r *Response) ToHTTP(req *http.Request) *http.Response {
	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Length", strconv.Itoa(len(r.Body)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", r.Status, http.StatusText(r.Status)),
		StatusCode:    r.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Clone returns a deep copy.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	return &Response{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   append([]byte(nil), r.Body...),
	}
}

// RequestKey is the cache key of a URL: the absolute URL without fragment.
func RequestKey(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}
