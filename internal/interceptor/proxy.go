package interceptor

import (
	"io"
	"net/http"

	"github.com/kimhsiao/tripplanner/backend/internal/logging"
)

// ServeHTTP lets the Interceptor act as a local caching proxy for the origin.
func (i *Interceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	out := i.UpstreamRequest(r)

	resp, err := i.Handle(r.Context(), out)
	if err != nil {
		logging.Warn("Request could not be answered", map[string]interface{}{
			"url":   out.URL.String(),
			"error": err.Error(),
		})
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	WriteResponse(w, resp)
}

// UpstreamRequest rewrites an incoming server request so it targets the origin.
func (i *Interceptor) UpstreamRequest(r *http.Request) *http.Request {
	out := r.Clone(r.Context())
	out.RequestURI = ""

	u := *r.URL
	u.Scheme = i.cfg.Origin.Scheme
	u.Host = i.cfg.Origin.Host
	out.URL = &u
	out.Host = i.cfg.Origin.Host

	for _, h := range []string{"Connection", "Keep-Alive", "Proxy-Connection", "Te", "Trailer", "Transfer-Encoding", "Upgrade"} {
		out.Header.Del(h)
	}
	if r.ContentLength == 0 {
		out.Body = nil
	}
	return out
}

// WriteResponse copies resp to w and closes its body.
func WriteResponse(w http.ResponseWriter, resp *http.Response) {
	defer resp.Body.Close()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logging.Debug("Client went away while copying response", map[string]interface{}{"error": err.Error()})
	}
}
