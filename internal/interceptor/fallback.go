package interceptor

import (
	"net/http"

	"github.com/kimhsiao/tripplanner/backend/internal/cache"
)

const unavailableHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Offline</title></head>
<body><h1>You are offline</h1><p>This page is not available offline.</p></body>
</html>`

func homePlaceholder(req *http.Request) *http.Response {
	r := &cache.Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(`{"message":"Offline data not available"}`),
	}
	return r.ToHTTP(req)
}

func unavailablePage(req *http.Request) *http.Response {
	r := &cache.Response{
		Status: http.StatusServiceUnavailable,
		Header: http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:   []byte(unavailableHTML),
	}
	return r.ToHTTP(req)
}
