package interceptor

import (
	"net/http"
	"strings"
)

// Class is the caching strategy chosen for a request.
type Class string

const (
	ClassPassthrough Class = "passthrough"
	ClassAPI         Class = "api"
	ClassStatic      Class = "static"
)

var extensionSchemes = map[string]bool{
	"chrome-extension":     true,
	"moz-extension":        true,
	"safari-extension":     true,
	"safari-web-extension": true,
}

// Classify picks the strategy for req.
func (i *Interceptor) Classify(req *http.Request) Class {
	if req.Method != http.MethodGet {
		return ClassPassthrough
	}
	if extensionSchemes[strings.ToLower(req.URL.Scheme)] {
		return ClassPassthrough
	}
	if strings.HasPrefix(req.URL.Path, i.cfg.AuthPrefix) {
		return ClassPassthrough
	}
	if strings.Contains(req.URL.Path, "/api/") {
		return ClassAPI
	}
	return ClassStatic
}
