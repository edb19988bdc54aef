package main

import (
	"mime"
	"net/http"
)

// localOnly rejects browser requests from pages not served on loopback, and
// state-changing requests whose body is not JSON. A JSON content type cannot
// be sent cross-origin without a CORS preflight, which this server never
// answers.
func localOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLocalOrigin(r) {
			http.Error(w, "Forbidden origin", http.StatusForbidden)
			return
		}
		if changesState(r.Method) && r.ContentLength != 0 && !isJSON(r.Header.Get("Content-Type")) {
			http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func changesState(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}
