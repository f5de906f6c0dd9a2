package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestShouldCreateHTTPAPISpan(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "handler span", in: "httpapi.Handler.GetStats", want: true},
		{name: "middleware span", in: "httpapi.RequestLogging", want: false},
		{name: "helper span", in: "httpapi.writeError", want: false},
		{name: "scraper handler", in: "httpapi.Handler.StartScraper", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shouldCreateHTTPAPISpan(tt.in)
			if got != tt.want {
				t.Fatalf("shouldCreateHTTPAPISpan(%q)=%v want=%v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRouteAttributes(t *testing.T) {
	mux := http.NewServeMux()
	var got map[string]string
	mux.HandleFunc("POST /v1/admin/matches/{matchID}/finish", func(w http.ResponseWriter, r *http.Request) {
		got = map[string]string{}
		for _, kv := range routeAttributes(r) {
			got[string(kv.Key)] = kv.Value.AsString()
		}
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/admin/matches/42/finish", nil))

	if got["http.route"] != "POST /v1/admin/matches/{matchID}/finish" {
		t.Fatalf("unexpected route attribute: %v", got)
	}
	if got["match.id"] != "42" {
		t.Fatalf("expected match.id=42, got %v", got)
	}
	if _, ok := got["scraper.name"]; ok {
		t.Fatalf("unexpected scraper.name attribute: %v", got)
	}
}
