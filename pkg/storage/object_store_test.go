package storage

import (
	"encoding/json"
	"testing"
)

func TestPublicBaseURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  MinioConfig
		want string
	}{
		{"plain", MinioConfig{Endpoint: "localhost:9000", Bucket: "media"}, "http://localhost:9000/media"},
		{"tls", MinioConfig{Endpoint: "s3.example.com", Bucket: "media", UseSSL: true}, "https://s3.example.com/media"},
		{"override", MinioConfig{Endpoint: "minio:9000", Bucket: "media", PublicBaseURL: "https://cdn.example.com/media/"}, "https://cdn.example.com/media"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := publicBaseURL(tc.cfg); got != tc.want {
				t.Fatalf("publicBaseURL = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPublicURLJoinsKey(t *testing.T) {
	m := &MinioStore{baseURL: "http://localhost:9000/media"}
	if got := m.PublicURL("/articles/a.png"); got != "http://localhost:9000/media/articles/a.png" {
		t.Fatalf("unexpected url: %q", got)
	}
}

func TestPublicReadPolicyScopesPrefix(t *testing.T) {
	var doc struct {
		Statement []struct {
			Action   []string
			Resource []string
		}
	}
	if err := json.Unmarshal([]byte(publicReadPolicy("media", "/articles/")), &doc); err != nil {
		t.Fatalf("policy is not valid json: %v", err)
	}
	if len(doc.Statement) != 1 || doc.Statement[0].Resource[0] != "arn:aws:s3:::media/articles/*" {
		t.Fatalf("unexpected policy: %+v", doc)
	}
	if doc.Statement[0].Action[0] != "s3:GetObject" {
		t.Fatalf("policy must only allow reads: %+v", doc.Statement[0].Action)
	}
}

func TestNewMinioStoreRequiresEndpoint(t *testing.T) {
	if _, err := NewMinioStore(MinioConfig{Bucket: "media"}, "articles"); err == nil {
		t.Fatalf("expected missing endpoint to fail")
	}
}
