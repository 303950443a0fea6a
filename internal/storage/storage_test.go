package storage

import (
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestIsNoSuchKey(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{minio.ErrorResponse{Code: "NoSuchKey"}, true},
		{fmt.Errorf("wrapped: %w", minio.ErrorResponse{Code: "NotFound"}), true},
		{fmt.Errorf("%w: exports/1/2/x.pdf", ErrObjectNotFound), true},
		{errors.New("The specified key does not exist."), true},
		{minio.ErrorResponse{Code: "AccessDenied"}, false},
		{errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := IsNoSuchKey(tc.err); got != tc.want {
			t.Errorf("IsNoSuchKey(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestObjectKeys(t *testing.T) {
	image := regexp.MustCompile(`^book-images/42/[0-9a-f-]{36}\.png$`)
	if key := ImageObjectKey(42, ".PNG"); !image.MatchString(key) {
		t.Fatalf("unexpected image key %q", key)
	}
	export := regexp.MustCompile(`^exports/42/7/[0-9a-f-]{36}\.epub$`)
	if key := ExportObjectKey(42, 7, "epub"); !export.MatchString(key) {
		t.Fatalf("unexpected export key %q", key)
	}
}

func TestParsePublicEndpoint(t *testing.T) {
	host, secure, err := parsePublicEndpoint("https://files.example.com", false)
	if err != nil || host != "files.example.com" || !secure {
		t.Fatalf("unexpected %q %v %v", host, secure, err)
	}
	host, secure, err = parsePublicEndpoint("localhost:9000", true)
	if err != nil || host != "localhost:9000" || !secure {
		t.Fatalf("unexpected %q %v %v", host, secure, err)
	}
	if _, _, err := parsePublicEndpoint("http://", false); err == nil {
		t.Fatal("expected error for missing host")
	}
}
