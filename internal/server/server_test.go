// internal/server/server_test.go
package server

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestNormalizeAddr(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"", ":8080"},
		{"9090", ":9090"},
		{":9090", ":9090"},
		{"127.0.0.1:9090", "127.0.0.1:9090"},
		{" 7000 ", ":7000"},
	}
	for _, tc := range cases {
		if got := normalizeAddr(tc.in); got != tc.want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestServer_ShutdownBeforeRun(t *testing.T) {
	t.Parallel()

	var s Server
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestServer_RunReturnsNilAfterShutdown(t *testing.T) {
	t.Parallel()

	s := &Server{}
	errc := make(chan error, 1)
	go func() {
		errc <- s.Run("127.0.0.1:0", http.NotFoundHandler())
	}()

	// wait for ListenAndServe to install the server
	deadline := time.Now().Add(time.Second)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := s.Shutdown(ctx)
		cancel()
		if err != nil {
			t.Fatalf("Shutdown: %v", err)
		}
		select {
		case err := <-errc:
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			return
		case <-time.After(20 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatal("Run did not return after Shutdown")
		}
	}
}
