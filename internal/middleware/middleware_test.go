package middleware

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"appointment-manager/internal/auth"
	"appointment-manager/internal/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const secret = "test-secret"

func whoami() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := auth.FromContext(r.Context())
		if !ok {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(c.UserID))
	})
}

func TestRequireToken(t *testing.T) {
	tok, err := auth.MakeToken("alice", secret)
	if err != nil {
		t.Fatal(err)
	}
	h := RequireToken(secret)(whoami())

	tests := []struct {
		name   string
		path   string
		header string
		code   int
		body   string
	}{
		{"valid", "/listAppointments", "Bearer " + tok, 200, "alice"},
		{"missing", "/listAppointments", "", 401, ""},
		{"bad", "/listAppointments", "Bearer nope", 401, ""},
		{"open path", "/healthcheck", "", 200, "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.code {
				t.Fatalf("code = %d, want %d", rec.Code, tt.code)
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("body = %q", rec.Body.String())
			}
		})
	}
}

func TestRequireTokenDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireToken("")(whoami()).ServeHTTP(rec, httptest.NewRequest("GET", "/listAppointments", nil))
	if rec.Code != 200 || rec.Body.String() != "anonymous" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestAuthInterceptor(t *testing.T) {
	tok, _ := auth.MakeToken("bob", secret)
	info := &grpc.UnaryServerInfo{FullMethod: "/appointment.v1.AppointmentService/ListAppointments"}
	var got string
	next := func(ctx context.Context, req any) (any, error) {
		if c, ok := auth.FromContext(ctx); ok {
			got = c.UserID
		}
		return "ok", nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+tok))
	if _, err := Auth(secret)(ctx, nil, info, next); err != nil {
		t.Fatal(err)
	}
	if got != "bob" {
		t.Errorf("uid = %q", got)
	}

	for name, ctx := range map[string]context.Context{
		"no metadata": context.Background(),
		"no token":    metadata.NewIncomingContext(context.Background(), metadata.MD{}),
		"bad token":   metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer x")),
	} {
		_, err := Auth(secret)(ctx, nil, info, next)
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("%s: got %v", name, err)
		}
	}

	if _, err := Auth("")(context.Background(), nil, info, next); err != nil {
		t.Errorf("disabled auth rejected: %v", err)
	}
}

func TestRequestIDInterceptor(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-request-id", "abc"))
	var got string
	_, _ = RequestID()(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		got = telemetry.RequestID(ctx)
		return nil, nil
	})
	if got != "abc" {
		t.Errorf("request id = %q", got)
	}
}

func TestLimitHTTP(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := Limit(rl, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	got := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/addAppointment", nil)
		req.RemoteAddr = "10.0.0.1:" + []string{"1111", "2222", "3333"}[i]
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		got = append(got, rec.Code)
	}
	if got[0] != 200 || got[1] != 200 || got[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", got)
	}

	// a different client has its own bucket
	req := httptest.NewRequest("POST", "/addAppointment", nil)
	req.RemoteAddr = "10.0.0.2:1111"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Errorf("second client: %d", rec.Code)
	}
}

func TestRateLimitInterceptor(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.9"), Port: 4000}})
	next := func(ctx context.Context, req any) (any, error) { return nil, nil }

	add := &grpc.UnaryServerInfo{FullMethod: "/appointment.v1.AppointmentService/AddAppointment"}
	if _, err := RateLimit(rl)(ctx, nil, add, next); err != nil {
		t.Fatal(err)
	}
	if _, err := RateLimit(rl)(ctx, nil, add, next); status.Code(err) != codes.ResourceExhausted {
		t.Errorf("second add: %v", err)
	}

	list := &grpc.UnaryServerInfo{FullMethod: "/appointment.v1.AppointmentService/ListAppointments"}
	for i := 0; i < 5; i++ {
		if _, err := RateLimit(rl)(ctx, nil, list, next); err != nil {
			t.Fatalf("unlimited method rejected: %v", err)
		}
	}
}

func TestSweepAndRun(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Allow("old")
	rl.Allow("fresh")
	rl.mu.Lock()
	rl.clients["old"].seen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.sweep(time.Now())
	rl.mu.Lock()
	_, oldKept := rl.clients["old"]
	_, freshKept := rl.clients["fresh"]
	rl.mu.Unlock()
	if oldKept || !freshKept {
		t.Errorf("old kept=%v fresh kept=%v", oldKept, freshKept)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rl.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}
