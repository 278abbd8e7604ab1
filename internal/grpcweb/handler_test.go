package grpcweb

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/timestamppb"

	"appointment-manager/internal/appointment"
	"appointment-manager/internal/rpc"
	"appointment-manager/internal/store"
	"appointment-manager/internal/telemetry"
)

func setup(t *testing.T) http.Handler {
	t.Helper()
	logger := telemetry.NewLogger(telemetry.NewExporter(io.Discard))
	srv := grpc.NewServer(grpc.ForceServerCodec(rpc.Codec{}))
	rpc.Register(srv, rpc.NewServer(appointment.NewService(store.NewMemory()), logger))

	lis := bufconn.Listen(1 << 20)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(lis)
	}()
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
		<-done
	})
	return New(conn).Handler()
}

type reply struct {
	data    []byte
	trailer string
}

func call(t *testing.T, h http.Handler, method string, in any) reply {
	t.Helper()
	msg, err := rpc.Codec{}.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", "/"+rpc.ServiceName+"/"+method, bytes.NewReader(frame(dataFrame, msg)))
	req.Header.Set("Content-Type", "application/grpc-web+proto")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("%s: http %d", method, rec.Code)
	}

	var out reply
	body := rec.Body.Bytes()
	for len(body) >= 5 {
		n := binary.BigEndian.Uint32(body[1:5])
		payload := body[5 : 5+n]
		if body[0] == trailerFrame {
			out.trailer = string(payload)
		} else {
			out.data = payload
		}
		body = body[5+n:]
	}
	return out
}

func TestBridge(t *testing.T) {
	h := setup(t)

	add := &rpc.AddAppointmentRequest{
		UserID:      "alice",
		AptName:     "dentist",
		Description: "cleaning",
		DateTime:    timestamppb.New(time.Date(2025, 5, 1, 15, 0, 0, 0, time.UTC)),
	}
	if r := call(t, h, "AddAppointment", add); r.trailer != "grpc-status:0\r\n" {
		t.Fatalf("add trailer %q", r.trailer)
	}

	r := call(t, h, "ListAppointments", &rpc.UserRequest{UserID: "alice"})
	if r.trailer != "grpc-status:0\r\n" {
		t.Fatalf("list trailer %q", r.trailer)
	}
	var names rpc.Strings
	if err := (rpc.Codec{}).Unmarshal(r.data, &names); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"dentist"}, names.Values); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	r = call(t, h, "AppointmentInfo", &rpc.AppointmentRequest{UserID: "alice", AptName: "gym"})
	want := "grpc-status:5\r\ngrpc-message:No appointment found with that name.\r\n"
	if r.trailer != want {
		t.Errorf("info trailer %q, want %q", r.trailer, want)
	}
}

func TestRejects(t *testing.T) {
	h := setup(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/"+rpc.ServiceName+"/ListAppointments", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	h.ServeHTTP(rec, req)
	if rec.Code != 200 || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("preflight: %d %v", rec.Code, rec.Header())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/"+rpc.ServiceName+"/ListAppointments", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("json body: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/"+rpc.ServiceName+"/ListAppointments", bytes.NewReader([]byte{0, 0, 0, 0, 9, 1}))
	req.Header.Set("Content-Type", "application/grpc-web+proto")
	h.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), "grpc-status:3") {
		t.Errorf("short frame: %q", rec.Body.String())
	}
}

func TestEncodeMessage(t *testing.T) {
	if got := encodeMessage("100% done\néé"); got != "100%25 done%0A%C3%A9%C3%A9" {
		t.Errorf("got %q", got)
	}
}
