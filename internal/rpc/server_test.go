package rpc_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/timestamppb"

	"appointment-manager/internal/appointment"
	"appointment-manager/internal/auth"
	"appointment-manager/internal/middleware"
	"appointment-manager/internal/rpc"
	"appointment-manager/internal/store"
	"appointment-manager/internal/telemetry"
)

type env struct {
	client *rpc.Client
	spans  *bytes.Buffer
}

func setup(t *testing.T, secret string) *env {
	t.Helper()
	spans := &bytes.Buffer{}
	logger := telemetry.NewLogger(telemetry.NewExporter(spans))
	svc := appointment.NewService(store.NewMemory())

	srv := grpc.NewServer(
		grpc.ForceServerCodec(rpc.Codec{}),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			middleware.RequestID(),
			middleware.Auth(secret),
		),
	)
	rpc.Register(srv, rpc.NewServer(svc, logger))

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
	return &env{client: rpc.NewClient(conn), spans: spans}
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

var dentistTime = time.Date(2025, 5, 1, 15, 0, 0, 0, time.UTC)

func addDentist() *rpc.AddAppointmentRequest {
	return &rpc.AddAppointmentRequest{
		UserID:      "alice",
		AptName:     "dentist",
		Description: "cleaning",
		DateTime:    timestamppb.New(dentistTime),
	}
}

func TestScenario(t *testing.T) {
	e := setup(t, "")
	c := e.client

	added, err := c.AddAppointment(ctx(t), addDentist())
	if err != nil {
		t.Fatal(err)
	}
	if added.ID != "alice-dentist" {
		t.Errorf("id = %q", added.ID)
	}

	list, err := c.ListAppointments(ctx(t), &rpc.UserRequest{UserID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"dentist"}, list.Values); diff != "" {
		t.Errorf("list (-want +got):\n%s", diff)
	}

	info, err := c.AppointmentInfo(ctx(t), &rpc.AppointmentRequest{UserID: "alice", AptName: "dentist"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"Appointment Name: dentist",
		"Appointment Description: cleaning",
		"Appointment Date/Time (MM/DD/YYYY hh:mm:ms): 05/01/2025 3:00 PM",
	}
	if diff := cmp.Diff(want, info.Values); diff != "" {
		t.Errorf("info (-want +got):\n%s", diff)
	}

	if _, err := c.CancelAppointment(ctx(t), &rpc.AppointmentRequest{UserID: "alice", AptName: "dentist"}); err != nil {
		t.Fatal(err)
	}
	list, err = c.ListAppointments(ctx(t), &rpc.UserRequest{UserID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Values) != 0 {
		t.Errorf("after cancel: %v", list.Values)
	}
}

func TestGetAllAppointments(t *testing.T) {
	e := setup(t, "")
	req := addDentist()
	req.UserEmail = "alice@example.com"
	if _, err := e.client.AddAppointment(ctx(t), req); err != nil {
		t.Fatal(err)
	}

	all, err := e.client.GetAllAppointments(ctx(t), &rpc.UserRequest{UserID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Appointments) != 1 {
		t.Fatalf("got %d appointments", len(all.Appointments))
	}
	a := all.Appointments[0]
	if a.ID != "alice-dentist" || a.UserEmail != "alice@example.com" || a.Description != "cleaning" {
		t.Errorf("got %+v", a)
	}
	if !a.DateTime.AsTime().Equal(dentistTime) {
		t.Errorf("datetime = %v", a.DateTime.AsTime())
	}
}

func TestErrors(t *testing.T) {
	e := setup(t, "")

	_, err := e.client.AppointmentInfo(ctx(t), &rpc.AppointmentRequest{UserID: "alice", AptName: "nothing"})
	if st := status.Convert(err); st.Code() != codes.NotFound || st.Message() != "No appointment found with that name." {
		t.Errorf("info missing: %v", err)
	}

	req := addDentist()
	req.UserID = ""
	_, err = e.client.AddAppointment(ctx(t), req)
	if st := status.Convert(err); st.Code() != codes.InvalidArgument || st.Message() != "No userid found" {
		t.Errorf("add without userid: %v", err)
	}

	req = addDentist()
	req.DateTime = nil
	_, err = e.client.AddAppointment(ctx(t), req)
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("add without datetime: %v", err)
	}

	// cancelling nothing succeeds
	if _, err := e.client.CancelAppointment(ctx(t), &rpc.AppointmentRequest{UserID: "alice", AptName: "nothing"}); err != nil {
		t.Errorf("cancel missing: %v", err)
	}
}

func TestAuth(t *testing.T) {
	const secret = "rpc-secret"
	e := setup(t, secret)
	bob, _ := auth.MakeToken("bob", secret)
	alice, _ := auth.MakeToken("alice", secret)

	as := func(tok string) context.Context {
		return metadata.AppendToOutgoingContext(ctx(t), "authorization", "Bearer "+tok)
	}

	if _, err := e.client.AddAppointment(ctx(t), addDentist()); status.Code(err) != codes.Unauthenticated {
		t.Errorf("anonymous: %v", err)
	}
	if _, err := e.client.AddAppointment(as(bob), addDentist()); status.Code(err) != codes.PermissionDenied {
		t.Errorf("bob for alice: %v", err)
	}
	if _, err := e.client.AddAppointment(as(alice), addDentist()); err != nil {
		t.Errorf("alice: %v", err)
	}
}

func TestSpans(t *testing.T) {
	e := setup(t, "")
	c := metadata.AppendToOutgoingContext(ctx(t), "x-request-id", "rpc-req-1")
	if _, err := e.client.ListAppointments(c, &rpc.UserRequest{UserID: "alice"}); err != nil {
		t.Fatal(err)
	}

	var rec struct {
		Name       string            `json:"name"`
		Status     string            `json:"status"`
		Attributes map[string]string `json:"attributes"`
	}
	sc := bufio.NewScanner(bytes.NewReader(e.spans.Bytes()))
	if !sc.Scan() {
		t.Fatal("no span exported")
	}
	if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if sc.Scan() {
		t.Errorf("more than one span: %s", e.spans.String())
	}
	if rec.Name != "ListAppointments" || rec.Status != "ok" {
		t.Errorf("got %s %s", rec.Name, rec.Status)
	}
	if rec.Attributes["rpc.method"] != "/appointment.v1.AppointmentService/ListAppointments" {
		t.Errorf("rpc.method = %q", rec.Attributes["rpc.method"])
	}
	if rec.Attributes["request.id"] != "rpc-req-1" {
		t.Errorf("request.id = %q", rec.Attributes["request.id"])
	}
}
