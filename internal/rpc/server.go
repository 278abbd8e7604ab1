// Package rpc serves the appointment operations over gRPC as
// appointment.v1.AppointmentService. The service descriptor and the
// messages are written by hand; see proto/appointment/v1.
package rpc

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"appointment-manager/internal/appointment"
	"appointment-manager/internal/model"
	"appointment-manager/internal/telemetry"
)

const ServiceName = "appointment.v1.AppointmentService"

// Server implements AppointmentService on top of appointment.Service.
type Server struct {
	svc    *appointment.Service
	logger *telemetry.Logger
}

func NewServer(svc *appointment.Service, logger *telemetry.Logger) *Server {
	return &Server{svc: svc, logger: logger}
}

// Register adds the service to s. s must be built with
// grpc.ForceServerCodec(Codec{}).
func Register(s grpc.ServiceRegistrar, srv *Server) {
	s.RegisterService(&serviceDesc, srv)
}

type appointmentServer interface {
	addAppointment(context.Context, *telemetry.Operation, *AddAppointmentRequest) (*AddAppointmentResponse, error)
	listAppointments(context.Context, *telemetry.Operation, *UserRequest) (*Strings, error)
	appointmentInfo(context.Context, *telemetry.Operation, *AppointmentRequest) (*Strings, error)
	cancelAppointment(context.Context, *telemetry.Operation, *AppointmentRequest) (*CancelAppointmentResponse, error)
	getAllAppointments(context.Context, *telemetry.Operation, *UserRequest) (*Appointments, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*appointmentServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("AddAppointment", (*Server).addAppointment),
		unary("ListAppointments", (*Server).listAppointments),
		unary("AppointmentInfo", (*Server).appointmentInfo),
		unary("CancelAppointment", (*Server).cancelAppointment),
		unary("GetAllAppointments", (*Server).getAllAppointments),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "appointment/v1/appointment.proto",
}

// unary adapts call to a grpc.MethodDesc. Each call runs as one
// telemetry operation named after the method.
func unary[T any, PT interface {
	*T
	message
}, R message](name string, call func(*Server, context.Context, *telemetry.Operation, PT) (R, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PT(new(T))
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Server)
			handler := func(ctx context.Context, req any) (any, error) {
				var out R
				err := s.logger.Run(ctx, name, nil, func(ctx context.Context, op *telemetry.Operation) error {
					op.SetAttribute("rpc.method", fullMethod)
					var err error
					out, err = call(s, ctx, op, req.(PT))
					return err
				})
				if err != nil {
					return nil, toStatus(err)
				}
				return out, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// toStatus maps user errors to the matching gRPC code with their message
// and hides everything else behind Internal.
func toStatus(err error) error {
	var ue *telemetry.UserError
	if !errors.As(err, &ue) {
		return status.Error(codes.Internal, "internal error")
	}
	code := codes.InvalidArgument
	switch ue.StatusCode() {
	case http.StatusNotFound:
		code = codes.NotFound
	case http.StatusForbidden:
		code = codes.PermissionDenied
	case http.StatusUnauthorized:
		code = codes.Unauthenticated
	case http.StatusConflict:
		code = codes.Aborted
	case http.StatusTooManyRequests:
		code = codes.ResourceExhausted
	}
	return status.Error(code, ue.Msg)
}

func required(op *telemetry.Operation, name, v string) (string, error) {
	if strings.TrimSpace(v) == "" {
		return "", telemetry.Userf(http.StatusBadRequest, "No %s found", name)
	}
	op.SetAttribute("request."+name, v)
	return v, nil
}

func (s *Server) addAppointment(ctx context.Context, op *telemetry.Operation, req *AddAppointmentRequest) (*AddAppointmentResponse, error) {
	var a model.Appointment
	var err error
	if a.UserID, err = required(op, "userid", req.UserID); err != nil {
		return nil, err
	}
	if a.AptName, err = required(op, "aptname", req.AptName); err != nil {
		return nil, err
	}
	if a.Description, err = required(op, "desc", req.Description); err != nil {
		return nil, err
	}
	if req.DateTime == nil {
		return nil, telemetry.Userf(http.StatusBadRequest, "No datetime found")
	}
	if err := req.DateTime.CheckValid(); err != nil {
		return nil, telemetry.Userf(http.StatusBadRequest, "Invalid datetime: %v", err)
	}
	a.DateTime = req.DateTime.AsTime()
	a.UserEmail = req.UserEmail
	op.SetAttribute("request.datetime", a.DateTime.Format(model.DateTimeLayout))

	if err := s.svc.Add(ctx, op, a); err != nil {
		return nil, err
	}
	return &AddAppointmentResponse{ID: a.ID()}, nil
}

func (s *Server) listAppointments(ctx context.Context, op *telemetry.Operation, req *UserRequest) (*Strings, error) {
	userid, err := required(op, "userid", req.UserID)
	if err != nil {
		return nil, err
	}
	names, err := s.svc.Names(ctx, op, userid)
	if err != nil {
		return nil, err
	}
	return &Strings{Values: names}, nil
}

func (s *Server) appointmentInfo(ctx context.Context, op *telemetry.Operation, req *AppointmentRequest) (*Strings, error) {
	userid, aptname, err := appointmentKey(op, req)
	if err != nil {
		return nil, err
	}
	a, err := s.svc.Find(ctx, op, userid, aptname)
	if err != nil {
		return nil, err
	}
	return &Strings{Values: a.Describe()}, nil
}

func (s *Server) cancelAppointment(ctx context.Context, op *telemetry.Operation, req *AppointmentRequest) (*CancelAppointmentResponse, error) {
	userid, aptname, err := appointmentKey(op, req)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Cancel(ctx, op, userid, aptname); err != nil {
		return nil, err
	}
	return &CancelAppointmentResponse{}, nil
}

func (s *Server) getAllAppointments(ctx context.Context, op *telemetry.Operation, req *UserRequest) (*Appointments, error) {
	userid, err := required(op, "userid", req.UserID)
	if err != nil {
		return nil, err
	}
	apts, err := s.svc.All(ctx, op, userid)
	if err != nil {
		return nil, err
	}
	out := &Appointments{Appointments: make([]*Appointment, len(apts))}
	for i := range apts {
		out.Appointments[i] = toProto(apts[i])
	}
	return out, nil
}

func appointmentKey(op *telemetry.Operation, req *AppointmentRequest) (userid, aptname string, err error) {
	if userid, err = required(op, "userid", req.UserID); err != nil {
		return "", "", err
	}
	if aptname, err = required(op, "aptname", req.AptName); err != nil {
		return "", "", err
	}
	return userid, aptname, nil
}

func toProto(a model.Appointment) *Appointment {
	return &Appointment{
		ID:          a.ID(),
		UserID:      a.UserID,
		UserEmail:   a.UserEmail,
		AptName:     a.AptName,
		Description: a.Description,
		DateTime:    timestamppb.New(a.DateTime),
	}
}
