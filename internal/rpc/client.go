package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls AppointmentService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out message, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *Client) AddAppointment(ctx context.Context, in *AddAppointmentRequest, opts ...grpc.CallOption) (*AddAppointmentResponse, error) {
	out := new(AddAppointmentResponse)
	if err := c.invoke(ctx, "AddAppointment", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListAppointments(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*Strings, error) {
	out := new(Strings)
	if err := c.invoke(ctx, "ListAppointments", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AppointmentInfo(ctx context.Context, in *AppointmentRequest, opts ...grpc.CallOption) (*Strings, error) {
	out := new(Strings)
	if err := c.invoke(ctx, "AppointmentInfo", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CancelAppointment(ctx context.Context, in *AppointmentRequest, opts ...grpc.CallOption) (*CancelAppointmentResponse, error) {
	out := new(CancelAppointmentResponse)
	if err := c.invoke(ctx, "CancelAppointment", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAllAppointments(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*Appointments, error) {
	out := new(Appointments)
	if err := c.invoke(ctx, "GetAllAppointments", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
