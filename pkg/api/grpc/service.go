package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "infixcalc.v1.Calculator"

const (
	evaluateMethod        = "/" + ServiceName + "/Evaluate"
	getEvaluationMethod   = "/" + ServiceName + "/GetEvaluation"
	listEvaluationsMethod = "/" + ServiceName + "/ListEvaluations"
)

// CalculatorServer is the server API for the Calculator service. Messages
// are protobuf well-known types so no generated code is needed.
type CalculatorServer interface {
	// Evaluate evaluates an expression and returns the stored evaluation.
	Evaluate(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// GetEvaluation returns an evaluation by its full name.
	GetEvaluation(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// ListEvaluations returns the standalone evaluations in creation order.
	ListEvaluations(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

// RegisterCalculatorServer registers srv with s.
func RegisterCalculatorServer(s grpc.ServiceRegistrar, srv CalculatorServer) {
	s.RegisterService(&calculatorServiceDesc, srv)
}

var calculatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CalculatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
		{MethodName: "GetEvaluation", Handler: getEvaluationHandler},
		{MethodName: "ListEvaluations", Handler: listEvaluationsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "infixcalc/v1/calculator.proto",
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalculatorServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: evaluateMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CalculatorServer).Evaluate(ctx, req.(*wrapperspb.StringValue))
	})
}

func getEvaluationHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalculatorServer).GetEvaluation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getEvaluationMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CalculatorServer).GetEvaluation(ctx, req.(*wrapperspb.StringValue))
	})
}

func listEvaluationsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalculatorServer).ListEvaluations(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listEvaluationsMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CalculatorServer).ListEvaluations(ctx, req.(*emptypb.Empty))
	})
}

// CalculatorClient is the client API for the Calculator service.
type CalculatorClient interface {
	Evaluate(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetEvaluation(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListEvaluations(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
}

type calculatorClient struct {
	cc grpc.ClientConnInterface
}

// NewCalculatorClient returns a client for the Calculator service on cc.
func NewCalculatorClient(cc grpc.ClientConnInterface) CalculatorClient {
	return &calculatorClient{cc: cc}
}

func (c *calculatorClient) Evaluate(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, evaluateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *calculatorClient) GetEvaluation(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getEvaluationMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *calculatorClient) ListEvaluations(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, listEvaluationsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
