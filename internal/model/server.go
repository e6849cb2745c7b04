package model

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
)

// #region server
// RegressorServer is the server side of the regressor service.
type RegressorServer interface {
	Predict(ctx context.Context, in *structpb.ListValue) (*wrapperspb.DoubleValue, error)
}

var regressorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RegressorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: predictHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reimburse/v1/regressor.proto",
}

func predictHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.ListValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegressorServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PredictMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RegressorServer).Predict(ctx, req.(*structpb.ListValue))
	}
	return interceptor(ctx, in, info, handler)
}

type regressorServer struct {
	reg formula.Regressor
}

func (s *regressorServer) Predict(ctx context.Context, in *structpb.ListValue) (*wrapperspb.DoubleValue, error) {
	v, err := decodeVector(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	y, err := s.reg.Predict(ctx, v)
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return wrapperspb.Double(y), nil
}

// RegisterRegressorServer serves reg on s.
func RegisterRegressorServer(s grpc.ServiceRegistrar, reg formula.Regressor) {
	s.RegisterService(&regressorServiceDesc, &regressorServer{reg: reg})
}

// #endregion server
