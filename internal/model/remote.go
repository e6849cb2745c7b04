package model

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/danielpatrickdp/reimburse-harness/internal/features"
)

// #region service
const (
	// ServiceName is the fully qualified regressor service.
	ServiceName = "reimburse.v1.Regressor"

	// PredictMethod takes the feature vector as a ListValue of numbers and
	// answers with a DoubleValue.
	PredictMethod = "/" + ServiceName + "/Predict"
)

// RegressorClient is the client side of the regressor service.
type RegressorClient interface {
	Predict(ctx context.Context, in *structpb.ListValue, opts ...grpc.CallOption) (*wrapperspb.DoubleValue, error)
}

type regressorClient struct {
	cc grpc.ClientConnInterface
}

// NewRegressorClient binds the service to a connection.
func NewRegressorClient(cc grpc.ClientConnInterface) RegressorClient {
	return &regressorClient{cc: cc}
}

func (c *regressorClient) Predict(ctx context.Context, in *structpb.ListValue, opts ...grpc.CallOption) (*wrapperspb.DoubleValue, error) {
	out := new(wrapperspb.DoubleValue)
	if err := c.cc.Invoke(ctx, PredictMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion service

// #region remote
// Remote is a regressor served by another process over gRPC.
type Remote struct {
	conn   *grpc.ClientConn
	client RegressorClient
}

// NewRemote connects to a regressor server. The connection is lazy, so an
// unreachable address surfaces as a Predict error rather than here.
func NewRemote(addr string, opts ...grpc.DialOption) (*Remote, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Remote{conn: conn, client: NewRegressorClient(conn)}, nil
}

// NewRemoteWithService creates a Remote with an injected client.
// Used for testing without a real gRPC connection.
func NewRemoteWithService(svc RegressorClient) *Remote {
	return &Remote{client: svc}
}

// Close shuts down the gRPC connection.
func (r *Remote) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// Predict sends the feature vector and returns the model output.
func (r *Remote) Predict(ctx context.Context, v features.Vector) (float64, error) {
	resp, err := r.client.Predict(ctx, encodeVector(v))
	if err != nil {
		return 0, fmt.Errorf("predict rpc: %w", err)
	}
	return resp.GetValue(), nil
}

// #endregion remote

// #region vector-encoding
func encodeVector(v features.Vector) *structpb.ListValue {
	vals := make([]*structpb.Value, features.Count)
	for i, x := range v {
		vals[i] = structpb.NewNumberValue(x)
	}
	return &structpb.ListValue{Values: vals}
}

func decodeVector(l *structpb.ListValue) (features.Vector, error) {
	var v features.Vector
	if n := len(l.GetValues()); n != features.Count {
		return v, fmt.Errorf("feature vector has %d values, want %d", n, features.Count)
	}
	for i, val := range l.GetValues() {
		num, ok := val.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return v, fmt.Errorf("feature %d is not a number", i)
		}
		v[i] = num.NumberValue
	}
	return v, nil
}

// #endregion vector-encoding
