package hedgegrpc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/hedgekit-go/hedgekit/hedging"
)

type pingReply struct {
	msg string
}

func TestUnaryClientInterceptorInvokes(t *testing.T) {
	interceptor := UnaryClientInterceptor(hedging.NewWithDelay[any](time.Second))
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		reply.(*pingReply).msg = "pong"
		return nil
	}
	reply := &pingReply{}

	err := interceptor(context.Background(), "/ping", nil, reply, nil, invoker)

	require.NoError(t, err)
	assert.Equal(t, "pong", reply.msg)
}

func TestUnaryClientInterceptorHedgesSlowCalls(t *testing.T) {
	var calls atomic.Int32
	interceptor := UnaryClientInterceptor(hedging.NewWithDelay[any](30 * time.Millisecond))
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		if calls.Add(1) == 1 {
			// The first call stalls until its attempt is cancelled
			<-ctx.Done()
			return ctx.Err()
		}
		reply.(*pingReply).msg = "hedged"
		return nil
	}
	reply := &pingReply{}

	err := interceptor(context.Background(), "/ping", nil, reply, nil, invoker)

	require.NoError(t, err)
	assert.Equal(t, "hedged", reply.msg)
	assert.Equal(t, int32(2), calls.Load())
}

func TestUnaryClientInterceptorReturnsError(t *testing.T) {
	interceptor := UnaryClientInterceptor(hedging.BuilderWithDelay[any](time.Second).WithMaxHedges(0).Build())
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return context.DeadlineExceeded
	}

	err := interceptor(context.Background(), "/ping", nil, &pingReply{}, nil, invoker)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
