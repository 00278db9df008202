// Package hedgegrpc provides hedged gRPC calls.
package hedgegrpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/hedgekit-go/hedgekit"
	"github.com/hedgekit-go/hedgekit/hedging"
)

// UnaryClientInterceptor returns a gRPC unary client interceptor that races
// hedged invocations via the strategy. `any` in hedging.Strategy[any] refers
// to the response of the gRPC call. Racing attempts unmarshal into the same
// reply message; the first unhandled outcome ends the race and cancels the
// outstanding hedges before the call returns.
func UnaryClientInterceptor(strategy hedging.Strategy[any]) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		_, err := strategy.Execute(hedgekit.NewContext(ctx), func(hctx *hedgekit.Context) (any, error) {
			if err := invoker(hctx.Context(), method, req, reply, cc, opts...); err != nil {
				return nil, err
			}
			return reply, nil
		})
		return err
	}
}
