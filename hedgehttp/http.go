// Package hedgehttp provides hedged HTTP round trips.
package hedgehttp

import (
	"net/http"

	"github.com/hedgekit-go/hedgekit"
	"github.com/hedgekit-go/hedgekit/hedging"
)

type roundTripper struct {
	next     http.RoundTripper
	strategy hedging.Strategy[*http.Response]
}

// NewRoundTripper returns an http.RoundTripper that races hedged round trips
// via the strategy and innerRoundTripper. If innerRoundTripper is nil,
// http.DefaultTransport will be used. Each attempt sends a clone of the
// request bound to that attempt's context, so requests with consumable bodies
// should not be hedged.
func NewRoundTripper(innerRoundTripper http.RoundTripper, strategy hedging.Strategy[*http.Response]) http.RoundTripper {
	if innerRoundTripper == nil {
		innerRoundTripper = http.DefaultTransport
	}
	return &roundTripper{
		next:     innerRoundTripper,
		strategy: strategy,
	}
}

func (f *roundTripper) RoundTrip(request *http.Request) (*http.Response, error) {
	return f.strategy.Execute(hedgekit.NewContext(request.Context()), func(ctx *hedgekit.Context) (*http.Response, error) {
		return f.next.RoundTrip(request.Clone(ctx.Context()))
	})
}

// Request performs hedged round trips for a single request.
type Request struct {
	strategy hedging.Strategy[*http.Response]
	request  *http.Request
	client   *http.Client
}

// NewRequest creates and returns a new Request that will perform hedged round
// trips via the request, client, and strategy.
func NewRequest(request *http.Request, client *http.Client, strategy hedging.Strategy[*http.Response]) *Request {
	return &Request{
		strategy: strategy,
		request:  request,
		client:   client,
	}
}

func (r *Request) Do() (*http.Response, error) {
	return r.strategy.Execute(hedgekit.NewContext(r.request.Context()), func(ctx *hedgekit.Context) (*http.Response, error) {
		return r.client.Do(r.request.Clone(ctx.Context()))
	})
}
