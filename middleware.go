package ember

// Middleware is an interceptor installed at one of the three defined dispatch
// points. The concrete kind decides where it runs:
//
//   - `RequestInterceptor` observes every `Request` that resolved to a route,
//     before its handler runs, and may short-circuit dispatch by returning a
//     `Response`. Unrouted requests and OPTIONS pre-flights skip it.
//   - `ResponseInterceptor` observes every (`Request`, `Response`) pair after
//     the handler and returns the response to continue with, each seeing the
//     output of the previous one.
//   - `UpgradeInterceptor` runs before a WebSocket handshake and may refuse
//     the upgrade by returning a `Response`, which is sent instead and the
//     connection proceeds as plain HTTP.
//
// Within one kind, interceptors run in registration order. A panicking
// interceptor produces a 500 response carrying the panic message and aborts
// the rest of its chain.
type Middleware interface {
	middleware()
}

// RequestInterceptor intercepts requests before dispatch. A non-nil return
// value is sent as the response and the handler is skipped.
type RequestInterceptor func(*Request) *Response

func (RequestInterceptor) middleware() {}

// ResponseInterceptor intercepts responses after dispatch. The returned
// response replaces the given one; returning the argument unchanged is fine.
type ResponseInterceptor func(*Request, *Response) *Response

func (ResponseInterceptor) middleware() {}

// UpgradeInterceptor intercepts WebSocket upgrade requests before the
// handshake. A non-nil return value rejects the upgrade.
type UpgradeInterceptor func(*Request) *Response

func (UpgradeInterceptor) middleware() {}

// Middleware installs the ms on the s, each at the dispatch point its kind
// names.
func (s *Server) Middleware(ms ...Middleware) {
	for _, m := range ms {
		switch m := m.(type) {
		case RequestInterceptor:
			s.requestInterceptors = append(
				s.requestInterceptors,
				m,
			)
		case ResponseInterceptor:
			s.responseInterceptors = append(
				s.responseInterceptors,
				m,
			)
		case UpgradeInterceptor:
			s.upgradeInterceptors = append(
				s.upgradeInterceptors,
				m,
			)
		default:
			panic("ember: unknown middleware kind")
		}
	}
}
