package http

import (
	"net/http"

	"go.uber.org/zap"
)

// Services bundles what the routes need.
type Services struct {
	Holds       HoldAcquirer
	Releases    HoldReleaser
	Confirms    HoldConfirmer
	Allocations AllocationCanceller
	Waitlist    WaitlistService
	Events      AdminEventService
	Resources   AdminResourceService
}

// RouterOptions configures the middleware around the routes.
type RouterOptions struct {
	CORSOrigins []string
	Limiter     *RateLimiter
	Ping        Pinger
	Logger      *zap.Logger
}

func NewRouter(svc Services, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", HealthHandler(opts.Ping))
	mux.Handle("/holds", HandleCreateHold(svc.Holds))
	mux.Handle("/holds/", HandleHoldAction(svc.Confirms, svc.Releases))
	mux.Handle("/allocations/", HandleAllocationAction(svc.Allocations))
	mux.Handle("/waitlist", HandleEnqueue(svc.Waitlist))
	mux.Handle("/waitlist/", HandleWaitlistAction(svc.Waitlist))
	mux.Handle("/admin/events", HandleAdminEvents(svc.Events))
	mux.Handle("/admin/events/", HandleAdminResources(svc.Resources))
	mux.Handle("/", NotFoundHandler())

	var handler http.Handler = mux
	handler = RateLimit(opts.Limiter, handler)
	handler = CORS(opts.CORSOrigins, handler)
	return RequestLogger(handler, opts.Logger)
}
