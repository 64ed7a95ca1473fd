package httpapi

import "net/http"

// NewRouter wires every API route, wrapping each with mw when given
// (the auth middleware in production, nil in embedded use and tests).
func NewRouter(svc *Service, wsHandler http.Handler, mw func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.Handler {
		handler := http.Handler(h)
		if mw != nil {
			handler = mw(handler)
		}
		return handler
	}

	mux.Handle("/api/titles", wrap(svc.handleTitles))
	mux.Handle("/api/titles/", wrap(svc.handleTitleByName))
	mux.Handle("/api/history", wrap(svc.handleFullHistory))
	mux.Handle("/api/holders/", wrap(svc.handleHoldings))
	mux.Handle("/api/config", wrap(svc.handleConfig))

	if wsHandler != nil {
		if mw != nil {
			mux.Handle("/ws/events", mw(wsHandler))
		} else {
			mux.Handle("/ws/events", wsHandler)
		}
	}

	return mux
}
