// Package server provides HTTP routing, middleware, the JSON API, and OAuth callback handling.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation registers method patterns ("GET /api/sessions/{id}") on [http.ServeMux].
//
// # JSON API
//
// [APIHandler] exposes sessions, resolved media and channel validation:
//
//	GET    /health
//	GET    /api/sessions
//	POST   /api/sessions
//	GET    /api/sessions/{id}
//	PATCH  /api/sessions/{id}
//	DELETE /api/sessions/{id}
//	PUT    /api/sessions/{id}/favorite
//	GET    /api/sessions/{id}/media?limit=N
//	GET    /api/channels/{name}
//	GET    /shared/{id}
//
// [RequireAPIKey] guards every /api/ route with a bearer key. Errors are JSON bodies of the form
// {"error": "...", "code": "..."} with the status derived from the shared sentinel errors.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the authorization code callback used by `joip auth login`.
// It validates the state parameter (CSRF protection), exchanges the code through a [CodeExchanger],
// and sends the result through a channel. It only processes one callback to prevent replay attacks.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
