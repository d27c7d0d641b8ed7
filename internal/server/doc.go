// Package server provides HTTP routing, middleware, and the OAuth login flow for the web application.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally and registers method-qualified patterns,
// so requests with the wrong method receive 405 from the mux itself.
//
// # Middleware
//
// [RecoverPanic], [RequestID], [LogRequests] and [CommonHeaders] make up the standard chain. They are plain
// [Middleware] values and compose with github.com/justinas/alice.
//
// # OAuth Handler
//
// [OAuthHandler] serves /login and /callback. Login stores a fresh random state value in the session and
// redirects to the provider. Callback checks the state, exchanges the code and writes the token state into the
// session. A failed exchange discards the session.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
