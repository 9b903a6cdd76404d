// Package server provides the temporary local HTTP server that completes the
// Spotify OAuth flow for the CLI.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Handler
//
// [OAuthHandler] implements the authorization code flow across two routes.
// /login plants the state token in a cookie and redirects the browser to the
// provider's consent page; /callback checks the returned state against that
// cookie before exchanging the code for tokens.
//
// The result of the flow is delivered exactly once over a channel, and only
// the first callback is processed, so replayed or duplicate callbacks cannot
// overwrite a completed authorization.
//
// # Usage
//
// When the user runs an authentication command, an HTTP server starts on the
// configured localhost address, the browser is opened at /login, and the
// server shuts down after the result channel fires.
package server
