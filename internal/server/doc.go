// Package server provides HTTP routing, middleware, and the JSON API of a local conversion session.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so path wildcards are read with
// [http.Request.PathValue].
//
// # Session API
//
// [API] exposes one [tasks.Orchestrator] over JSON:
//
//	GET    /health                              → service and backend availability
//	GET    /formats                             → catalog by category
//	GET    /session                             → state, selection, files, job
//	POST   /session/selection                   → set category and formats
//	POST   /session/files                       → multipart "files" upload
//	DELETE /session/files/{index}               → remove one file
//	POST   /session/convert                     → 202, conversion runs in the background
//	POST   /session/reset                       → cancel and clear
//	GET    /session/results                     → job status with per-file results
//	GET    /session/results/{index}/download    → converted file content
//	GET    /session/events                      → server-sent progress events
//	GET    /notifications                       → active notifications
//	DELETE /notifications/{id}                  → dismiss a notification
//	GET    /history?limit=&format=              → recent conversions (json, csv, markdown, txt)
//
// Errors use the backend's body shape, {"success": false, "error": "..."}.
//
// # Progress Streaming
//
// A [Broadcaster] fans the orchestrator's progress channel out to every open event stream. Slow streams
// drop updates rather than stall the conversion.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
