// Package tasks runs file conversion sessions with real-time progress reporting.
//
// # Orchestrator
//
// [Orchestrator] owns one session: the category and format selection, the working file batch with
// its image previews, and the current job. It moves through the states
//
//	Idle → Selecting → FilesReady → Converting → Completed
//
// and [Orchestrator.Reset] returns to Idle from anywhere. Validation failures never change state.
// Every conversion attempt carries a generation number so that progress and results of an attempt
// discarded by a reset are ignored.
//
// # Engines
//
// [SmartService] implements [Converter]. It probes the backend once, memoizes the answer, and routes
// batches either to the backend (upload, then poll until terminal) or to [MockEngine], which
// simulates conversion on a [Clock] and produces placeholder outputs in a [BlobStore]. A
// connectivity failure mid-flow marks the backend unavailable and retries on the mock engine once.
//
// # Progress Reporting
//
// Progress is sent as [ProgressUpdate] values on a caller-supplied channel. Sends use select with
// default so a slow consumer never stalls a conversion.
//
// # Downloads
//
// [Downloader] saves results from either engine to disk. Bulk downloads are staggered with a rate
// limiter, written by a small worker pool under a directory lock, and summarized in a manifest.
package tasks
