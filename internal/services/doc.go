// Package services implements the HTTP clients for the remote conversion backend and its text-to-speech API.
//
// # Transport
//
// [APIService] performs raw requests (GET, JSON POST, multipart POST) against the backend API root and
// returns an [APIResponse] with the status, headers and decoded JSON body. An optional bearer token is
// attached through an oauth2 static token source (see [NewHTTPClient]).
//
// # Conversion Backend
//
// [BackendService] wraps the REST surface consumed by the conversion orchestrator:
//   - GET /health : availability probe
//   - GET /formats : backend-declared catalog
//   - POST /upload : batch upload, returns a job id
//   - GET /status/{id} : job status, progress and per-file results
//   - POST /convert : synchronous single-file conversion
//   - GET /download/{file} : converted output
//
// Download paths returned by the backend are relative; [BackendService.DownloadURL] resolves them against
// the API origin with the /api segment stripped.
//
// # Error Handling
//
// Failures are typed so callers can branch with errors.As instead of matching strings:
//   - [ConnectivityError] : network failure or unexpected status; wraps [shared.ErrServiceUnavailable]
//   - [RejectedError] : 4xx on upload or convert; wraps [shared.ErrAPIRequest]
//
// A job that failed on the server is reported through [JobStatus], never as an error.
//
// # Text to Speech
//
// [TTSService] validates and clamps speech parameters client-side (rate 50..400, volume 0..1, preview
// text up to 500 characters) before calling /tts/convert or /tts/preview.
package services
