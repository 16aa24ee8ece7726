// Package common holds the configuration structures and the logger
// factory shared by the server and client sides of the HTTP API.
//
// Key Components:
//
//   - ServerConfig: All startup-time parameters of the cKV server (HTTP
//     endpoint, store capacity, write-ahead log path, background task
//     intervals, log level) with validation and a pretty-printed String
//     form used at startup.
//
//   - ClientConfig: Connection parameters for the HTTP client (endpoint,
//     timeout, retry count).
//
//   - NewLogger: The zap logger factory. The server creates one root
//     logger and hands named sub-loggers to each subsystem.
package common
