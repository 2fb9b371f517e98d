// Package httpserver exposes the generator over JSON/HTTP:
//
//	GET /v1/id                 mint one ID
//	GET /v1/id/batch?n=N       mint N IDs
//	GET /v1/inspect/{id}       decompose an ID
//	GET /v1/minid?t=RFC3339    smallest ID mintable at or after t
//	GET /v1/healthz            liveness plus machine id and epoch
//	GET /metrics               Prometheus metrics
//
// IDs are JSON strings, not numbers: values above 2^53 do not survive
// JavaScript number parsing.
package httpserver
