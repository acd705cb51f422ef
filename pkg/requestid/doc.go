// Package requestid tags every HTTP request with an id carried in the
// X-Request-ID header and the request context.
//
// A client-supplied id is kept when it is short and made of letters, digits,
// '-' and '_'; anything else is replaced with a fresh UUID. LoggerExtractor
// plugs the id into pkg/logger so every log line written with the request
// context carries request_id.
package requestid
