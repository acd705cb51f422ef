// Package clientip resolves the originating client address of a request
// served behind reverse proxies.
//
// Only the headers the deployment's proxy actually sets should be trusted.
// They are checked in the configured order; for comma separated headers such
// as X-Forwarded-For the first valid address wins. RemoteAddr is the
// fallback.
//
//	mw := clientip.Middleware("CF-Connecting-IP", "X-Forwarded-For")
//	ip := clientip.FromContext(r.Context())
package clientip
