// Package httpserver runs an http.Handler until its context ends and then
// drains in-flight requests within a bounded shutdown window.
//
//	srv := httpserver.New(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// Signal handling is left to the caller; cancel ctx (for example with
// signal.NotifyContext) to stop the server. Serve accepts a ready listener,
// which tests use with 127.0.0.1:0.
package httpserver
