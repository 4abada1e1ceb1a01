// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package monitor

import (
	"fmt"
	"net/http"
)

// CacheHeader is the response header handlers set to "HIT" when they served
// from cache.
const CacheHeader = "X-Cache"

// Track times fn and records the outcome under endpoint. fn reports whether
// its result came from a cache. Panics are recorded as errors and re-raised.
func (r *Recorder) Track(endpoint string, fn func() (cacheHit bool, err error)) (err error) {
	start := r.clock.Now()
	var cacheHit bool

	defer func() {
		m := Metric{
			Endpoint:     endpoint,
			ResponseTime: r.clock.Since(start),
			StatusCode:   http.StatusOK,
			CacheHit:     cacheHit,
		}
		p := recover()
		switch {
		case p != nil:
			m.StatusCode = http.StatusInternalServerError
			m.Error = fmt.Sprintf("panic: %v", p)
		case err != nil:
			m.StatusCode = http.StatusInternalServerError
			m.Error = err.Error()
		}
		r.Record(m)
		if p != nil {
			panic(p)
		}
	}()

	cacheHit, err = fn()
	return err
}

// Middleware records every request as "METHOD /path". Responses with a 5xx
// status are recorded as errors. A panicking handler is recorded as a 500
// and the panic is re-raised for the recovery middleware above.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := r.clock.Now()

		wrapper := &statusWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		defer func() {
			m := Metric{
				Endpoint:     req.Method + " " + req.URL.Path,
				ResponseTime: r.clock.Since(start),
				StatusCode:   wrapper.statusCode,
				CacheHit:     w.Header().Get(CacheHeader) == "HIT",
			}
			p := recover()
			if p != nil {
				m.StatusCode = http.StatusInternalServerError
				m.Error = fmt.Sprintf("panic: %v", p)
			} else if wrapper.statusCode >= http.StatusInternalServerError {
				m.Error = http.StatusText(wrapper.statusCode)
			}
			r.Record(m)
			if p != nil {
				panic(p)
			}
		}()

		next.ServeHTTP(wrapper, req)
	})
}

// statusWriter captures the status code written by the handler.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.written {
		sw.statusCode = code
		sw.written = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.written = true
	return sw.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}
