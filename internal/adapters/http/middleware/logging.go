package middleware

import (
	"log"
	"net/http"
	"time"
)

// loggingWriter records the status and body size of a response. Flush is
// forwarded so SSE endpoints keep streaming through the wrapper.
type loggingWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (lw *loggingWriter) WriteHeader(code int) {
	if lw.status == 0 {
		lw.status = code
	}
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggingWriter) Write(b []byte) (int, error) {
	if lw.status == 0 {
		lw.status = http.StatusOK
	}
	n, err := lw.ResponseWriter.Write(b)
	lw.bytes += n
	return n, err
}

func (lw *loggingWriter) Flush() {
	if f, ok := lw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Logger logs one line per request with method, path, status, size and
// latency.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingWriter{ResponseWriter: w}

		next.ServeHTTP(lw, r)

		log.Printf("%s %s %d %d bytes in %v",
			r.Method, r.URL.Path, lw.status, lw.bytes, time.Since(start))
	})
}
