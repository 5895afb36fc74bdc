package staticserver

import (
	"fmt"
	"io"
	"net"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// lineFormatter prints only the entry message. Access lines are a plain
// transcript, not structured log records.
type lineFormatter struct{}

func (lineFormatter) Format(entry *log.Entry) ([]byte, error) {
	return []byte(entry.Message + "\n"), nil
}

func newAccessLogger(out io.Writer) *log.Logger {
	return &log.Logger{
		Out:       out,
		Formatter: lineFormatter{},
		Hooks:     make(log.LevelHooks),
		Level:     log.InfoLevel,
	}
}

// statusRecorder remembers the status code of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// clientAddress returns the host part of the peer address.
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// accessLine formats a request as
// `<client> - "<METHOD> <URI> <PROTO>" <status> -`. The size field is
// always "-".
func accessLine(r *http.Request, status int) string {
	return fmt.Sprintf("%s - \"%s %s %s\" %d -",
		clientAddress(r), r.Method, r.RequestURI, r.Proto, status)
}

func accessLogMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		logger.Info(accessLine(r, rec.status))
	})
}
