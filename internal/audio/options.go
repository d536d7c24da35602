package audio

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Options configures a Speaker
type Options struct {
	HTTPClient *http.Client
	// Resolve turns a track URL into something fetchable, e.g. by
	// prefixing the server address to a relative media path.
	Resolve      func(string) string
	TickInterval time.Duration
	Logger       *logrus.Logger
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if o.Resolve == nil {
		o.Resolve = func(u string) string { return u }
	}
	if o.TickInterval <= 0 {
		o.TickInterval = 250 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}
