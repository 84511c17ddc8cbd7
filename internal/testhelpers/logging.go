package testhelpers

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// NewRelativeTimeLogger returns a logfmt logger that stamps every line with
// the time since its creation. Only warnings and errors pass unless the
// LINECAST_TEST_DEBUG environment variable is set.
func NewRelativeTimeLogger(w io.Writer) log.Logger {
	if w == nil {
		w = os.Stderr
	}

	rtl := &relTimeLogger{start: time.Now()}

	l := log.NewLogfmtLogger(log.NewSyncWriter(w))
	l = log.With(l, "t", log.Valuer(rtl.diffTime))

	if os.Getenv("LINECAST_TEST_DEBUG") != "" {
		return level.NewFilter(l, level.AllowAll())
	}
	return level.NewFilter(l, level.AllowWarn())
}

type relTimeLogger struct {
	sync.Mutex

	start time.Time
}

func (rtl *relTimeLogger) diffTime() interface{} {
	rtl.Lock()
	defer rtl.Unlock()
	return time.Since(rtl.start)
}
