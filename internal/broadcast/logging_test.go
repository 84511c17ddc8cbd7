package broadcast

import (
	"os"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

func testLogger() log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	if os.Getenv("LINECAST_TEST_DEBUG") != "" {
		return l
	}
	return level.NewFilter(l, level.AllowWarn())
}
