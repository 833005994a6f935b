//go:build statsview

package statsview

import (
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/sirupsen/logrus"
)

// DefaultAddr is the listen address used when none is given.
const DefaultAddr = "localhost:12600"

// Available reports whether the server was compiled in.
func Available() bool { return true }

// Launch starts the server on addr in the background. The returned function
// shuts it down.
func Launch(addr string, log logrus.FieldLogger) (stop func()) {
	if addr == "" {
		addr = DefaultAddr
	}

	viewer.SetConfiguration(viewer.WithAddr(addr))
	mgr := statsview.New()
	go mgr.Start()

	log.WithField("url", "http://"+addr+"/debug/statsview").Info("serving runtime statistics")
	return mgr.Stop
}
