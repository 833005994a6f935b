//go:build !statsview

package statsview

import "github.com/sirupsen/logrus"

// DefaultAddr is the listen address used when none is given.
const DefaultAddr = "localhost:12600"

// Available reports whether the server was compiled in.
func Available() bool { return false }

// Launch only warns: the server needs the statsview build tag.
func Launch(addr string, log logrus.FieldLogger) (stop func()) {
	log.Warn("statsview is not compiled in; rebuild with -tags statsview")
	return func() {}
}
