//go:build !ORT

package provider

import "github.com/knights-analytics/hugot"

// newHugotSession opens a pure-Go inference session. This is the default
// backend: slower than ONNX Runtime but needs no native libraries, which
// keeps the scanner a single static binary.
func newHugotSession() (*hugot.Session, error) {
	return hugot.NewGoSession()
}
