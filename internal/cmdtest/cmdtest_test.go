package cmdtest

import (
	"testing"
)

func TestMain(m *testing.M) {
	Main(m)
}

func TestSkypack(t *testing.T) {
	Run(t, "testdata/skypack")
}
