// Package guard flips the binaries into test mode. Import it for side effects
// from tests that construct the app wiring.
package guard

import (
	"os"
	"sync"
)

// EnvTestMode mirrors the variable read by app.InTestMode.
const EnvTestMode = "FIELDOPS_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(EnvTestMode) == "" {
			_ = os.Setenv(EnvTestMode, "1")
		}
	})
}
