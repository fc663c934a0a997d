// Package guard forces test mode before any package under test reads the
// flag. Import it for side effects from packages whose tests must not
// start runtime side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("ARTISOUQ_TEST_MODE") == "" {
			_ = os.Setenv("ARTISOUQ_TEST_MODE", "1")
		}
	})
}
