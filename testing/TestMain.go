package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("DASHBOARD_TEST_MODE", "1")
		if os.Getenv("SEED_PASSWORD") == "" {
			_ = os.Setenv("SEED_PASSWORD", "password123")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
