package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("DRAFTGATE_TEST_MODE") == "" {
			_ = os.Setenv("DRAFTGATE_TEST_MODE", "1")
		}
	})
}
