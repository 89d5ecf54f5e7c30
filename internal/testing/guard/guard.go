package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PHARMAFLOW_TEST_MODE") == "" {
			_ = os.Setenv("PHARMAFLOW_TEST_MODE", "1")
		}
	})
}
