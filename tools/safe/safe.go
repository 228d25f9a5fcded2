package safe

import (
	"callbridge/logger"
)

// Go starts a goroutine that recovers from panics, so a single bad
// connection or sweep cannot take down the process.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
