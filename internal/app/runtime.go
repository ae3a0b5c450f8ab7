package app

import (
	"os"
	"sync"
)

const testModeEnv = "BACKOFFICE_TEST_MODE"

// InTestMode reports whether BACKOFFICE_TEST_MODE=1. The binaries exit before
// dialing Postgres or Redis, and the router drops request logging and rate
// limiting. The variable is read once per process.
var InTestMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})
