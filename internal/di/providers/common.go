package providers

import "time"

// shutdownTimeout bounds how long a handle waits for in-flight work when
// the container shuts down.
const shutdownTimeout = 30 * time.Second
