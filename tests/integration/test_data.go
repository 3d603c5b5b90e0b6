package integration

import (
	"fmt"
	"time"
)

// TestCredentials generates unique test account credentials
func TestCredentials(suffix string) (email, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "Sunlit#Harbor42qz"
	return
}
