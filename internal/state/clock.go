package state

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// now is swapped in tests.
var now = time.Now

// NewOperationID builds "<userID>-<unix millis>-<random suffix>".
func NewOperationID(userID string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", userID, now().UnixMilli(), suffix)
}

// NewUserID returns a fresh connection identity.
func NewUserID() string {
	return uuid.NewString()
}
