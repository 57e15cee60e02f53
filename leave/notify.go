package leave

import (
	"context"
	"log"
)

// =============================================================================
// LOG NOTIFIER - Default fire-and-forget implementation
// =============================================================================

// LogNotifier writes notifications to the process log instead of sending
// email. Used in dev and as the default until a mail provider is wired in.
type LogNotifier struct{}

func (LogNotifier) SendBulkApprovalNotification(_ context.Context, email, name string, requests []LeaveRequest, approverName string) error {
	log.Printf("[Notifier] bulk approval: %d request(s) for %s <%s> approved by %s",
		len(requests), name, email, approverName)
	return nil
}

var _ Notifier = LogNotifier{}
