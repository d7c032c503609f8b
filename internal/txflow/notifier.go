package txflow

import (
	"github.com/stakemate/stakemate/internal/logging"
)

// Status is the lifecycle state of a submitted operation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Notification describes one transition in an operation's lifecycle.
type Notification struct {
	Op      string `json:"op"`
	TokenID uint64 `json:"tokenId,omitempty"`
	TxHash  string `json:"txHash,omitempty"`
	Status  Status `json:"status"`
	Error   string `json:"error,omitempty"`
}

// Notifier receives operation lifecycle notifications. The daemon fans
// them out to connected clients.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to the log. It is the default sink
// when no push channel is attached.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(n Notification) {
	switch n.Status {
	case StatusFailed:
		logging.Warn("operation failed",
			"op", n.Op, logging.TokenID(n.TokenID), "error", n.Error)
	default:
		logging.Info("operation "+string(n.Status),
			"op", n.Op, logging.TokenID(n.TokenID), "tx", n.TxHash)
	}
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }
