// Package domain defines the escalation worker surface
package domain

import "context"

// WorkerPort runs the escalation loop until the context ends
type WorkerPort interface {
	Run(ctx context.Context) error
}
