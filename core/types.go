package core

import "context"

// Worker is a long-running background job owned by a module. The host
// starts one per enabled module and stops the process if it returns.
type Worker interface {
	Run(ctx context.Context) error
}
