package interfaces

import "context"

// Advisor sends a prompt to the decision service and returns its complete raw reply.
type Advisor interface {
	Advise(ctx context.Context, prompt string) (string, error)
}
