package check

import "context"

// Requests publishes check requests onto the dispatch topic.
type Requests interface {
	PublishCheckRequested(ctx context.Context, req Request) error
}
