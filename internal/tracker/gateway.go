package tracker

import "context"

// Submitter hands work to the remote processor.
// Errors are submission errors: no job exists and nothing is tracked.
type Submitter interface {
	Submit(ctx context.Context, params Params) (jobID string, err error)
}

// StatusQuerier asks the remote processor for a job's current status.
// Any returned error is a transport error and is retried by the poller.
type StatusQuerier interface {
	Query(ctx context.Context, jobID string) (*StatusReport, error)
}

// Gateway is the full remote processor contract.
type Gateway interface {
	Submitter
	StatusQuerier
}
