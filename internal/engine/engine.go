package engine

import (
	"context"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/models"
	awssession "github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/session"
)

// Callback is the per-cell operation. It receives a session bound to
// (accountID, region) and its own copy of the run payload. Returning nil
// records means the cell had no data.
type Callback func(
	ctx context.Context,
	sess *awssession.Session,
	accountID, region string,
	payload Payload,
) ([]models.Record, error)

// SessionBroker produces a region-bound session for one account.
// *awssession.Broker satisfies it.
type SessionBroker interface {
	Acquire(ctx context.Context, accountID, region string) (*awssession.Session, error)
}

// Engine runs a Callback over every cell of a Scope.
//
// Iterate returns a mapping holding exactly one CellResult for every
// (account, region) in scope. Per-cell failures are recorded in the mapping
// and never abort the run; the only error returned is ErrEmptyScope (or a nil
// callback), before any network call is made.
type Engine interface {
	Iterate(ctx context.Context, scope models.Scope, cb Callback, payload Payload) (*models.ResultMapping, error)
}
