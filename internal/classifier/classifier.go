// Package classifier turns raw evidence text into an
// EvidenceClassification. The engine consumes the interface opaquely;
// how classification works is not part of the core's contract.
package classifier

import (
	"context"

	"github.com/diagx/converge/internal/diagnosis/types"
)

// Classifier classifies a piece of evidence text against the case's
// active evidence requests.
type Classifier interface {
	// Classify returns the classification for text. activeRequests are
	// the requests still worth matching against; implementations may
	// only return request ids drawn from them.
	Classify(ctx context.Context, text string, activeRequests []*types.EvidenceRequest) (types.EvidenceClassification, error)
}
