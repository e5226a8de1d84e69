package search

import (
	"context"

	"github.com/institution-matcher/app/models"
	"go.uber.org/zap"
)

// FallbackSource queries Primary and falls back to Secondary when Primary
// fails. Primary may be nil.
type FallbackSource struct {
	Primary   CandidateSource
	Secondary CandidateSource
	Logger    *zap.Logger
}

// Candidates implements CandidateSource
func (fs *FallbackSource) Candidates(ctx context.Context, query CandidateQuery) ([]models.RegistryEntry, error) {
	if fs.Primary != nil {
		entries, err := fs.Primary.Candidates(ctx, query)
		if err == nil {
			return entries, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		fs.Logger.Warn("Primary candidate source failed, falling back", zap.Error(err))
	}
	return fs.Secondary.Candidates(ctx, query)
}
