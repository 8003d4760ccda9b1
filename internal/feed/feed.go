package feed

import (
	"context"

	"Canada28Bot/internal/model"
)

// Feed fetches the latest published draw.
// Any failure, including a malformed payload, means "no result this attempt".
type Feed interface {
	Latest(ctx context.Context) (model.DrawResult, error)
	Name() string
}
