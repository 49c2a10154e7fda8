package gene

import (
	"context"
	"errors"
	"fmt"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
)

// Chain asks each locator in order and returns the first position found.
// A gene unknown to every source is domain.ErrGeneNotFound. If any source was
// unavailable and none found the gene, the result is domain.ErrGeneLookupUnavailable.
type Chain []Locator

// Locate implements Locator.
func (c Chain) Locate(ctx context.Context, gene string) (Position, error) {
	var unavailable []error
	for _, l := range c {
		pos, err := l.Locate(ctx, gene)
		switch {
		case err == nil:
			return pos, nil
		case errors.Is(err, domain.ErrGeneNotFound):
			continue
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Position{}, fmt.Errorf("%w: %w", domain.ErrGeneLookupUnavailable, ctxErr)
			}
			unavailable = append(unavailable, err)
		}
	}

	if len(unavailable) > 0 {
		err := errors.Join(unavailable...)
		if !errors.Is(err, domain.ErrGeneLookupUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrGeneLookupUnavailable, err)
		}
		return Position{}, err
	}
	return Position{}, fmt.Errorf("%w: %s", domain.ErrGeneNotFound, gene)
}
