package sparsepce

import (
	"log/slog"

	"github.com/btracey/sparsepce/multiindex"
)

// merge intersects the final bases of the trials. When nothing is shared the
// policy decides between the constant term alone and ErrEmptyIntersection.
// fallback reports whether the constant term was substituted.
func merge(trials []Trial, dim int, policy EmptyPolicy, logger *slog.Logger) (index multiindex.Set, fallback bool, err error) {
	sets := make([]multiindex.Set, 0, len(trials))
	for _, t := range trials {
		if t.Model == nil {
			sets = nil
			break
		}
		sets = append(sets, t.Model.Index())
	}
	if len(sets) > 0 {
		index = multiindex.Intersect(sets...)
		if index.Len() > 0 {
			return index, false, nil
		}
	}
	if policy == FailEmpty {
		return multiindex.Set{}, false, ErrEmptyIntersection
	}
	logger.Warn("trials share no term, using the constant term",
		"trials", len(trials),
	)
	return multiindex.Zero(dim), true, nil
}
