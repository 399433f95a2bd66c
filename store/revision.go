package store

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NextRevision returns a fresh revision token following prev.
// Tokens have the form "<generation>-<suffix>"; an empty prev starts at generation 1.
func NextRevision(prev string) string {
	gen := RevisionGeneration(prev) + 1
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return strconv.FormatInt(gen, 10) + "-" + suffix
}

// RevisionGeneration returns the numeric generation of a revision token, 0 if
// the token is empty or malformed.
func RevisionGeneration(rev string) int64 {
	head, _, ok := strings.Cut(rev, "-")
	if !ok {
		return 0
	}
	gen, err := strconv.ParseInt(head, 10, 64)
	if err != nil || gen < 0 {
		return 0
	}
	return gen
}

// checkRevision enforces optimistic concurrency. It returns the revision the
// write must be conditioned on.
func checkRevision(current *Document, rev string) (string, error) {
	if rev == AnyRevision {
		return current.Rev, nil
	}
	if rev != current.Rev {
		return "", newError(KindConflict, "revision %q does not match current revision of %s", rev, current.ID)
	}
	return rev, nil
}
