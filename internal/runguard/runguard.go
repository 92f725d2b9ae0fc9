// Package runguard serializes iterations on one PRD across processes. The
// guard is advisory: it compares the PRD's activeRunId against the run id
// the driver session supplies, which is enough to catch two automated
// loops racing on the same slug. It does not defend against adversarial
// edits, and there is no distributed lock behind it.
package runguard

import (
	ierr "github.com/mark3labs/prdloop/internal/errors"
	"github.com/mark3labs/prdloop/internal/logger"
	"github.com/mark3labs/prdloop/internal/prd"
)

// Token proves the guard is held for a slug.
type Token struct {
	Slug  string
	RunID string
}

// Acquire claims the guard for doc using the session's run id. A fresh PRD
// (empty activeRunId) is claimed by persisting the supplied id; a PRD
// already carrying the same id is a resume and succeeds, which also makes
// retrying after a crash safe. Any other id means a different session is
// active and the caller must back off.
func Acquire(store *prd.Store, doc *prd.Document, runID string) (*Token, error) {
	switch doc.ActiveRunID {
	case "":
		doc.ActiveRunID = runID
		if err := store.Persist(doc); err != nil {
			return nil, err
		}
		logger.Debug("Run guard claimed for %s by run %s", doc.Slug, runID)
	case runID:
		logger.Debug("Run guard for %s already held by this run", doc.Slug)
	default:
		return nil, &ierr.ConcurrencyError{Slug: doc.Slug, ActiveRunID: doc.ActiveRunID}
	}
	return &Token{Slug: doc.Slug, RunID: runID}, nil
}

// Release clears the guard so a later session can claim the slug without
// knowing this session's run id. A crash before Release leaves the id in
// place; the same session retries cleanly, anyone else passes --run-id.
func Release(store *prd.Store, doc *prd.Document, token *Token) error {
	if token == nil || doc.ActiveRunID != token.RunID {
		return nil
	}
	doc.ActiveRunID = ""
	if err := store.Persist(doc); err != nil {
		return err
	}
	logger.Debug("Run guard released for %s", token.Slug)
	return nil
}
