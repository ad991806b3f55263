// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wiki

import (
	"context"
	"errors"
	"fmt"
)

// Cleanup reports what RemoveNewPages did, title by title.
type Cleanup struct {
	Deleted  []string
	Reverted []string

	// Skipped holds titles someone else had already dealt with: the
	// page was gone, or a later edit made the rollback moot.
	Skipped []string
}

// RemoveNewPages undoes a user's contributions: pages the user created
// are deleted and pages the user only edited are rolled back. Each title
// is handled once, according to the user's earliest contribution to it.
//
// Every remote call is a separate gateway call, so when gateway is a
// Session other callers can run between them. A failure on one title
// does not stop the rest; the joined error lists every failure.
func RemoveNewPages(ctx context.Context, gateway Gateway, user string) (Cleanup, error) {
	var cleanup Cleanup
	contributions, err := gateway.FetchContributions(ctx, user)
	if err != nil {
		return cleanup, err
	}

	seen := make(map[string]bool, len(contributions))
	var errs []error
	for _, contribution := range contributions {
		if seen[contribution.Title] {
			continue
		}
		seen[contribution.Title] = true

		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if contribution.New {
			err := gateway.DeletePage(ctx, contribution.Title, DefaultDeleteReason)
			switch {
			case err == nil:
				cleanup.Deleted = append(cleanup.Deleted, contribution.Title)
			case IsCode(err, CodeMissingTitle):
				cleanup.Skipped = append(cleanup.Skipped, contribution.Title)
			default:
				errs = append(errs, fmt.Errorf("deleting %q: %w", contribution.Title, err))
			}
			continue
		}

		err := gateway.RollbackPage(ctx, contribution.Title, user)
		if IsCode(err, CodeOnlyAuthor) {
			// The page's creator is gone from history but the user wrote
			// every remaining revision.
			err = gateway.DeletePage(ctx, contribution.Title, DefaultDeleteReason)
			if err == nil {
				cleanup.Deleted = append(cleanup.Deleted, contribution.Title)
				continue
			}
		}
		switch {
		case err == nil:
			cleanup.Reverted = append(cleanup.Reverted, contribution.Title)
		case IsCode(err, CodeAlreadyRolled), IsCode(err, CodeMissingTitle):
			cleanup.Skipped = append(cleanup.Skipped, contribution.Title)
		default:
			errs = append(errs, fmt.Errorf("reverting %q: %w", contribution.Title, err))
		}
	}
	return cleanup, errors.Join(errs...)
}
