// Package reconcile decides what happens to session-scoped state when a user
// authenticates: adopt the saved copy, keep the guest copy, or merge the two.
// The same policy applies to the cart, the wishlist and the compare list.
package reconcile

import (
	"context"
	"fmt"

	"github.com/nfauzi/storefront/internal/common"
)

// Outcome reports which branch of the policy was taken.
type Outcome string

const (
	// OutcomeAdoptedSaved replaced the guest state with the persisted copy.
	OutcomeAdoptedSaved Outcome = "adopted_saved"
	// OutcomeAdoptedGuest kept the guest state; callers persist it under the identity.
	OutcomeAdoptedGuest Outcome = "adopted_guest"
	// OutcomeMerged unioned both sources.
	OutcomeMerged Outcome = "merged"
)

// Maps reconciles a guest map with a saved map keyed by product id. When both
// sides hold items the user is asked to merge; declining that asks whether to
// continue with the guest copy. On a merge, guest entries win id collisions so
// the session the user was just interacting with is never overruled silently.
func Maps[V any](ctx context.Context, listName string, guest, saved map[int64]V, prompter common.Prompter) (map[int64]V, Outcome) {
	switch {
	case len(guest) == 0:
		return clone(saved), OutcomeAdoptedSaved
	case len(saved) == 0:
		return clone(guest), OutcomeAdoptedGuest
	}

	mergeQ := fmt.Sprintf("You have items in both your saved %s and your guest %s. Do you want to merge them?", listName, listName)
	if prompter.Confirm(ctx, mergeQ) {
		merged := clone(saved)
		for id, v := range guest {
			merged[id] = v
		}
		return merged, OutcomeMerged
	}

	guestQ := fmt.Sprintf("Would you like to continue with your guest %s instead of your saved %s?", listName, listName)
	if prompter.Confirm(ctx, guestQ) {
		return clone(guest), OutcomeAdoptedGuest
	}
	return clone(saved), OutcomeAdoptedSaved
}

func clone[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
