package reconcile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nfauzi/storefront/internal/common"
	"github.com/nfauzi/storefront/internal/reconcile"
)

func TestEmptyGuestAdoptsSaved(t *testing.T) {
	saved := map[int64]string{2: "saved"}
	got, outcome := reconcile.Maps(context.Background(), "cart", nil, saved, common.PrompterFunc(func(context.Context, string) bool {
		t.Fatal("no prompt expected")
		return false
	}))
	require.Equal(t, reconcile.OutcomeAdoptedSaved, outcome)
	require.Equal(t, saved, got)
}

func TestEmptySavedAdoptsGuest(t *testing.T) {
	guest := map[int64]string{1: "guest"}
	got, outcome := reconcile.Maps(context.Background(), "cart", guest, nil, common.PrompterFunc(func(context.Context, string) bool {
		t.Fatal("no prompt expected")
		return false
	}))
	require.Equal(t, reconcile.OutcomeAdoptedGuest, outcome)
	require.Equal(t, guest, got)
}

func TestMergeUnionsWithGuestPrecedence(t *testing.T) {
	guest := map[int64]string{1: "guest", 3: "guest"}
	saved := map[int64]string{2: "saved", 3: "saved"}

	var asked []string
	prompter := common.PrompterFunc(func(_ context.Context, message string) bool {
		asked = append(asked, message)
		return true
	})
	got, outcome := reconcile.Maps(context.Background(), "cart", guest, saved, prompter)
	require.Equal(t, []string{"You have items in both your saved cart and your guest cart. Do you want to merge them?"}, asked)
	require.Equal(t, reconcile.OutcomeMerged, outcome)
	require.Equal(t, map[int64]string{1: "guest", 2: "saved", 3: "guest"}, got)
}

func TestDeclineMergeThenKeepGuest(t *testing.T) {
	guest := map[int64]string{1: "guest"}
	saved := map[int64]string{2: "saved"}

	prompter := &common.StaticPrompter{Answers: []bool{false, true}}
	got, outcome := reconcile.Maps(context.Background(), "wishlist", guest, saved, prompter)
	require.Equal(t, reconcile.OutcomeAdoptedGuest, outcome)
	require.Equal(t, guest, got)
}

func TestDeclineBothKeepsSaved(t *testing.T) {
	guest := map[int64]string{1: "guest"}
	saved := map[int64]string{2: "saved"}

	prompter := &common.StaticPrompter{Fallback: false}
	got, outcome := reconcile.Maps(context.Background(), "cart", guest, saved, prompter)
	require.Equal(t, reconcile.OutcomeAdoptedSaved, outcome)
	require.Equal(t, saved, got)
}

func TestResultIsDetached(t *testing.T) {
	saved := map[int64]string{2: "saved"}
	got, _ := reconcile.Maps(context.Background(), "cart", nil, saved, common.PrompterFunc(func(context.Context, string) bool { return false }))
	got[9] = "new"
	require.NotContains(t, saved, int64(9))
}
