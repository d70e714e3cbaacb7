package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nfauzi/storefront/internal/common"
)

// LoginHandler binds the authenticated identity to the session and reconciles
// guest state with whatever the identity had saved.
type LoginHandler struct{}

// loginPayload carries the merge decisions that an interactive storefront
// would gather through confirm dialogs. Absent fields read as "no".
type loginPayload struct {
	Merge    bool `json:"merge"`
	UseGuest bool `json:"useGuest"`
}

// Login reconciles the guest cart, wishlist and compare list with the saved
// copies for the user carried by the access token.
func (h LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload loginPayload
	_ = json.NewDecoder(r.Body).Decode(&payload)

	prompter := common.PrompterFunc(func(_ context.Context, message string) bool {
		if strings.Contains(message, "merge") {
			return payload.Merge
		}
		return payload.UseGuest
	})
	if err := sess.Login(r.Context(), userID, prompter); err != nil {
		sess.RecordError(common.ErrTypeAuth, err.Error())
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to reconcile session", nil)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{
		"cart":     sess.Cart.Snapshot(),
		"wishlist": sess.Wishlist.Snapshot(),
		"compare":  sess.Compare.Snapshot(),
		"toast":    sess.Toaster.Snapshot(),
	})
}

// Logout detaches the identity and resets the session to a clean guest state.
// Saved state for the user is left untouched.
func (h LoginHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	sess.Logout()
	w.WriteHeader(http.StatusNoContent)
}
