package httpapi

import (
	"net/http"

	"github.com/nfauzi/storefront/internal/common"
)

// SlotsHandler exposes the two observable per-session slots: the toast
// notification and the last recorded error.
type SlotsHandler struct{}

// Toast returns the visible toast, if any, with its progress percent.
func (h SlotsHandler) Toast(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	common.JSONData(w, http.StatusOK, sess.Toaster.Snapshot())
}

// Error returns the error slot content. Reading does not clear it.
func (h SlotsHandler) Error(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	record, present := sess.CurrentError()
	if !present {
		common.JSONData(w, http.StatusOK, map[string]any{"present": false})
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"present": true, "error": record})
}
