package handlers

import (
	"net/http"
	"time"
)

const dateLayout = "2006-01-02"

// GET /api/v1/usage
func (h *Handlers) UsageToday(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Router.Usage().Today())
}

// GET /api/v1/usage/range?from=YYYY-MM-DD&to=YYYY-MM-DD
//
// Both dates are local calendar days and inclusive.
func (h *Handlers) UsageRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := time.ParseInLocation(dateLayout, q.Get("from"), time.Local)
	if err != nil {
		respondError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to := from
	if v := q.Get("to"); v != "" {
		if to, err = time.ParseInLocation(dateLayout, v, time.Local); err != nil {
			respondError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
	}
	if to.Before(from) {
		respondError(w, http.StatusBadRequest, "to is before from")
		return
	}
	respondJSON(w, http.StatusOK, h.Router.Usage().Range(from, to.AddDate(0, 0, 1)))
}
