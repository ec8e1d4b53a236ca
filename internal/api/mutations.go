package api

import (
	"encoding/json"
	"net/http"

	"github.com/starford/arbor/internal/replication"
)

const maxBodyBytes = 1 << 20

// mutation builds a handler that decodes a request body, validates it and
// runs its delta through the local replica.
//
//	@Summary		Mutate the index
//	@Tags			mutations
//	@Accept			json
//	@Produce		json
//	@Success		200		{object}	MutationResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Failure		423		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mutations/{op} [post]
func (h *Handler) mutation(newReq func() mutationRequest, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		req := newReq()
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
		if err := req.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		d := req.Delta()
		res, err := h.idx.Mutate(r.Context(), d)
		if err != nil {
			writeError(w, d.Op.String(), err)
			return
		}
		writeJSON(w, status, res)
	}
}

// SubmitDelta handles POST /api/deltas.
//
//	@Summary		Queue a peer's delta for replay
//	@Tags			replication
//	@Accept			json
//	@Produce		json
//	@Param			body	body		replication.Message	true	"Delta message"
//	@Success		202		{object}	DeltaAccepted
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/deltas [post]
func (h *Handler) SubmitDelta(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var m replication.Message
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := validateMessage(&m); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.idx.Submit(r.Context(), m); err != nil {
		writeError(w, "submit delta", err)
		return
	}
	writeJSON(w, http.StatusAccepted, DeltaAccepted{ID: m.ID, Status: "queued"})
}
