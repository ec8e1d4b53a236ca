package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/arbor/internal/checksum"
	"github.com/starford/arbor/internal/index"
)

// Handler holds API route handlers.
type Handler struct {
	idx Index
}

// NewHandler creates a new Handler.
func NewHandler(idx Index) *Handler {
	return &Handler{idx: idx}
}

// nodePath extracts the node path from the URL (everything after the family
// segment). chi hands the wildcard over decoded unless the path needed a raw
// form, so the segments are taken from the escaped path instead and unescaped
// exactly once. Encoded slashes stay inside a name.
func nodePath(r *http.Request) index.Path {
	wild := chi.URLParam(r, "*")
	if strings.Trim(wild, "/") == "" {
		return nil
	}
	// The wildcard and the escaped path end in the same number of segments.
	n := strings.Count(wild, "/") + 1
	escaped := strings.Split(r.URL.EscapedPath(), "/")
	if n > len(escaped) {
		n = len(escaped)
	}
	out := make(index.Path, 0, n)
	for _, s := range escaped[len(escaped)-n:] {
		if s == "" {
			continue
		}
		if dec, err := url.PathUnescape(s); err == nil {
			s = dec
		}
		out = append(out, s)
	}
	return out
}

func familyParam(r *http.Request) (index.Family, error) {
	return index.ParseFamily(chi.URLParam(r, "family"))
}

// nodeQuery reads the optional ?kind= and ?record= parameters.
func nodeQuery(r *http.Request) (index.Kind, int, error) {
	q := r.URL.Query()
	var kind index.Kind
	if s := q.Get("kind"); s != "" {
		k, err := index.ParseKind(s)
		if err != nil {
			return index.KindInvalid, 0, err
		}
		kind = k
	}
	record := index.AnyRecord
	if s := q.Get("record"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return index.KindInvalid, 0, fmt.Errorf("invalid record %q", s)
		}
		record = n
	}
	return kind, record, nil
}

// Tree handles GET /api/tree/{family}.
//
//	@Summary		Snapshot a family tree
//	@Tags			tree
//	@Produce		json
//	@Param			family	path		string	true	"Family"	Enums(libraries, collections, keywords, search)
//	@Param			depth	query		int		false	"Levels below the root; negative for all"
//	@Param			If-None-Match	header	string	false	"ETag of a previous snapshot"
//	@Success		200		{object}	index.View
//	@Success		304		"Tree unchanged"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree/{family} [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	fam, err := familyParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	depth := -1
	if s := r.URL.Query().Get("depth"); s != "" {
		if depth, err = strconv.Atoi(s); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid depth"))
			return
		}
	}
	view, err := h.idx.Tree(r.Context(), fam, depth)
	if err != nil {
		writeError(w, "tree", err)
		return
	}
	body, err := json.Marshal(view)
	if err != nil {
		writeError(w, "tree", err)
		return
	}

	etag := `"` + checksum.Sum(body) + `"`
	w.Header().Set("ETag", etag)
	if strings.Trim(r.Header.Get("If-None-Match"), `"`) == strings.Trim(etag, `"`) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Node handles GET /api/nodes/{family}/*.
//
//	@Summary		Resolve a node by path
//	@Tags			tree
//	@Produce		json
//	@Param			family	path		string	true	"Family"
//	@Param			path	path		string	true	"Node path"
//	@Param			kind	query		string	true	"Terminal kind"
//	@Param			record	query		int		false	"Disambiguating record"
//	@Success		200		{object}	NodeResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{family}/{path} [get]
func (h *Handler) Node(w http.ResponseWriter, r *http.Request) {
	fam, err := familyParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	path := nodePath(r)
	if len(path) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	kind, record, err := nodeQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if kind == index.KindInvalid {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'kind' is required"))
		return
	}
	if kind.Family() != fam {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(fmt.Sprintf("%s is not in %s", kind, fam)))
		return
	}
	info, err := h.idx.Resolve(r.Context(), path, kind, record)
	if err != nil {
		writeError(w, "resolve", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Children handles GET /api/children/{family}/*.
//
//	@Summary		List the children of a node
//	@Tags			tree
//	@Produce		json
//	@Param			family	path		string	true	"Family"
//	@Param			path	path		string	false	"Node path; empty lists the root"
//	@Param			kind	query		string	false	"Terminal kind, required with a path"
//	@Param			record	query		int		false	"Disambiguating record"
//	@Success		200		{object}	ChildrenResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/children/{family}/{path} [get]
func (h *Handler) Children(w http.ResponseWriter, r *http.Request) {
	fam, err := familyParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	path := nodePath(r)
	kind, record, err := nodeQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if len(path) > 0 && kind == index.KindInvalid {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'kind' is required"))
		return
	}
	kids, err := h.idx.Children(r.Context(), fam, path, kind, record)
	if err != nil {
		writeError(w, "children", err)
		return
	}
	if path == nil {
		path = index.Path{}
	}
	writeJSON(w, http.StatusOK, ChildrenResponse{
		Family:   fam.String(),
		Path:     path,
		Children: kids,
	})
}

// Stats handles GET /api/stats.
//
//	@Summary		Node counts per family
//	@Tags			tree
//	@Produce		json
//	@Success		200	{object}	indexservice.Stats
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.idx.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
