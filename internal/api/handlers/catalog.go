// catalog.go — публичные endpoints каталога: список, опции фильтров,
// запись, поиск, подсказки, счётчики советов и посещения.
package handlers

import (
	"net/http"

	"github.com/oapi-codegen/runtime"

	apierrors "github.com/shivnayan54/studyvibe/internal/api/errors"
	"github.com/shivnayan54/studyvibe/internal/domain/catalog"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
)

// listParams — query-параметры GET /api/v1/{collection}.
type listParams struct {
	Board   *string
	Class   *string
	Year    *int
	Subject *string
	Q       *string
	Sort    *string
	Group   *bool
}

// bindListParams связывает query-параметры списка.
func bindListParams(r *http.Request) (listParams, error) {
	var p listParams
	q := r.URL.Query()
	binds := []struct {
		name string
		dest any
	}{
		{"board", &p.Board},
		{"class", &p.Class},
		{"year", &p.Year},
		{"subject", &p.Subject},
		{"q", &p.Q},
		{"sort", &p.Sort},
		{"group", &p.Group},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return p, err
		}
	}
	return p, nil
}

// bindSort связывает необязательный параметр sort.
func bindSort(r *http.Request) (catalog.SortMode, error) {
	var sort *string
	if err := runtime.BindQueryParameter("form", true, false, "sort", r.URL.Query(), &sort); err != nil {
		return "", err
	}
	return catalog.ParseSortMode(deref(sort))
}

// bindSearch связывает необязательный параметр q.
func bindSearch(r *http.Request) (string, error) {
	var q *string
	if err := runtime.BindQueryParameter("form", true, false, "q", r.URL.Query(), &q); err != nil {
		return "", err
	}
	return deref(q), nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// ListRecords — GET /api/v1/{collection}.
func (h *APIHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionParam(w, r)
	if !ok {
		return
	}
	params, err := bindListParams(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	sort, err := catalog.ParseSortMode(deref(params.Sort))
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	query := catalog.Query{
		Filter: catalog.FilterSpec{
			Board:   deref(params.Board),
			Class:   deref(params.Class),
			Year:    deref(params.Year),
			Subject: deref(params.Subject),
		},
		Search: deref(params.Q),
		Sort:   sort,
		// PYQ по умолчанию группируются по предмету
		Group: collection == model.CollectionPYQs,
	}
	if params.Group != nil {
		query.Group = *params.Group
	}

	res, err := h.svc.Browse.List(r.Context(), collection, query)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listToAPI(res))
}

// FilterOptions — GET /api/v1/{collection}/options.
func (h *APIHandler) FilterOptions(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionParam(w, r)
	if !ok {
		return
	}
	opts, err := h.svc.Browse.Options(r.Context(), collection)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// GetRecord — GET /api/v1/{collection}/{id}.
func (h *APIHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionParam(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Browse.Get(r.Context(), collection, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domainToAPIRecord(*rec))
}

// Search — GET /api/v1/search.
func (h *APIHandler) Search(w http.ResponseWriter, r *http.Request) {
	query, err := bindSearch(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	sort, err := bindSort(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	res, err := h.svc.Browse.Search(r.Context(), query, sort)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := searchResponse{
		Query:    res.Query,
		Total:    res.Total,
		Sections: make([]searchSectionResponse, 0, len(res.Sections)),
	}
	for _, s := range res.Sections {
		resp.Sections = append(resp.Sections, searchSectionResponse{
			Collection: s.Collection,
			Items:      domainToAPIRecords(s.Records),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Suggestions — GET /api/v1/search/suggestions.
func (h *APIHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	query, err := bindSearch(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	suggestions, err := h.svc.Browse.Suggest(r.Context(), query)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": suggestions})
}

// Boards — GET /api/v1/boards. По умолчанию считает работы (papers).
func (h *APIHandler) Boards(w http.ResponseWriter, r *http.Request) {
	var raw *string
	if err := runtime.BindQueryParameter("form", true, false, "collection", r.URL.Query(), &raw); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	collection := model.CollectionPapers
	if raw != nil {
		c, err := model.ParseCollection(*raw)
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		collection = c
	}

	summary, err := h.svc.Browse.Boards(r.Context(), collection)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// TrackVisit — POST /api/v1/visits.
func (h *APIHandler) TrackVisit(w http.ResponseWriter, r *http.Request) {
	total, err := h.svc.Visitors.Track(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"total_visits": total})
}
