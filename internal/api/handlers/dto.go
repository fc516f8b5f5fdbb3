// dto.go — JSON-представления ответов API (схемы openapi.yaml).
package handlers

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/shivnayan54/studyvibe/internal/domain/catalog"
	"github.com/shivnayan54/studyvibe/internal/domain/link"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
	"github.com/shivnayan54/studyvibe/internal/service"
)

type recordResponse struct {
	ID         openapi_types.UUID `json:"id"`
	Board      string             `json:"board"`
	Class      string             `json:"class"`
	Year       int                `json:"year"`
	Subject    string             `json:"subject"`
	Title      string             `json:"title"`
	FileURL    string             `json:"file_url"`
	PreviewURL string             `json:"preview_url"`
	UploadDate time.Time          `json:"upload_date"`
	Source     model.Source       `json:"source"`
}

type groupResponse struct {
	Subject string           `json:"subject"`
	Count   int              `json:"count"`
	Items   []recordResponse `json:"items"`
}

type listResponse struct {
	Collection model.Collection      `json:"collection"`
	Items      []recordResponse      `json:"items"`
	Groups     []groupResponse       `json:"groups,omitempty"`
	Total      int                   `json:"total"`
	Options    catalog.FilterOptions `json:"options"`
	LoadedAt   time.Time             `json:"loaded_at"`
}

type searchSectionResponse struct {
	Collection model.Collection `json:"collection"`
	Items      []recordResponse `json:"items"`
}

type searchResponse struct {
	Query    string                  `json:"query"`
	Total    int                     `json:"total"`
	Sections []searchSectionResponse `json:"sections"`
}

type gateResponse struct {
	State      string              `json:"state"`
	Remaining  int                 `json:"remaining"`
	Collection model.Collection    `json:"collection,omitempty"`
	ID         *openapi_types.UUID `json:"id,omitempty"`
	Title      string              `json:"title,omitempty"`
}

type statsResponse struct {
	TotalPapers   int   `json:"total_papers"`
	TotalPYQs     int   `json:"total_pyqs"`
	RecentUploads int   `json:"recent_uploads"`
	TotalVisits   int64 `json:"total_visits"`
}

// domainToAPIRecord — маппинг model.Record → recordResponse.
func domainToAPIRecord(r model.Record) recordResponse {
	return recordResponse{
		ID:         r.ID,
		Board:      r.Board,
		Class:      r.Class,
		Year:       r.Year,
		Subject:    r.Subject,
		Title:      r.Title,
		FileURL:    r.FileURL,
		PreviewURL: link.PreviewURL(r.FileURL),
		UploadDate: r.UploadDate,
		Source:     r.Source,
	}
}

func domainToAPIRecords(records []model.Record) []recordResponse {
	out := make([]recordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, domainToAPIRecord(r))
	}
	return out
}

func listToAPI(res *service.ListResult) listResponse {
	resp := listResponse{
		Collection: res.Collection,
		Items:      domainToAPIRecords(res.View.Records),
		Total:      res.View.Total,
		Options:    res.Options,
		LoadedAt:   res.LoadedAt,
	}
	if res.View.Groups != nil {
		resp.Groups = make([]groupResponse, 0, len(res.View.Groups))
		for _, g := range res.View.Groups {
			resp.Groups = append(resp.Groups, groupResponse{
				Subject: g.Subject,
				Count:   g.Count,
				Items:   domainToAPIRecords(g.Records),
			})
		}
	}
	return resp
}

func gateToAPI(st *service.GateState) gateResponse {
	resp := gateResponse{
		State:     string(st.State),
		Remaining: st.Remaining,
	}
	if st.Collection != "" {
		id := st.RecordID
		resp.Collection = st.Collection
		resp.ID = &id
		resp.Title = st.Title
	}
	return resp
}
