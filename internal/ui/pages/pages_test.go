package pages

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	"github.com/shivnayan54/studyvibe/internal/domain/catalog"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func sampleRecord() model.Record {
	return model.Record{
		ID:         uuid.MustParse("6f1c1b7a-3c1e-4f7e-9a2b-0c5d2e8f9a10"),
		Board:      "CBSE",
		Class:      "10",
		Year:       2024,
		Subject:    "Mathematics",
		Title:      `Maths <Set A> & "B"`,
		FileURL:    "https://drive.google.com/uc?export=download&id=abc123",
		UploadDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Source:     model.SourceGDrive,
	}
}

func TestBrowse_EscapesAndLinks(t *testing.T) {
	r := sampleRecord()
	out := render(t, Browse(ListData{
		Collection: model.CollectionPapers,
		Query:      catalog.Query{Filter: catalog.FilterSpec{Board: "CBSE"}, Search: `"><script>`, Sort: catalog.SortRecent},
		View:       catalog.View{Records: []model.Record{r}, Total: 1},
		Options:    catalog.FilterOptions{Boards: []string{"CBSE", "ICSE"}, Years: []int{2024}},
	}))

	if strings.Contains(out, "<Set A>") || strings.Contains(out, `"><script>`) {
		t.Error("пользовательский текст не экранирован")
	}
	if !strings.Contains(out, "Maths &lt;Set A&gt; &amp; &#34;B&#34;") {
		t.Errorf("заголовок не найден: %s", out)
	}
	if !strings.Contains(out, `href="/gate/papers/`+r.ID.String()+`"`) {
		t.Error("нет ссылки на шлюз скачивания")
	}
	if !strings.Contains(out, "/file/d/abc123/preview") {
		t.Error("нет ссылки предпросмотра")
	}
	if !strings.Contains(out, `<option value="CBSE" selected>`) {
		t.Error("выбранный совет не отмечен")
	}
}

func TestBrowse_EmptyAndUnavailable(t *testing.T) {
	out := render(t, Browse(ListData{Collection: model.CollectionPapers}))
	if !strings.Contains(out, "No papers match") {
		t.Errorf("нет пустого состояния: %s", out)
	}

	out = render(t, Browse(ListData{Collection: model.CollectionPapers, Unavailable: true}))
	if !strings.Contains(out, UnavailableMessage) || strings.Contains(out, `class="filters"`) {
		t.Errorf("ожидалось сообщение о недоступности без фильтров: %s", out)
	}
}

func TestPYQs_Groups(t *testing.T) {
	r := sampleRecord()
	out := render(t, PYQs(ListData{
		Collection: model.CollectionPYQs,
		View: catalog.View{
			Records: []model.Record{r},
			Total:   1,
			Groups:  []catalog.Group{{Subject: "Mathematics", Count: 1, Records: []model.Record{r}}},
		},
	}))
	if !strings.Contains(out, "Mathematics <span class=\"count\">(1)</span>") {
		t.Errorf("нет заголовка группы: %s", out)
	}
	if !strings.Contains(out, "/gate/pyqs/") {
		t.Error("ссылка шлюза должна указывать на коллекцию pyqs")
	}
}

func TestHome(t *testing.T) {
	out := render(t, Home(HomeData{Boards: catalog.BoardSummary{
		Boards: []catalog.BoardCount{{Board: "UP Board", Count: 3}, {Board: "CBSE", Count: 0}},
		Total:  3,
	}}))
	if !strings.Contains(out, `href="/browse?board=UP+Board"`) {
		t.Errorf("нет ссылки на совет: %s", out)
	}
	if !strings.Contains(out, "Total papers: 3") {
		t.Error("нет итогового счётчика")
	}
}

func TestGate(t *testing.T) {
	r := sampleRecord()
	out := render(t, Gate(GateData{Collection: model.CollectionPapers, Record: &r, Duration: 8}))
	if !strings.Contains(out, `data-id="`+r.ID.String()+`"`) || !strings.Contains(out, `<span id="gate-remaining">8</span>`) {
		t.Errorf("страница шлюза: %s", out)
	}

	out = render(t, Gate(GateData{NotFound: true}))
	if !strings.Contains(out, "no longer exists") || strings.Contains(out, "<script>") {
		t.Errorf("страница отсутствующей записи: %s", out)
	}
}
