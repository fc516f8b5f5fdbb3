package pages

import (
	"context"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/shivnayan54/studyvibe/internal/domain/catalog"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
)

// UnavailableMessage — текст пустого состояния при ошибке загрузки каталога.
const UnavailableMessage = "The catalog is temporarily unavailable. Please reload the page in a moment."

// HomeData — данные главной страницы.
type HomeData struct {
	Boards catalog.BoardSummary
	// Unavailable — каталог не загрузился, показывается пустое состояние
	Unavailable bool
}

// Home — главная страница: счётчики по советам.
func Home(data HomeData) templ.Component {
	return layout("Home", component(func(ctx context.Context, h *html) {
		h.raw(`<section class="hero"><h1>Question papers and PYQs</h1>`)
		h.raw(`<p>CBSE, ICSE, UP Board and Bihar Board papers for classes 9 to 12.</p></section>`)
		if data.Unavailable {
			h.render(ctx, EmptyState(UnavailableMessage))
			return
		}
		h.raw(`<section class="boards"><h2>Boards</h2><ul>`)
		for _, b := range data.Boards.Boards {
			h.raw(`<li><a`)
			h.href("/browse?board=" + url.QueryEscape(b.Board))
			h.raw(`>`)
			h.text(b.Board)
			h.raw(`</a> <span class="count">`)
			h.text(strconv.Itoa(b.Count))
			h.raw(`</span></li>`)
		}
		h.raw(`</ul><p class="total">Total papers: `)
		h.text(strconv.Itoa(data.Boards.Total))
		h.raw(`</p></section>`)
	}))
}

// ListData — данные страниц списка (работы и PYQ).
type ListData struct {
	Collection model.Collection
	Query      catalog.Query
	View       catalog.View
	Options    catalog.FilterOptions
	// Unavailable — каталог не загрузился, показывается пустое состояние
	Unavailable bool
}

// Browse — страница работ с фильтрами.
func Browse(data ListData) templ.Component {
	return layout("Papers", component(func(ctx context.Context, h *html) {
		h.raw(`<h1>Question papers</h1>`)
		if data.Unavailable {
			h.render(ctx, EmptyState(UnavailableMessage))
			return
		}
		h.render(ctx, filterForm("/browse", data.Options, data.Query))
		resultHeader(h, data)
		if data.View.Total == 0 {
			h.render(ctx, EmptyState("No papers match the selected filters."))
			return
		}
		h.render(ctx, recordList(data.Collection, data.View.Records))
	}))
}

// PYQs — страница заданий прошлых лет, сгруппированных по предмету.
func PYQs(data ListData) templ.Component {
	return layout("PYQs", component(func(ctx context.Context, h *html) {
		h.raw(`<h1>Previous year questions</h1>`)
		if data.Unavailable {
			h.render(ctx, EmptyState(UnavailableMessage))
			return
		}
		h.render(ctx, filterForm("/pyqs", data.Options, data.Query))
		resultHeader(h, data)
		if data.View.Total == 0 {
			h.render(ctx, EmptyState("No PYQs match the selected filters."))
			return
		}
		for _, g := range data.View.Groups {
			h.raw(`<section class="group"><h2>`)
			h.text(g.Subject)
			h.raw(` <span class="count">(`)
			h.text(strconv.Itoa(g.Count))
			h.raw(`)</span></h2>`)
			h.render(ctx, recordList(data.Collection, g.Records))
			h.raw(`</section>`)
		}
	}))
}

func resultHeader(h *html, data ListData) {
	h.raw(`<p class="result-count">`)
	h.text(strconv.Itoa(data.View.Total))
	h.raw(` results`)
	if data.Query.Search != "" {
		h.raw(` for “`)
		h.text(data.Query.Search)
		h.raw(`”`)
	}
	h.raw(`</p>`)
}

// GateData — данные страницы шлюза скачивания.
type GateData struct {
	Collection model.Collection
	Record     *model.Record
	// Duration — длительность отсчёта в секундах
	Duration int
	// NotFound — запись не найдена
	NotFound bool
	// Unavailable — каталог не загрузился
	Unavailable bool
}

// gateScript — открытие шлюза, опрос состояния и подтверждение через API.
const gateScript = `<script>
(function(){
  var box=document.getElementById("gate"),btn=document.getElementById("gate-confirm"),
      cancel=document.getElementById("gate-cancel"),left=document.getElementById("gate-remaining"),timer;
  function post(url,body){return fetch(url,{method:"POST",headers:{"Content-Type":"application/json"},body:body?JSON.stringify(body):null}).then(function(r){return r.json()});}
  function poll(){fetch("/api/v1/gate").then(function(r){return r.json()}).then(function(s){
    left.textContent=s.remaining;
    if(s.state==="ready"){btn.disabled=false;clearInterval(timer);}
  });}
  post("/api/v1/gate",{collection:box.dataset.collection,id:box.dataset.id}).then(function(){timer=setInterval(poll,1000);poll();});
  btn.addEventListener("click",function(){btn.disabled=true;post("/api/v1/gate/confirm").then(function(r){if(r.download_url){window.location=r.download_url;}});});
  cancel.addEventListener("click",function(){clearInterval(timer);post("/api/v1/gate/cancel").then(function(){history.back();});});
})();
</script>`

// Gate — страница отсчёта перед скачиванием.
func Gate(data GateData) templ.Component {
	return layout("Download", component(func(ctx context.Context, h *html) {
		switch {
		case data.Unavailable:
			h.render(ctx, EmptyState(UnavailableMessage))
			return
		case data.NotFound || data.Record == nil:
			h.render(ctx, EmptyState("This paper no longer exists."))
			return
		}
		r := data.Record
		h.rawf(`<section id="gate" data-collection="%s" data-id="%s"><h1>`,
			templ.EscapeString(string(data.Collection)), templ.EscapeString(r.ID.String()))
		h.text(r.Title)
		h.raw(`</h1><p>Your download will be ready in <span id="gate-remaining">`)
		h.text(strconv.Itoa(data.Duration))
		h.raw(`</span> seconds.</p>`)
		h.raw(`<button id="gate-confirm" disabled>Download</button> <button id="gate-cancel">Cancel</button></section>`)
		h.raw(gateScript)
	}))
}
