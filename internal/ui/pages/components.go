// Пакет pages — HTML-страницы публичного каталога (компоненты templ).
// Страницы получают готовые данные конвейера и не содержат бизнес-логики.
package pages

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/shivnayan54/studyvibe/internal/domain/catalog"
	"github.com/shivnayan54/studyvibe/internal/domain/link"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
)

// html — запись фрагментов страницы с накоплением первой ошибки.
type html struct {
	w   io.Writer
	err error
}

// raw пишет разметку как есть.
func (h *html) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

// text пишет экранированный текст.
func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

// rawf пишет разметку по формату; аргументы должны быть уже экранированы.
func (h *html) rawf(format string, args ...any) {
	h.raw(fmt.Sprintf(format, args...))
}

// href пишет атрибут href с проверенным URL.
func (h *html) href(url string) {
	h.rawf(` href="%s"`, templ.EscapeString(string(templ.URL(url))))
}

// render встраивает дочерний компонент.
func (h *html) render(ctx context.Context, c templ.Component) {
	if h.err != nil || c == nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

// component оборачивает функцию отрисовки в templ.Component.
func component(fn func(ctx context.Context, h *html)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		fn(ctx, h)
		return h.err
	})
}

// layout — общий каркас страницы.
func layout(title string, body templ.Component) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>`)
		h.text(title)
		h.raw(` · StudyVibe</title></head><body>`)
		h.raw(`<header><nav><a href="/">StudyVibe</a> <a href="/browse">Papers</a> <a href="/pyqs">PYQs</a></nav>`)
		h.raw(`<form action="/browse" method="get" role="search"><input type="search" name="q" placeholder="Search papers" aria-label="Search">`)
		h.raw(`<button type="submit">Search</button></form></header><main>`)
		h.render(ctx, body)
		h.raw(`</main><footer>StudyVibe: free question papers and PYQs</footer></body></html>`)
	})
}

// EmptyState — сообщение при недоступном или пустом каталоге.
func EmptyState(message string) templ.Component {
	return component(func(_ context.Context, h *html) {
		h.raw(`<section class="empty-state"><p>`)
		h.text(message)
		h.raw(`</p></section>`)
	})
}

// recordCard — карточка записи со ссылками на просмотр и скачивание.
func recordCard(collection model.Collection, r model.Record) templ.Component {
	return component(func(_ context.Context, h *html) {
		h.raw(`<article class="record"><h3>`)
		h.text(r.Title)
		h.raw(`</h3><p class="meta">`)
		h.text(r.Board)
		h.raw(` · Class `)
		h.text(r.DisplayClass())
		h.raw(` · `)
		h.text(strconv.Itoa(r.Year))
		h.raw(` · `)
		h.text(r.Subject)
		h.raw(`</p><p class="actions"><a target="_blank" rel="noopener"`)
		h.href(link.PreviewURL(r.FileURL))
		h.raw(`>Preview</a> <a`)
		h.href("/gate/" + string(collection) + "/" + r.ID.String())
		h.raw(`>Download</a></p></article>`)
	})
}

// recordList — список карточек.
func recordList(collection model.Collection, records []model.Record) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<div class="records">`)
		for _, r := range records {
			h.render(ctx, recordCard(collection, r))
		}
		h.raw(`</div>`)
	})
}

// filterForm — форма фильтров с динамическими опциями.
func filterForm(action string, opts catalog.FilterOptions, q catalog.Query) templ.Component {
	return component(func(_ context.Context, h *html) {
		h.rawf(`<form class="filters" method="get" action="%s">`, templ.EscapeString(action))
		selectField(h, "board", "All boards", opts.Boards, q.Filter.Board)
		selectField(h, "class", "All classes", opts.Classes, q.Filter.Class)
		years := make([]string, 0, len(opts.Years))
		for _, y := range opts.Years {
			years = append(years, strconv.Itoa(y))
		}
		year := ""
		if q.Filter.Year != 0 {
			year = strconv.Itoa(q.Filter.Year)
		}
		selectField(h, "year", "All years", years, year)
		selectField(h, "subject", "All subjects", opts.Subjects, q.Filter.Subject)

		sorts := []string{string(catalog.SortRecent), string(catalog.SortOldest), string(catalog.SortBoard), string(catalog.SortYear)}
		selectField(h, "sort", "", sorts, string(q.Sort))
		if q.Search != "" {
			h.rawf(`<input type="hidden" name="q" value="%s">`, templ.EscapeString(q.Search))
		}
		h.raw(`<button type="submit">Apply</button></form>`)
	})
}

func selectField(h *html, name, anyLabel string, values []string, selected string) {
	h.rawf(`<select name="%s">`, name)
	if anyLabel != "" {
		h.raw(`<option value="">`)
		h.text(anyLabel)
		h.raw(`</option>`)
	}
	for _, v := range values {
		attr := ""
		if v == selected {
			attr = " selected"
		}
		h.rawf(`<option value="%s"%s>`, templ.EscapeString(v), attr)
		h.text(v)
		h.raw(`</option>`)
	}
	h.raw(`</select>`)
}
