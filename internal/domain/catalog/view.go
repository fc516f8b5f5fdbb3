// view.go — составная функция представления и вспомогательные выборки
// (подсказки поиска, счётчики по советам).
package catalog

import (
	"slices"
	"strconv"
	"strings"

	"github.com/shivnayan54/studyvibe/internal/domain/model"
)

// DefaultSuggestionLimit — максимум подсказок поиска.
const DefaultSuggestionLimit = 5

// minSuggestionQuery — минимальная длина запроса (в рунах) для подсказок.
const minSuggestionQuery = 2

// Query — параметры производного представления каталога.
type Query struct {
	Filter FilterSpec
	Search string
	Sort   SortMode
	// Group — группировать результат по предмету (страница PYQ)
	Group bool
}

// View — результат конвейера.
type View struct {
	// Records — отфильтрованные и отсортированные записи
	Records []model.Record
	// Groups — группы по предмету (только при Query.Group)
	Groups []Group
	// Total — количество записей в Records
	Total int
}

// Apply применяет фильтры, поиск, сортировку и (опционально) группировку.
func Apply(records []model.Record, q Query) View {
	result := Filter(records, q.Filter)
	result = Search(result, q.Search)
	result = Sort(result, q.Sort)

	view := View{Records: result, Total: len(result)}
	if q.Group {
		view.Groups = GroupBySubject(result)
	}
	return view
}

// Suggest возвращает до limit различных подсказок для строки поиска:
// совет, "Class N", предмет и год, содержащие query.
// Для запросов короче двух символов подсказок нет.
func Suggest(records []model.Record, query string, limit int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if len([]rune(q)) < minSuggestionQuery || limit <= 0 {
		return []string{}
	}

	seen := make(map[string]struct{})
	result := make([]string, 0, limit)
	add := func(s string) bool {
		if s == "" {
			return false
		}
		if _, ok := seen[s]; ok {
			return false
		}
		seen[s] = struct{}{}
		result = append(result, s)
		return len(result) >= limit
	}

	for _, r := range records {
		candidates := []string{r.Board, "", r.Subject, strconv.Itoa(r.Year)}
		if r.Class != "" {
			candidates[1] = "Class " + r.Class
		}
		for _, c := range candidates {
			if strings.Contains(strings.ToLower(c), q) && add(c) {
				return result
			}
		}
	}
	return result
}

// BoardCount — количество записей совета.
type BoardCount struct {
	Board string `json:"board"`
	Count int    `json:"count"`
}

// BoardSummary — счётчики для главной страницы.
type BoardSummary struct {
	Boards []BoardCount `json:"boards"`
	Total  int          `json:"total"`
}

// CountByBoard считает записи по советам. Известные советы всегда
// присутствуют в результате (в т.ч. с нулём), остальные добавляются
// в алфавитном порядке.
func CountByBoard(records []model.Record, known []string) BoardSummary {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Board]++
	}

	summary := BoardSummary{Boards: make([]BoardCount, 0, len(counts)+len(known)), Total: len(records)}
	for _, b := range known {
		summary.Boards = append(summary.Boards, BoardCount{Board: b, Count: counts[b]})
		delete(counts, b)
	}

	rest := make([]string, 0, len(counts))
	for b := range counts {
		if b != "" {
			rest = append(rest, b)
		}
	}
	slices.Sort(rest)
	for _, b := range rest {
		summary.Boards = append(summary.Boards, BoardCount{Board: b, Count: counts[b]})
	}
	return summary
}
