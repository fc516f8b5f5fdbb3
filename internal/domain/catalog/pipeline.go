// Пакет catalog — конвейер фильтрации, сортировки и группировки записей каталога.
//
// Все функции чистые: принимают снимок записей и возвращают новый срез,
// исходный срез не изменяется. Пакет не зависит от хранилища и представления.
package catalog

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/shivnayan54/studyvibe/internal/domain/model"
)

// OtherSubject — ключ группы для записей без предмета.
const OtherSubject = "Other"

// ErrUnknownSort — неизвестный режим сортировки.
var ErrUnknownSort = errors.New("неизвестный режим сортировки")

// SortMode — режим сортировки.
type SortMode string

const (
	// SortRecent — сначала новые (upload date по убыванию)
	SortRecent SortMode = "recent"
	// SortOldest — сначала старые
	SortOldest SortMode = "oldest"
	// SortBoard — по совету, лексикографически
	SortBoard SortMode = "board"
	// SortYear — по году экзамена, по убыванию
	SortYear SortMode = "year"
)

// ParseSortMode преобразует строку в SortMode. Пустая строка — SortRecent.
func ParseSortMode(s string) (SortMode, error) {
	switch m := SortMode(s); m {
	case "":
		return SortRecent, nil
	case SortRecent, SortOldest, SortBoard, SortYear:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q, допустимые: recent, oldest, board, year", ErrUnknownSort, s)
	}
}

// FilterSpec — точные фильтры по полям. Пустое значение (или 0 для года) —
// wildcard, пропускает любую запись.
type FilterSpec struct {
	Board   string
	Class   string
	Year    int
	Subject string
}

// IsEmpty возвращает true, если все опции — wildcard.
func (f FilterSpec) IsEmpty() bool {
	return f.Board == "" && f.Class == "" && f.Year == 0 && f.Subject == ""
}

// Match проверяет запись на соответствие всем непустым опциям.
func (f FilterSpec) Match(r model.Record) bool {
	if f.Board != "" && r.Board != f.Board {
		return false
	}
	if f.Class != "" && r.Class != f.Class {
		return false
	}
	if f.Year != 0 && r.Year != f.Year {
		return false
	}
	if f.Subject != "" && r.Subject != f.Subject {
		return false
	}
	return true
}

// Filter возвращает записи, прошедшие все непустые фильтры, в исходном порядке.
func Filter(records []model.Record, spec FilterSpec) []model.Record {
	result := make([]model.Record, 0, len(records))
	for _, r := range records {
		if spec.Match(r) {
			result = append(result, r)
		}
	}
	return result
}

// Search возвращает записи, у которых хотя бы одно из полей board, class,
// year, subject, title содержит query без учёта регистра.
// Пустой запрос пропускает все записи.
func Search(records []model.Record, query string) []model.Record {
	q := strings.ToLower(strings.TrimSpace(query))
	result := make([]model.Record, 0, len(records))
	for _, r := range records {
		if q == "" || matchQuery(r, q) {
			result = append(result, r)
		}
	}
	return result
}

// matchQuery — q уже приведён к нижнему регистру.
func matchQuery(r model.Record, q string) bool {
	for _, field := range searchFields(r) {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func searchFields(r model.Record) [5]string {
	return [5]string{r.Board, r.Class, strconv.Itoa(r.Year), r.Subject, r.Title}
}

// Sort возвращает новый срез, упорядоченный по mode.
// Сортировка стабильная: при равенстве ключей сохраняется порядок загрузки.
// Неизвестный режим трактуется как SortRecent.
func Sort(records []model.Record, mode SortMode) []model.Record {
	result := slices.Clone(records)
	if result == nil {
		result = []model.Record{}
	}
	slices.SortStableFunc(result, comparator(mode))
	return result
}

func comparator(mode SortMode) func(a, b model.Record) int {
	switch mode {
	case SortOldest:
		return func(a, b model.Record) int { return a.UploadDate.Compare(b.UploadDate) }
	case SortBoard:
		return func(a, b model.Record) int { return strings.Compare(a.Board, b.Board) }
	case SortYear:
		return func(a, b model.Record) int { return cmp.Compare(b.Year, a.Year) }
	default:
		return func(a, b model.Record) int { return b.UploadDate.Compare(a.UploadDate) }
	}
}

// Group — группа записей одного предмета.
type Group struct {
	// Subject — ключ группы (OtherSubject для записей без предмета)
	Subject string
	// Records — записи группы в порядке входного среза
	Records []model.Record
	// Count — количество записей в группе
	Count int
}

// GroupBySubject разбивает записи по предмету. Группы упорядочены по имени
// предмета, внутри группы сохраняется входной порядок.
func GroupBySubject(records []model.Record) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)
	for _, r := range records {
		key := r.Subject
		if key == "" {
			key = OtherSubject
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Subject: key})
		}
		groups[i].Records = append(groups[i].Records, r)
		groups[i].Count++
	}
	slices.SortFunc(groups, func(a, b Group) int { return strings.Compare(a.Subject, b.Subject) })
	return groups
}

// FilterOptions — допустимые значения фильтров, вычисленные по снимку.
type FilterOptions struct {
	Boards   []string `json:"boards"`
	Classes  []string `json:"classes"`
	Years    []int    `json:"years"`
	Subjects []string `json:"subjects"`
}

// Options перечисляет различные непустые значения полей.
// Советы и предметы — по возрастанию, классы — с учётом чисел, годы — по убыванию.
func Options(records []model.Record) FilterOptions {
	boards := make(map[string]struct{})
	classes := make(map[string]struct{})
	years := make(map[int]struct{})
	subjects := make(map[string]struct{})

	for _, r := range records {
		addNonEmpty(boards, r.Board)
		addNonEmpty(classes, r.Class)
		addNonEmpty(subjects, r.Subject)
		if r.Year != 0 {
			years[r.Year] = struct{}{}
		}
	}

	opts := FilterOptions{
		Boards:   sortedKeys(boards),
		Classes:  sortedKeys(classes),
		Years:    make([]int, 0, len(years)),
		Subjects: sortedKeys(subjects),
	}
	slices.SortFunc(opts.Classes, compareClass)
	for y := range years {
		opts.Years = append(opts.Years, y)
	}
	slices.SortFunc(opts.Years, func(a, b int) int { return cmp.Compare(b, a) })
	return opts
}

func addNonEmpty(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// compareClass — числовые классы по значению, затем нечисловые лексикографически.
func compareClass(a, b string) int {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		return cmp.Compare(ai, bi)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
