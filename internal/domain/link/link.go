// Пакет link — нормализация ссылок Google Drive.
//
// Распознаются три формы:
//   - https://drive.google.com/file/d/<ID>/view?usp=sharing
//   - https://drive.google.com/open?id=<ID>
//   - https://drive.google.com/uc?export=download&id=<ID> (прямая ссылка)
//
// Первые две переписываются в прямую форму, прямая возвращается без изменений.
package link

import (
	"net/url"
	"regexp"
	"strings"
)

// driveHost — хост Google Drive.
const driveHost = "drive.google.com"

// filePathRe — путь формы /file/d/<ID>[/...].
var filePathRe = regexp.MustCompile(`^/file/d/([^/]+)`)

// NormalizeShareableLink приводит ссылку Google Drive к прямой форме.
// Возвращает ("", false), если ссылка не соответствует ни одной из форм.
func NormalizeShareableLink(raw string) (string, bool) {
	u, ok := parseDrive(raw)
	if !ok {
		return "", false
	}

	switch {
	case u.Path == "/uc" && u.RawQuery != "":
		return strings.TrimSpace(raw), true
	case u.Path == "/open":
		if id := u.Query().Get("id"); id != "" {
			return DirectURL(id), true
		}
	default:
		if m := filePathRe.FindStringSubmatch(u.Path); m != nil {
			return DirectURL(m[1]), true
		}
	}
	return "", false
}

// DirectURL строит прямую ссылку на скачивание по идентификатору файла.
func DirectURL(fileID string) string {
	return "https://" + driveHost + "/uc?export=download&id=" + url.QueryEscape(fileID)
}

// FileID извлекает идентификатор файла из ссылки любой распознаваемой формы.
func FileID(raw string) (string, bool) {
	direct, ok := NormalizeShareableLink(raw)
	if !ok {
		return "", false
	}
	u, err := url.Parse(direct)
	if err != nil {
		return "", false
	}
	id := u.Query().Get("id")
	return id, id != ""
}

// PreviewURL возвращает ссылку для встроенного просмотра.
// Для прямых ссылок Drive — /file/d/<ID>/preview, остальные URL не меняются.
func PreviewURL(fileURL string) string {
	u, ok := parseDrive(fileURL)
	if !ok || u.Path != "/uc" || u.Query().Get("export") != "download" {
		return fileURL
	}
	id := u.Query().Get("id")
	if id == "" {
		return fileURL
	}
	return "https://" + driveHost + "/file/d/" + url.PathEscape(id) + "/preview"
}

// IsDriveLink проверяет, что ссылка указывает на Google Drive.
func IsDriveLink(raw string) bool {
	_, ok := parseDrive(raw)
	return ok
}

func parseDrive(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, false
	}
	if !strings.EqualFold(u.Hostname(), driveHost) {
		return nil, false
	}
	return u, true
}
