package lms

import (
	"fmt"
	"regexp"
	"strings"
)

// AttachmentRecord is the JSON shape stored on a material row and replayed to
// the frontend.
type AttachmentRecord struct {
	Type      string `json:"type"`
	FileType  string `json:"file_type"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	FileID    string `json:"file_id,omitempty"`
	VideoID   string `json:"video_id,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
}

// FormatDate renders a classroom due date as YYYY-MM-DD.
func FormatDate(d *Date) string {
	if d == nil || d.Year == 0 {
		return ""
	}
	return fmt.Sprintf("%d-%02d-%02d", d.Year, d.Month, d.Day)
}

// FormatMaterials renders attachments as a bullet list and the structured
// records stored alongside the material.
func FormatMaterials(materials []Attachment) (string, []AttachmentRecord) {
	var lines []string
	var records []AttachmentRecord

	for _, m := range materials {
		switch {
		case m.DriveFile != nil:
			df := m.DriveFile
			title := defaultTitle(df.Title, "Drive File")
			lines = append(lines, fmt.Sprintf("- [Drive] %s: %s", title, df.AlternateLink))
			records = append(records, AttachmentRecord{
				Type:      "drive",
				FileType:  FileTypeFromMime(df.MimeType),
				Title:     title,
				URL:       df.AlternateLink,
				FileID:    df.ID,
				Thumbnail: df.ThumbnailURL,
				MimeType:  df.MimeType,
			})
		case m.YouTubeVideo != nil:
			yt := m.YouTubeVideo
			title := defaultTitle(yt.Title, "Video")
			thumbnail := ""
			if yt.ID != "" {
				thumbnail = fmt.Sprintf("https://img.youtube.com/vi/%s/mqdefault.jpg", yt.ID)
			}
			lines = append(lines, fmt.Sprintf("- [Video] %s: %s", title, yt.AlternateLink))
			records = append(records, AttachmentRecord{
				Type:      "video",
				FileType:  "youtube",
				Title:     title,
				URL:       yt.AlternateLink,
				VideoID:   yt.ID,
				Thumbnail: thumbnail,
			})
		case m.Link != nil:
			l := m.Link
			title := defaultTitle(l.Title, "Link")
			lines = append(lines, fmt.Sprintf("- [Web] %s: %s", title, l.URL))
			records = append(records, AttachmentRecord{
				Type:     "link",
				FileType: "web",
				Title:    title,
				URL:      l.URL,
			})
		case m.Form != nil:
			f := m.Form
			title := defaultTitle(f.Title, "Form")
			lines = append(lines, fmt.Sprintf("- [Form] %s: %s", title, f.FormURL))
			records = append(records, AttachmentRecord{
				Type:     "form",
				FileType: "google_form",
				Title:    title,
				URL:      f.FormURL,
			})
		}
	}

	text := strings.Join(lines, "\n")
	if text == "" {
		text = "None"
	}
	return text, records
}

// FileTypeFromMime maps a MIME type to the coarse file type the frontend
// understands.
func FileTypeFromMime(mime string) string {
	switch {
	case strings.Contains(mime, "pdf"):
		return "pdf"
	case strings.Contains(mime, "document"):
		return "document"
	case strings.Contains(mime, "presentation"):
		return "presentation"
	case strings.Contains(mime, "spreadsheet"):
		return "spreadsheet"
	default:
		return "file"
	}
}

func defaultTitle(title, fallback string) string {
	if title == "" {
		return fallback
	}
	return title
}

var docsMimeByKind = map[string]string{
	"document":     "application/vnd.google-apps.document",
	"spreadsheets": "application/vnd.google-apps.spreadsheet",
	"presentation": "application/vnd.google-apps.presentation",
	"forms":        "application/vnd.google-apps.form",
}

var (
	docsURLPattern      = regexp.MustCompile(`(?i)docs\.google\.com/(document|spreadsheets|presentation|forms)/d/([a-zA-Z0-9_-]+)`)
	driveFileURLPattern = regexp.MustCompile(`(?i)drive\.google\.com/file/d/([a-zA-Z0-9_-]+)`)
	driveOpenURLPattern = regexp.MustCompile(`(?i)drive\.google\.com/open\?id=([a-zA-Z0-9_-]+)`)

	// driveURLPattern matches any Drive/Docs URL embedded in free text.
	driveURLPattern = regexp.MustCompile(`(?i)https://(?:docs\.google\.com/(?:document|spreadsheets|presentation|forms)/d/|drive\.google\.com/(?:file/d/|open\?id=))[a-zA-Z0-9_-]+`)
)

// ExtractDriveFileID parses a Drive/Docs URL into (file id, mime type). The
// mime type is empty for plain drive.google.com file URLs; callers resolve it
// via the API.
func ExtractDriveFileID(url string) (string, string) {
	if m := docsURLPattern.FindStringSubmatch(url); m != nil {
		return m[2], docsMimeByKind[strings.ToLower(m[1])]
	}
	if m := driveFileURLPattern.FindStringSubmatch(url); m != nil {
		return m[1], ""
	}
	if m := driveOpenURLPattern.FindStringSubmatch(url); m != nil {
		return m[1], ""
	}
	return "", ""
}

// FindDriveURLs returns all Drive/Docs URLs pasted into free text.
func FindDriveURLs(text string) []string {
	return driveURLPattern.FindAllString(text, -1)
}
