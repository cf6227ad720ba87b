package lms

import (
	"strings"
	"testing"
)

func TestFormatDate(t *testing.T) {
	tests := []struct {
		name string
		date *Date
		want string
	}{
		{name: "full date", date: &Date{Year: 2026, Month: 3, Day: 7}, want: "2026-03-07"},
		{name: "nil date", date: nil, want: ""},
		{name: "zero year is no date", date: &Date{Month: 3, Day: 7}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDate(tt.date); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatMaterials(t *testing.T) {
	attachments := []Attachment{
		{DriveFile: &DriveFileRef{ID: "f1", Title: "Syllabus", AlternateLink: "https://drive.google.com/file/d/f1", MimeType: "application/pdf"}},
		{YouTubeVideo: &YouTubeRef{ID: "yt1", Title: "Intro Video", AlternateLink: "https://youtu.be/yt1"}},
		{Link: &LinkRef{URL: "https://example.com"}},
		{Form: &FormRef{Title: "Quiz 1", FormURL: "https://forms.example.com/q1"}},
	}

	text, records := FormatMaterials(attachments)

	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}
	if records[0].Type != "drive" || records[0].FileType != "pdf" || records[0].FileID != "f1" {
		t.Errorf("drive record = %+v", records[0])
	}
	if records[1].Type != "video" || records[1].VideoID != "yt1" {
		t.Errorf("video record = %+v", records[1])
	}
	if records[1].Thumbnail != "https://img.youtube.com/vi/yt1/mqdefault.jpg" {
		t.Errorf("video thumbnail = %q", records[1].Thumbnail)
	}
	if records[2].Type != "link" || records[2].Title != "Link" {
		t.Errorf("untitled link record = %+v", records[2])
	}
	if records[3].Type != "form" || records[3].FileType != "google_form" {
		t.Errorf("form record = %+v", records[3])
	}

	for _, marker := range []string{"- [Drive] Syllabus:", "- [Video] Intro Video:", "- [Web] Link:", "- [Form] Quiz 1:"} {
		if !strings.Contains(text, marker) {
			t.Errorf("bullet list missing %q:\n%s", marker, text)
		}
	}
}

func TestFormatMaterialsEmpty(t *testing.T) {
	text, records := FormatMaterials(nil)
	if text != "None" {
		t.Errorf("text = %q, want None", text)
	}
	if len(records) != 0 {
		t.Errorf("records = %+v", records)
	}
}

func TestFileTypeFromMime(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"application/pdf", "pdf"},
		{"application/vnd.google-apps.document", "document"},
		{"application/vnd.google-apps.presentation", "presentation"},
		{"application/vnd.google-apps.spreadsheet", "spreadsheet"},
		{"image/png", "file"},
		{"", "file"},
	}
	for _, tt := range tests {
		if got := FileTypeFromMime(tt.mime); got != tt.want {
			t.Errorf("FileTypeFromMime(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestExtractDriveFileID(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantID   string
		wantMime string
	}{
		{
			name:     "docs document url",
			url:      "https://docs.google.com/document/d/abc123_-/edit",
			wantID:   "abc123_-",
			wantMime: "application/vnd.google-apps.document",
		},
		{
			name:     "spreadsheet url",
			url:      "https://docs.google.com/spreadsheets/d/sheet42/view",
			wantID:   "sheet42",
			wantMime: "application/vnd.google-apps.spreadsheet",
		},
		{
			name:   "drive file url has no mime",
			url:    "https://drive.google.com/file/d/file99/view",
			wantID: "file99",
		},
		{
			name:   "drive open url",
			url:    "https://drive.google.com/open?id=file77",
			wantID: "file77",
		},
		{
			name: "unrelated url",
			url:  "https://example.com/d/whatever",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, mime := ExtractDriveFileID(tt.url)
			if id != tt.wantID || mime != tt.wantMime {
				t.Errorf("got (%q, %q), want (%q, %q)", id, mime, tt.wantID, tt.wantMime)
			}
		})
	}
}

func TestFindDriveURLs(t *testing.T) {
	text := "See https://docs.google.com/presentation/d/slides1 and also " +
		"https://drive.google.com/file/d/fileA plus https://example.com/nope"

	urls := FindDriveURLs(text)
	if len(urls) != 2 {
		t.Fatalf("got %d urls: %v", len(urls), urls)
	}
	if !strings.Contains(urls[0], "slides1") || !strings.Contains(urls[1], "fileA") {
		t.Errorf("urls = %v", urls)
	}
}
