package lms

import "context"

// Course is a classroom course as returned by the platform.
type Course struct {
	ID   string
	Name string
}

// Teacher is a course instructor profile.
type Teacher struct {
	FullName string
}

// Date is a calendar date without a time component.
type Date struct {
	Year  int
	Month int
	Day   int
}

// DriveFileRef points at a Drive file pinned to classroom content.
type DriveFileRef struct {
	ID            string
	Title         string
	AlternateLink string
	MimeType      string
	ThumbnailURL  string
}

type YouTubeRef struct {
	ID            string
	Title         string
	AlternateLink string
}

type LinkRef struct {
	Title string
	URL   string
}

type FormRef struct {
	Title   string
	FormURL string
}

// Attachment is a tagged union; exactly one field is set.
type Attachment struct {
	DriveFile    *DriveFileRef
	YouTubeVideo *YouTubeRef
	Link         *LinkRef
	Form         *FormRef
}

// CourseWork is an assignment.
type CourseWork struct {
	ID            string
	Title         string
	Description   string
	DueDate       *Date
	CreationTime  string
	AlternateLink string
	Materials     []Attachment
}

// CourseMaterial is a posted (non-graded) material.
type CourseMaterial struct {
	ID            string
	Title         string
	Description   string
	CreationTime  string
	AlternateLink string
	Materials     []Attachment
}

type Announcement struct {
	ID            string
	Text          string
	CreationTime  string
	AlternateLink string
	Materials     []Attachment
}

// DriveFileMeta is the subset of Drive file metadata the sync needs.
type DriveFileMeta struct {
	ID          string
	Name        string
	MimeType    string
	WebViewLink string
}

// ClassroomClient reads a user's classroom data.
type ClassroomClient interface {
	GetCourses(ctx context.Context) ([]Course, error)
	GetTeachers(ctx context.Context, courseID string) ([]Teacher, error)
	GetCoursework(ctx context.Context, courseID string) ([]CourseWork, error)
	GetMaterials(ctx context.Context, courseID string) ([]CourseMaterial, error)
	GetAnnouncements(ctx context.Context, courseID string) ([]Announcement, error)
}

// DriveClient reads a user's Drive files.
type DriveClient interface {
	GetFileMetadata(ctx context.Context, fileID string) (*DriveFileMeta, error)
	GetFileContent(ctx context.Context, meta DriveFileMeta) (string, error)
	ListRootFolders(ctx context.Context) ([]DriveFileMeta, error)
	ListFilesRecursive(ctx context.Context, folderID string) ([]DriveFileMeta, error)
}

// ClientFactory builds per-user clients from stored OAuth tokens.
type ClientFactory interface {
	Classroom(accessToken, refreshToken string) ClassroomClient
	Drive(accessToken, refreshToken string) DriveClient
}
