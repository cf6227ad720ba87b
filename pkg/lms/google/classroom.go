package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/pkg/lms"
)

type classroomClient struct {
	http   *http.Client
	logger logger.ILogger
}

type wireAttachment struct {
	DriveFile *struct {
		DriveFile struct {
			ID            string `json:"id"`
			Title         string `json:"title"`
			AlternateLink string `json:"alternateLink"`
			ThumbnailURL  string `json:"thumbnailUrl"`
			MimeType      string `json:"mimeType"`
		} `json:"driveFile"`
	} `json:"driveFile"`
	YouTubeVideo *struct {
		ID            string `json:"id"`
		Title         string `json:"title"`
		AlternateLink string `json:"alternateLink"`
	} `json:"youtubeVideo"`
	Link *struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"link"`
	Form *struct {
		FormURL string `json:"formUrl"`
		Title   string `json:"title"`
	} `json:"form"`
}

func (w wireAttachment) toAttachment() lms.Attachment {
	var att lms.Attachment
	switch {
	case w.DriveFile != nil:
		df := w.DriveFile.DriveFile
		att.DriveFile = &lms.DriveFileRef{
			ID:            df.ID,
			Title:         df.Title,
			AlternateLink: df.AlternateLink,
			MimeType:      df.MimeType,
			ThumbnailURL:  df.ThumbnailURL,
		}
	case w.YouTubeVideo != nil:
		att.YouTubeVideo = &lms.YouTubeRef{
			ID:            w.YouTubeVideo.ID,
			Title:         w.YouTubeVideo.Title,
			AlternateLink: w.YouTubeVideo.AlternateLink,
		}
	case w.Link != nil:
		att.Link = &lms.LinkRef{
			Title: w.Link.Title,
			URL:   w.Link.URL,
		}
	case w.Form != nil:
		att.Form = &lms.FormRef{
			Title:   w.Form.Title,
			FormURL: w.Form.FormURL,
		}
	}
	return att
}

func toAttachments(wire []wireAttachment) []lms.Attachment {
	if len(wire) == 0 {
		return nil
	}
	out := make([]lms.Attachment, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toAttachment())
	}
	return out
}

func (c *classroomClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := classroomBaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("classroom API %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// GetCourses returns active courses where the user is a student or teacher,
// deduplicated by id.
func (c *classroomClient) GetCourses(ctx context.Context) ([]lms.Course, error) {
	var merged []lms.Course
	seen := map[string]bool{}

	for _, role := range []string{"studentId", "teacherId"} {
		var payload struct {
			Courses []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"courses"`
		}
		query := url.Values{"courseStates": {"ACTIVE"}, role: {"me"}}
		if err := c.get(ctx, "/courses", query, &payload); err != nil {
			// one leg failing (e.g. student-only accounts get 403 on the
			// teacher query) should not hide the other
			c.logger.Debug("lms", "course list fetch failed", map[string]interface{}{
				"role":  role,
				"error": err.Error(),
			})
			continue
		}
		for _, course := range payload.Courses {
			if seen[course.ID] {
				continue
			}
			seen[course.ID] = true
			merged = append(merged, lms.Course{ID: course.ID, Name: course.Name})
		}
	}

	return merged, nil
}

func (c *classroomClient) GetTeachers(ctx context.Context, courseID string) ([]lms.Teacher, error) {
	var payload struct {
		Teachers []struct {
			Profile struct {
				Name struct {
					FullName string `json:"fullName"`
				} `json:"name"`
			} `json:"profile"`
		} `json:"teachers"`
	}
	if err := c.get(ctx, "/courses/"+courseID+"/teachers", nil, &payload); err != nil {
		return nil, err
	}

	teachers := make([]lms.Teacher, 0, len(payload.Teachers))
	for _, t := range payload.Teachers {
		teachers = append(teachers, lms.Teacher{FullName: t.Profile.Name.FullName})
	}
	return teachers, nil
}

func (c *classroomClient) GetCoursework(ctx context.Context, courseID string) ([]lms.CourseWork, error) {
	var payload struct {
		CourseWork []struct {
			ID          string `json:"id"`
			Title       string `json:"title"`
			Description string `json:"description"`
			DueDate     *struct {
				Year  int `json:"year"`
				Month int `json:"month"`
				Day   int `json:"day"`
			} `json:"dueDate"`
			CreationTime  string           `json:"creationTime"`
			AlternateLink string           `json:"alternateLink"`
			Materials     []wireAttachment `json:"materials"`
		} `json:"courseWork"`
	}
	if err := c.get(ctx, "/courses/"+courseID+"/courseWork", nil, &payload); err != nil {
		return nil, err
	}

	work := make([]lms.CourseWork, 0, len(payload.CourseWork))
	for _, w := range payload.CourseWork {
		item := lms.CourseWork{
			ID:            w.ID,
			Title:         w.Title,
			Description:   w.Description,
			CreationTime:  w.CreationTime,
			AlternateLink: w.AlternateLink,
			Materials:     toAttachments(w.Materials),
		}
		if w.DueDate != nil {
			item.DueDate = &lms.Date{Year: w.DueDate.Year, Month: w.DueDate.Month, Day: w.DueDate.Day}
		}
		work = append(work, item)
	}
	return work, nil
}

func (c *classroomClient) GetMaterials(ctx context.Context, courseID string) ([]lms.CourseMaterial, error) {
	var payload struct {
		CourseWorkMaterial []struct {
			ID            string           `json:"id"`
			Title         string           `json:"title"`
			Description   string           `json:"description"`
			CreationTime  string           `json:"creationTime"`
			AlternateLink string           `json:"alternateLink"`
			Materials     []wireAttachment `json:"materials"`
		} `json:"courseWorkMaterial"`
	}
	if err := c.get(ctx, "/courses/"+courseID+"/courseWorkMaterials", nil, &payload); err != nil {
		return nil, err
	}

	materials := make([]lms.CourseMaterial, 0, len(payload.CourseWorkMaterial))
	for _, m := range payload.CourseWorkMaterial {
		materials = append(materials, lms.CourseMaterial{
			ID:            m.ID,
			Title:         m.Title,
			Description:   m.Description,
			CreationTime:  m.CreationTime,
			AlternateLink: m.AlternateLink,
			Materials:     toAttachments(m.Materials),
		})
	}
	return materials, nil
}

func (c *classroomClient) GetAnnouncements(ctx context.Context, courseID string) ([]lms.Announcement, error) {
	var payload struct {
		Announcements []struct {
			ID            string           `json:"id"`
			Text          string           `json:"text"`
			CreationTime  string           `json:"creationTime"`
			AlternateLink string           `json:"alternateLink"`
			Materials     []wireAttachment `json:"materials"`
		} `json:"announcements"`
	}
	if err := c.get(ctx, "/courses/"+courseID+"/announcements", nil, &payload); err != nil {
		return nil, err
	}

	announcements := make([]lms.Announcement, 0, len(payload.Announcements))
	for _, a := range payload.Announcements {
		announcements = append(announcements, lms.Announcement{
			ID:            a.ID,
			Text:          a.Text,
			CreationTime:  a.CreationTime,
			AlternateLink: a.AlternateLink,
			Materials:     toAttachments(a.Materials),
		})
	}
	return announcements, nil
}
