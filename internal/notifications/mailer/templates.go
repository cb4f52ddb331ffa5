package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"

	"labbook/pkg/model"
)

// ErrRender marks a job that can never be delivered as-is.
var ErrRender = errors.New("failed to render email")

const layout = `{{define "layout"}}<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: {{.Color}};">{{.Heading}}</h2>
{{with .Name}}<p>Hello {{.}},</p>{{end}}
<p>{{.Message}}</p>
{{template "details" .}}
{{with .ActionURL}}<p><a href="{{.}}" style="background: #3498db; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">{{$.ActionLabel}}</a></p>{{end}}
<p>Best regards,<br>Lab Scheduling System</p>
</body>
</html>{{end}}`

const bookingDetails = `{{define "details"}}<div style="background: #f8f9fa; padding: 20px; border-radius: 5px; margin: 20px 0;">
{{with index .Data "title"}}<p><strong>Title:</strong> {{.}}</p>{{end}}
{{with index .Data "lab_name"}}<p><strong>Lab:</strong> {{.}}</p>{{end}}
{{with index .Data "date"}}<p><strong>Date:</strong> {{.}}</p>{{end}}
{{with index .Data "start_time"}}<p><strong>Time:</strong> {{.}} - {{index $.Data "end_time"}}</p>{{end}}
{{with index .Data "participants"}}<p><strong>Participants:</strong> {{.}}</p>{{end}}
{{with index .Data "admin_notes"}}<p><strong>Notes:</strong> {{.}}</p>{{end}}
{{with index .Data "cancellation_reason"}}<p><strong>Reason:</strong> {{.}}</p>{{end}}
</div>{{end}}`

const reportDetails = `{{define "details"}}{{with index .Data "report_type"}}<p><strong>Report type:</strong> {{.}}</p>{{end}}
{{with index .Data "record_count"}}<p><strong>Records:</strong> {{.}}</p>{{end}}{{end}}`

const noDetails = `{{define "details"}}{{end}}`

type style struct {
	heading string
	color   string
	details string
}

var styles = map[model.NotificationType]style{
	model.NotificationBookingCreated:   {"Booking Created", "#2c3e50", bookingDetails},
	model.NotificationBookingApproved:  {"Booking Approved", "#27ae60", bookingDetails},
	model.NotificationBookingRejected:  {"Booking Rejected", "#e74c3c", bookingDetails},
	model.NotificationBookingCancelled: {"Booking Cancelled", "#e67e22", bookingDetails},
	model.NotificationBookingReminder:  {"Booking Reminder", "#3498db", bookingDetails},
	model.NotificationReportReady:      {"Report Ready", "#8e44ad", reportDetails},
	model.NotificationAnnouncement:     {"Announcement", "#2c3e50", noDetails},
	model.NotificationSystemAlert:      {"System Alert", "#c0392b", noDetails},
}

var fallback = style{heading: "Notification", color: "#2c3e50", details: noDetails}

type view struct {
	Heading     string
	Color       string
	Name        string
	Message     string
	ActionURL   string
	ActionLabel string
	Data        map[string]any
}

// Templates holds one parsed HTML template per notification type.
type Templates struct {
	byType   map[model.NotificationType]*template.Template
	fallback *template.Template
}

func NewTemplates() (*Templates, error) {
	t := &Templates{byType: make(map[model.NotificationType]*template.Template, len(styles))}

	for typ, st := range styles {
		tmpl, err := parse(string(typ), st.details)
		if err != nil {
			return nil, err
		}
		t.byType[typ] = tmpl
	}

	tmpl, err := parse("fallback", fallback.details)
	if err != nil {
		return nil, err
	}
	t.fallback = tmpl
	return t, nil
}

func parse(name, details string) (*template.Template, error) {
	tmpl, err := template.New(name).Parse(layout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s layout: %w", name, err)
	}
	if _, err := tmpl.Parse(details); err != nil {
		return nil, fmt.Errorf("failed to parse %s details: %w", name, err)
	}
	return tmpl, nil
}

// Render returns the subject and HTML body for job.
func (t *Templates) Render(job model.EmailJob) (string, string, error) {
	st, ok := styles[job.Type]
	tmpl := t.byType[job.Type]
	if !ok || tmpl == nil {
		st, tmpl = fallback, t.fallback
	}

	label := job.ActionLabel
	if label == "" {
		label = "View details"
	}

	var body bytes.Buffer
	err := tmpl.ExecuteTemplate(&body, "layout", view{
		Heading:     st.heading,
		Color:       st.color,
		Name:        job.Name,
		Message:     job.Message,
		ActionURL:   job.ActionURL,
		ActionLabel: label,
		Data:        job.Data,
	})
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrRender, err)
	}

	return subject(st, job), body.String(), nil
}

func subject(st style, job model.EmailJob) string {
	if job.Title == "" {
		return st.heading
	}
	if title, ok := job.Data["title"].(string); ok && title != "" && title != job.Title {
		return fmt.Sprintf("%s: %s", job.Title, title)
	}
	return job.Title
}
