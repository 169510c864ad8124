package frontend

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/coursedash/dashboard/internal/app/dashboard"
	"github.com/coursedash/dashboard/internal/domain/notifications"
	"github.com/coursedash/dashboard/internal/domain/tasks"
)

// SummaryID is the element the SSE stream patches.
const SummaryID = "summary"

// Page renders the full dashboard shell around the summary panel.
func Page(snapshot dashboard.Snapshot, summary dashboard.Summary) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		name := "Guest"
		if p := snapshot.Auth.Profile; p != nil {
			name = p.Name
		}
		lang := "en"
		if p := snapshot.Auth.Profile; p != nil && p.Language != "" {
			lang = p.Language
		}
		if _, err := fmt.Fprintf(w, `<!doctype html><html lang="%s" data-theme="%s"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>Course dashboard</title><link rel="stylesheet" href="/static/styles.css"></head>`,
			templ.EscapeString(lang), templ.EscapeString(string(snapshot.UI.Theme))); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, `<body data-on-load="@get('/events')"><header><strong>Course dashboard</strong><span class="muted">%s</span></header>`,
			templ.EscapeString(name)); err != nil {
			return err
		}
		if err := SummaryPanel(summary).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// SummaryPanel renders the selector views. It is the unit streamed on every
// store change.
func SummaryPanel(summary dashboard.Summary) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		b := &htmlBuilder{w: w}
		b.raw(`<main id="` + SummaryID + `" data-version="` + strconv.FormatUint(summary.Version, 10) + `">`)

		b.raw(`<section class="panel"><h2>Notifications</h2><span class="stat">`)
		b.text(strconv.Itoa(summary.UnreadTotal))
		b.raw(`</span> <span class="muted">unread</span><ul class="plain">`)
		for _, t := range notifications.Types {
			b.raw(`<li>`)
			b.text(string(t))
			b.raw(` <span class="badge">`)
			b.text(strconv.Itoa(summary.UnreadCounts[t]))
			b.raw(`</span></li>`)
		}
		b.raw(`</ul></section>`)

		b.raw(`<section class="panel"><h2>Tasks</h2><ul class="plain">`)
		for _, s := range []tasks.Status{tasks.StatusPending, tasks.StatusOverdue, tasks.StatusCompleted} {
			b.raw(`<li>`)
			b.text(string(s))
			b.raw(`: `)
			b.text(strconv.Itoa(summary.TaskCounts[s]))
			b.raw(`</li>`)
		}
		for _, t := range summary.OverdueTasks {
			b.raw(`<li class="overdue">`)
			b.text(t.Title)
			b.raw(`</li>`)
		}
		b.raw(`</ul></section>`)

		b.raw(`<section class="panel"><h2>Achievements</h2><span class="stat">`)
		b.text(strconv.Itoa(summary.EarnedPoints))
		b.raw(`</span> <span class="muted">points, level `)
		b.text(strconv.Itoa(summary.Level.Level))
		b.raw(`, next at `)
		b.text(strconv.Itoa(summary.Level.NextLevelPoints))
		b.raw(`</span><p>`)
		b.text(strconv.Itoa(summary.EarnedCount))
		b.raw(` earned</p></section>`)

		b.raw(`<section class="panel"><h2>Courses</h2><ul class="plain">`)
		for _, c := range summary.EnrolledCourses {
			cls := ""
			if c.ID == summary.ActiveCourseID {
				cls = ` class="success"`
			}
			b.raw(`<li` + cls + `>`)
			b.text(c.Name)
			b.raw(` <span class="muted">`)
			b.text(strconv.Itoa(c.Progress))
			b.raw(`%</span></li>`)
		}
		b.raw(`</ul><p class="muted">verification: `)
		b.text(string(summary.VerificationStatus))
		b.raw(`</p></section>`)

		b.raw(`<section class="panel"><h2>Meeting</h2><p>`)
		b.text(strconv.Itoa(summary.OnlineParticipants))
		b.raw(` online</p><h2>Download</h2><progress max="100" value="`)
		b.text(strconv.Itoa(summary.DownloadProgress))
		b.raw(`"></progress></section>`)

		b.raw(`</main>`)
		return b.err
	})
}

// htmlBuilder keeps the first write error so component bodies stay linear.
type htmlBuilder struct {
	w   io.Writer
	err error
}

func (b *htmlBuilder) raw(s string) {
	if b.err != nil {
		return
	}
	_, b.err = io.WriteString(b.w, s)
}

func (b *htmlBuilder) text(s string) {
	b.raw(templ.EscapeString(s))
}
