package email

import (
	"bytes"
	"fmt"
	"html/template"
)

var streakResetTmpl = template.Must(template.New("streak_reset").Parse(`
<p>Hi {{.Username}},</p>
<p>It looks like you missed a day, and your productivity streak of {{.Streak}} days has been reset. Don't worry, you can start a new one today!</p>
<p>Complete any task to begin a new streak.</p>
<p>Best,</p>
<p>The DoEase Team</p>
`))

var taskReminderTmpl = template.Must(template.New("task_reminder").Parse(
	`<p>Hi {{.Username}},</p><p>Just a friendly reminder that your task, <strong>"{{.TaskName}}"</strong>, is scheduled to begin shortly.</p><p>You got this!</p>`,
))

const streakResetSubject = "Your Productivity Streak on DoEase has been Reset"

// StreakResetEmail renders the email sent when a streak of priorStreak days
// is broken.
func StreakResetEmail(username string, priorStreak int) (subject, html string, err error) {
	html, err = render(streakResetTmpl, map[string]any{
		"Username": username,
		"Streak":   priorStreak,
	})
	return streakResetSubject, html, err
}

func TaskReminderEmail(username, taskName string) (subject, html string, err error) {
	html, err = render(taskReminderTmpl, map[string]any{
		"Username": username,
		"TaskName": taskName,
	})
	return fmt.Sprintf("⏰ Reminder: Task \"%s\" is starting soon!", taskName), html, err
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}
