package bot

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"readingtracker/internal/models"
	"readingtracker/internal/reminder"
	"readingtracker/internal/storage"
	"readingtracker/internal/tracker"
)

// statusIcon is the emoji shown next to a book of the given status
func statusIcon(s models.Status) string {
	switch s {
	case models.StatusUnread:
		return "📕"
	case models.StatusReading:
		return "📖"
	case models.StatusFinished:
		return "✅"
	default:
		return "❔"
	}
}

// statusLabel is the display name of a status
func statusLabel(s models.Status) string {
	switch s {
	case models.StatusUnread:
		return "📕 To read"
	case models.StatusReading:
		return "📖 Reading"
	case models.StatusFinished:
		return "✅ Finished"
	default:
		return "❔ Unknown"
	}
}

// progressBar renders a fraction in [0,1] as ten cells
func progressBar(p float64) string {
	filled := int(math.Round(math.Max(0, math.Min(1, p)) * 10))
	return strings.Repeat("▓", filled) + strings.Repeat("░", 10-filled)
}

func percent(p float64) string {
	return fmt.Sprintf("%.0f%%", p*100)
}

// formatBookLine is the one-line summary used on list buttons
func formatBookLine(b models.Book) string {
	line := fmt.Sprintf("%s %s", statusIcon(b.Status), b.Title)
	if b.Status == models.StatusReading {
		line += fmt.Sprintf(" (%s)", percent(b.Progress()))
	}
	return line
}

// formatBookCard renders a book with progress, dates and reading time
func formatBookCard(b *models.Book, sessions []models.ReadingSession, loc *time.Location) string {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("📚 %s\n", b.Title))
	if b.Author != "" {
		text.WriteString(fmt.Sprintf("✍️ %s\n", b.Author))
	}
	text.WriteString(fmt.Sprintf("\n%s\n", statusLabel(b.Status)))
	text.WriteString(fmt.Sprintf("%s %s\n", progressBar(b.Progress()), percent(b.Progress())))
	text.WriteString(fmt.Sprintf("📄 Page %d of %d\n", b.CurrentPage, b.TotalPages))

	if b.StartDate != nil {
		text.WriteString(fmt.Sprintf("🟢 Started: %s\n", b.StartDate.In(loc).Format("2006-01-02")))
	}
	if b.FinishDate != nil {
		text.WriteString(fmt.Sprintf("🏁 Finished: %s\n", b.FinishDate.In(loc).Format("2006-01-02")))
	}
	if len(sessions) > 0 {
		total := tracker.TotalReadingTime(sessions)
		text.WriteString(fmt.Sprintf("⏱ %d sessions, %s in total\n", len(sessions), formatMinutes(total.Minutes())))
	}
	text.WriteString(fmt.Sprintf("\n🆔 %s", b.ID))
	return text.String()
}

// formatMinutes renders a minute count as "1h 05m" or "25m"
func formatMinutes(minutes float64) string {
	total := int(math.Round(minutes))
	if total < 60 {
		return fmt.Sprintf("%dm", total)
	}
	return fmt.Sprintf("%dh %02dm", total/60, total%60)
}

// formatSessions renders a session log
func formatSessions(sessions []models.ReadingSession, loc *time.Location) string {
	var text strings.Builder
	text.WriteString("📜 Reading sessions:\n\n")
	for i, s := range sessions {
		text.WriteString(fmt.Sprintf("%d. %s: pages %d-%d (%d pages, %s)\n",
			i+1,
			s.Date.In(loc).Format("2006-01-02 15:04"),
			s.StartPage,
			s.EndPage,
			s.PagesRead(),
			formatMinutes(s.Duration),
		))
	}
	text.WriteString(fmt.Sprintf("\nTotal: %s", formatMinutes(tracker.TotalReadingTime(sessions).Minutes())))
	return text.String()
}

// formatNotes renders notes ordered by page
func formatNotes(notes []models.Note) string {
	var text strings.Builder
	text.WriteString("🗒 Notes:\n")
	for i, n := range notes {
		text.WriteString(fmt.Sprintf("\n%d. p.%d: %s", i+1, n.PageNumber, n.Content))
	}
	return text.String()
}

// formatReport renders the statistics screen
func formatReport(r *tracker.Report) string {
	var text strings.Builder
	text.WriteString("📊 Reading Statistics\n\n")
	text.WriteString(fmt.Sprintf("📚 Books: %d\n", r.Totals.TotalBooks))
	text.WriteString(fmt.Sprintf("✅ Finished: %d\n", r.Totals.TotalFinished))
	text.WriteString(fmt.Sprintf("📖 Reading: %d\n", r.Totals.TotalReading))
	text.WriteString(fmt.Sprintf("📄 Pages read: %d of %d\n\n", r.Totals.TotalReadPages, r.Totals.TotalPages))
	text.WriteString(fmt.Sprintf("Completion rate: %s %s\n", progressBar(r.CompletionRate), percent(r.CompletionRate)))
	text.WriteString(fmt.Sprintf("Overall progress: %s %s\n", progressBar(r.OverallProgress), percent(r.OverallProgress)))

	if len(r.FinishedByMonth) > 0 {
		text.WriteString("\n🏁 Finished per month:\n")
		for _, m := range r.FinishedByMonth {
			text.WriteString(fmt.Sprintf("%s: %d\n", m.Month.Format("Jan 2006"), m.Count))
		}
	}
	if len(r.PagesByMonth) > 0 {
		text.WriteString("\n📄 Pages per month:\n")
		for _, m := range r.PagesByMonth {
			text.WriteString(fmt.Sprintf("%s: %d\n", m.Month.Format("Jan 2006"), m.Pages))
		}
	}
	if len(r.FinishedByMonth) == 0 && len(r.PagesByMonth) == 0 {
		text.WriteString("\nNo reading activity in the last 12 months.")
	}
	return strings.TrimRight(text.String(), "\n")
}

// formatReminder renders a reminder on one line
func formatReminder(r *models.Reminder) string {
	icon := "🔔"
	if !r.Enabled {
		icon = "🔕"
	}
	return fmt.Sprintf("%s %s %s", icon, r.Time, reminder.Describe(r.Weekdays))
}

// userMessage turns an error into text safe to show in chat
func userMessage(err error) string {
	var verr *tracker.ValidationError
	var perr *tracker.PersistenceError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, reminder.ErrInvalid):
		return err.Error()
	case errors.Is(err, storage.ErrNotFound):
		return "Not found. It may have been deleted."
	case errors.As(err, &perr):
		return "Could not save the change. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
