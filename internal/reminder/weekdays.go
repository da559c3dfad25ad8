package reminder

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// NormalizeWeekdays validates, deduplicates and sorts a weekday set
func NormalizeWeekdays(days []time.Weekday) ([]time.Weekday, error) {
	seen := make(map[time.Weekday]bool, len(days))
	result := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return nil, fmt.Errorf("%w: weekday %d out of range", ErrInvalid, int(d))
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

// ParseWeekdays reads "daily", "weekdays", "weekends" or a list of day names
// separated by commas or spaces, such as "mon, wed fri"
func ParseWeekdays(s string) ([]time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "daily", "every day", "everyday":
		return everyDay(), nil
	case "weekdays":
		return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, nil
	case "weekends":
		return []time.Weekday{time.Sunday, time.Saturday}, nil
	}

	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no weekdays given", ErrInvalid)
	}

	days := make([]time.Weekday, 0, len(fields))
	for _, f := range fields {
		d, ok := weekdayNames[f]
		if !ok {
			return nil, fmt.Errorf("%w: unknown weekday %q", ErrInvalid, f)
		}
		days = append(days, d)
	}
	return NormalizeWeekdays(days)
}

// Describe renders a weekday set for display
func Describe(days []time.Weekday) string {
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[d] = true
	}

	switch {
	case len(set) == 0:
		return "No days"
	case len(set) == 7:
		return "Every day"
	case len(set) == 5 && !set[time.Sunday] && !set[time.Saturday]:
		return "Weekdays"
	case len(set) == 2 && set[time.Sunday] && set[time.Saturday]:
		return "Weekends"
	}

	names := make([]string, 0, len(set))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if set[d] {
			names = append(names, d.String()[:3])
		}
	}
	return strings.Join(names, ", ")
}

func everyDay() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		days = append(days, d)
	}
	return days
}
