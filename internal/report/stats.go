// Package report computes monthly submission statistics from the store and
// serves them read-only over HTTP. It never mutates reporting state.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/stellarlinkco/scrumbot/internal/store"
)

// StatsStore is the read-only slice of the store the viewer needs.
type StatsStore interface {
	ReportsBetween(from, to string) ([]store.Report, error)
	RequestsBetween(from, to string) ([]store.Request, error)
}

// UserStats is one user's submission record for a month.
type UserStats struct {
	Username  string  `json:"username"`
	Submitted int     `json:"submitted"`
	Missed    int     `json:"missed"`
	Rate      float64 `json:"rate"`
}

// Monthly bundles a month's raw reports with per-user statistics.
type Monthly struct {
	Year        int           `json:"year"`
	Month       int           `json:"month"`
	WorkingDays int           `json:"workingDays"`
	Reports     []ReportEntry `json:"reports"`
	Statistics  []UserStats   `json:"statistics"`
}

// ReportEntry is the JSON shape of one stored report.
type ReportEntry struct {
	Username string `json:"username"`
	Channel  string `json:"channel"`
	Date     string `json:"date"`
	Message  string `json:"message"`
}

// WorkingDays counts the reporting days (Monday through Saturday) in a month.
func WorkingDays(year int, month time.Month) int {
	count := 0
	day := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for day.Month() == month {
		if day.Weekday() != time.Sunday {
			count++
		}
		day = day.AddDate(0, 0, 1)
	}
	return count
}

// MonthRange returns the first and last day of the month, YYYY-MM-DD.
func MonthRange(year int, month time.Month) (from, to string) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format("2006-01-02"), last.Format("2006-01-02")
}

// BuildMonthly assembles the month's reports and per-user statistics. A user
// appears if they either submitted a report or were asked for one; submitted
// counts distinct days with at least one report in any channel.
func BuildMonthly(s StatsStore, year int, month time.Month) (*Monthly, error) {
	from, to := MonthRange(year, month)

	reports, err := s.ReportsBetween(from, to)
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	requests, err := s.RequestsBetween(from, to)
	if err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}

	workingDays := WorkingDays(year, month)

	daysReported := make(map[string]map[string]bool) // user -> set of days
	users := make(map[string]bool)
	entries := make([]ReportEntry, 0, len(reports))
	for _, r := range reports {
		users[r.Username] = true
		if daysReported[r.Username] == nil {
			daysReported[r.Username] = make(map[string]bool)
		}
		daysReported[r.Username][r.Day] = true
		entries = append(entries, ReportEntry{
			Username: r.Username,
			Channel:  r.ChannelName,
			Date:     r.Day,
			Message:  r.Message,
		})
	}
	for _, req := range requests {
		users[req.Username] = true
	}

	stats := make([]UserStats, 0, len(users))
	for user := range users {
		submitted := len(daysReported[user])
		missed := workingDays - submitted
		if missed < 0 {
			missed = 0
		}
		rate := 0.0
		if workingDays > 0 {
			rate = float64(submitted) / float64(workingDays) * 100
		}
		stats = append(stats, UserStats{
			Username:  user,
			Submitted: submitted,
			Missed:    missed,
			Rate:      rate,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Username < stats[j].Username })

	return &Monthly{
		Year:        year,
		Month:       int(month),
		WorkingDays: workingDays,
		Reports:     entries,
		Statistics:  stats,
	}, nil
}
