package siteconfig

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Weekday numbering follows the configuration convention: 1=Sunday through
// 7=Saturday.
const (
	WeekdaySunday   = 1
	WeekdaySaturday = 7
)

// Calendar is the value object handed to the due-date calculator: the open
// weekdays, the closing time and the timezone those are expressed in.
type Calendar struct {
	WorkingWeekdays map[int]bool
	ClosingHour     int
	ClosingMinute   int
	Location        *time.Location
}

// IsOpen reports whether the library opens on the given weekday.
func (c Calendar) IsOpen(weekday time.Weekday) bool {
	return c.WorkingWeekdays[int(weekday)+1]
}

// HasOpenDay reports whether at least one weekday is configured open.
func (c Calendar) HasOpenDay() bool {
	for day := WeekdaySunday; day <= WeekdaySaturday; day++ {
		if c.WorkingWeekdays[day] {
			return true
		}
	}
	return false
}

// ClosingOn returns the closing instant of the day containing t.
func (c Calendar) ClosingOn(t time.Time) time.Time {
	local := t.In(c.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), c.ClosingHour, c.ClosingMinute, 0, 0, c.Location)
}

// Configuration is the single-row site configuration.
type Configuration struct {
	SiteTitle   string `json:"site_title"`
	WorkingDays string `json:"working_days"`
	EndingHour  string `json:"ending_hour"`
	WelcomeMsg  string `json:"welcome_msg,omitempty"`
	GoodbyeMsg  string `json:"goodbye_msg,omitempty"`
}

// EmailSettings holds the SMTP configuration used for notifications.
type EmailSettings struct {
	Activated bool   `json:"activated"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password,omitempty"`
	UseTLS    bool   `json:"use_tls"`
	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`
	Signature string `json:"signature,omitempty"`
}

var (
	// ErrBadWorkingDays indicates the working-days list could not be parsed.
	ErrBadWorkingDays = errors.New("siteconfig: malformed working days")
	// ErrBadEndingHour indicates the ending hour could not be parsed.
	ErrBadEndingHour = errors.New("siteconfig: malformed ending hour")
)

// Calendar materialises the configuration into a Calendar in the given
// timezone.
func (c Configuration) Calendar(loc *time.Location) (Calendar, error) {
	weekdays, err := ParseWorkingDays(c.WorkingDays)
	if err != nil {
		return Calendar{}, err
	}
	hour, minute, err := parseClock(c.EndingHour)
	if err != nil {
		return Calendar{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	return Calendar{
		WorkingWeekdays: weekdays,
		ClosingHour:     hour,
		ClosingMinute:   minute,
		Location:        loc,
	}, nil
}

// ParseWorkingDays parses the stored "2,3,4,5,6" form into a weekday set.
func ParseWorkingDays(s string) (map[int]bool, error) {
	weekdays := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		day, err := strconv.Atoi(part)
		if err != nil || day < WeekdaySunday || day > WeekdaySaturday {
			return nil, ErrBadWorkingDays
		}
		weekdays[day] = true
	}
	return weekdays, nil
}

func parseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return 0, 0, ErrBadEndingHour
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, ErrBadEndingHour
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, ErrBadEndingHour
	}
	return hour, minute, nil
}
