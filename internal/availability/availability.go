// Package availability decides whether a venue can take a booking for a
// candidate date range, and searches forward for alternative dates. All
// functions are pure over the supplied reservation list.
package availability

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cabanera/booking-assistant/internal/model"
)

// DefaultDurationSeconds is the assumed stay length (12h day-use) when a
// reservation carries no parseable duration.
const DefaultDurationSeconds = 43200

var spanishDays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

// DateOption is one alternative start date reported to the guest.
type DateOption struct {
	Date      string `json:"date"`
	DayOfWeek string `json:"day_of_week"`
	IsWeekend bool   `json:"is_weekend"`
}

// Options tunes the forward search for alternative dates.
type Options struct {
	// NumDays bounds the scan window. Defaults to 30.
	NumDays int
	// PreferWeekends restricts the first pass to Saturday/Sunday starts.
	PreferWeekends bool
	// StayLength is the number of days that must all be free. Defaults to 1.
	StayLength int
}

// DateRangeError signals a requested range that resolves to the past or is
// inverted. The message is guest-facing and handed back to the model.
type DateRangeError struct {
	Message string
	Today   string
}

func (e *DateRangeError) Error() string {
	return fmt.Sprintf("invalid date range: %s", e.Message)
}

// dayOf truncates a timestamp to its UTC day.
func dayOf(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

// reservationWindow returns the inclusive day-interval a reservation
// occupies, derived from its start plus duration seconds.
func reservationWindow(r model.Reservation) (time.Time, time.Time) {
	seconds, err := strconv.Atoi(r.Duration)
	if err != nil || seconds <= 0 {
		seconds = DefaultDurationSeconds
	}
	start := dayOf(r.Date)
	end := dayOf(r.Date.Add(time.Duration(seconds) * time.Second))
	return start, end
}

func isWeekend(t time.Time) bool {
	wd := t.UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// dayOccupied reports whether any reservation's day-interval covers day.
func dayOccupied(reservations []model.Reservation, day time.Time) bool {
	for _, r := range reservations {
		start, end := reservationWindow(r)
		if !start.After(day) && !end.Before(day) {
			return true
		}
	}
	return false
}

// IsAvailable reports whether the candidate range [checkIn, checkOut] is
// conflict-free. Both interval ends are inclusive at day granularity. A zero
// checkOut means a single-day (day-use) stay.
func IsAvailable(reservations []model.Reservation, checkIn, checkOut time.Time) bool {
	if checkOut.IsZero() {
		checkOut = checkIn
	}
	inDay := dayOf(checkIn)
	outDay := dayOf(checkOut)
	for _, r := range reservations {
		start, end := reservationWindow(r)
		if !start.After(outDay) && !end.Before(inDay) {
			return false
		}
	}
	return true
}

// ValidateRange rejects ranges that start in the past, end before they start,
// or end in the past, relative to now's UTC day. A zero checkOut is treated
// as equal to checkIn.
func ValidateRange(checkIn, checkOut, now time.Time) error {
	if checkOut.IsZero() {
		checkOut = checkIn
	}
	today := dayOf(now)
	inDay := dayOf(checkIn)
	outDay := dayOf(checkOut)

	var msg string
	switch {
	case inDay.Before(today):
		msg = "La fecha de llegada está en el pasado. Por favor proporciona una fecha futura."
	case outDay.Before(inDay):
		msg = "La fecha de salida debe ser igual o posterior a la fecha de llegada."
	case outDay.Before(today):
		msg = "La fecha de salida está en el pasado. Por favor proporciona una fecha futura."
	default:
		return nil
	}
	return &DateRangeError{Message: msg, Today: today.Format("2006-01-02")}
}

// NextAvailableDates scans forward day-by-day starting the day after from,
// collecting up to 5 start dates whose entire stay window is conflict-free.
// With PreferWeekends set, only weekend starts are considered first; when
// that yields fewer than 3 dates, a second unfiltered pass fills the list
// without duplicating dates.
func NextAvailableDates(reservations []model.Reservation, from time.Time, opts Options) []DateOption {
	numDays := opts.NumDays
	if numDays <= 0 {
		numDays = 30
	}
	stayLength := opts.StayLength
	if stayLength <= 0 {
		stayLength = 1
	}

	var available []DateOption
	base := dayOf(from)
	for i := 0; i < numDays && len(available) < 5; i++ {
		candidate := base.AddDate(0, 0, i+1)
		weekend := isWeekend(candidate)
		if opts.PreferWeekends && !weekend {
			continue
		}

		free := true
		for offset := 0; offset < stayLength && free; offset++ {
			if dayOccupied(reservations, candidate.AddDate(0, 0, offset)) {
				free = false
			}
		}
		if free {
			available = append(available, DateOption{
				Date:      candidate.Format("2006-01-02"),
				DayOfWeek: spanishDays[candidate.Weekday()],
				IsWeekend: weekend,
			})
		}
	}

	if opts.PreferWeekends && len(available) < 3 {
		alternatives := NextAvailableDates(reservations, from, Options{
			NumDays:    numDays,
			StayLength: stayLength,
		})
		for _, alt := range alternatives {
			if containsDate(available, alt.Date) {
				continue
			}
			available = append(available, alt)
			if len(available) >= 5 {
				break
			}
		}
	}

	return available
}

func containsDate(options []DateOption, date string) bool {
	for _, o := range options {
		if o.Date == date {
			return true
		}
	}
	return false
}
