// Package delivery allocates capacity-bounded delivery time windows,
// materialized per calendar date from weekday templates.
package delivery

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSlotNotFound  = errors.New("delivery slot not found")
	ErrSlotFull      = errors.New("delivery slot capacity exhausted")
	ErrBadDate       = errors.New("invalid date, expected YYYY-MM-DD")
	ErrUnknownDay    = errors.New("unknown weekday name")
	ErrEmptyTemplate = errors.New("at least one slot is required")
)

const DefaultCapacity = 50

type Slot struct {
	ID        string  `json:"id"`
	Date      string  `json:"date"` // YYYY-MM-DD
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Capacity  int     `json:"capacity"`
	Taken     int     `json:"taken"`
	ZoneID    *string `json:"zone_id,omitempty"`
}

// DayTemplate seeds the slots of every date falling on its weekday
// (ISO, 1=Monday .. 7=Sunday).
type DayTemplate struct {
	ID        string  `json:"id"`
	Weekday   int     `json:"weekday"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Capacity  int     `json:"capacity"`
	ZoneID    *string `json:"zone_id,omitempty"`
	Active    bool    `json:"active"`
}

var weekdayNames = map[string]int{
	"LUNES":     1,
	"MARTES":    2,
	"MIERCOLES": 3,
	"JUEVES":    4,
	"VIERNES":   5,
	"SABADO":    6,
	"DOMINGO":   7,
}

func WeekdayNumber(name string) (int, error) {
	if n, ok := weekdayNames[name]; ok {
		return n, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownDay, name)
}

// isoWeekday computes the ISO weekday of a YYYY-MM-DD date in UTC, so
// the server timezone cannot shift the day.
func isoWeekday(date string) (int, error) {
	t, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return 0, ErrBadDate
	}
	wd := int(t.Weekday()) // 0=Sunday .. 6=Saturday
	if wd == 0 {
		wd = 7
	}
	return wd, nil
}
