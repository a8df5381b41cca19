package abi

import (
	"math"
	"time"
)

// Date is a calendar date stored as a Julian Day number, mirroring the
// guest's single 64-bit integer date value.
type Date struct {
	jd int64
}

const nullJD = math.MinInt64

// NullDate returns the invalid date.
func NullDate() Date {
	return Date{jd: nullJD}
}

// DateFromJulianDay returns the date for Julian Day jd.
func DateFromJulianDay(jd int64) Date {
	return Date{jd: jd}
}

// NewDate returns the proleptic Gregorian date y-m-d, or the null date if
// the components do not name a real day.
func NewDate(year, month, day int) Date {
	if year == 0 {
		return NullDate()
	}
	ay := astronomical(year)
	t := time.Date(ay, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != ay || int(t.Month()) != month || t.Day() != day {
		return NullDate()
	}
	return Date{jd: julianDay(year, month, day)}
}

// DateOf returns the date of t in t's location.
func DateOf(t time.Time) Date {
	year := t.Year()
	if year <= 0 {
		year--
	}
	return NewDate(year, int(t.Month()), t.Day())
}

// ParseDate parses value using a time layout.
func ParseDate(layout, value string) (Date, error) {
	t, err := time.Parse(layout, value)
	if err != nil {
		return NullDate(), err
	}
	return DateOf(t), nil
}

func (d Date) IsValid() bool {
	return d.jd != nullJD
}

func (d Date) JulianDay() int64 {
	return d.jd
}

// YMD returns the year, month and day. It returns zeros for the null date.
func (d Date) YMD() (year, month, day int) {
	if !d.IsValid() {
		return 0, 0, 0
	}
	// Richards' algorithm, valid for the proleptic Gregorian calendar.
	a := d.jd + 32044
	b := floorDiv(4*a+3, 146097)
	c := a - floorDiv(146097*b, 4)
	dd := floorDiv(4*c+3, 1461)
	e := c - floorDiv(1461*dd, 4)
	m := floorDiv(5*e+2, 153)

	day = int(e - floorDiv(153*m+2, 5) + 1)
	month = int(m + 3 - 12*floorDiv(m, 10))
	year = int(100*b + dd - 4800 + floorDiv(m, 10))
	if year <= 0 {
		year--
	}
	return year, month, day
}

// AddDays returns the date n days later. The null date stays null.
func (d Date) AddDays(n int64) Date {
	if !d.IsValid() {
		return d
	}
	return Date{jd: d.jd + n}
}

// DaysTo returns the number of days from d to other; 0 if either is null.
func (d Date) DaysTo(other Date) int64 {
	if !d.IsValid() || !other.IsValid() {
		return 0
	}
	return other.jd - d.jd
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	y, m, day := d.YMD()
	return time.Date(astronomical(y), time.Month(m), day, 0, 0, 0, 0, time.UTC)
}

// Format formats the date with a time layout; "" for the null date.
func (d Date) Format(layout string) string {
	if !d.IsValid() {
		return ""
	}
	return d.Time().Format(layout)
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// astronomical converts a year without year zero (-1 is 1 BC) to the
// astronomical numbering time.Time uses (0 is 1 BC).
func astronomical(year int) int {
	if year < 0 {
		return year + 1
	}
	return year
}

func julianDay(year, month, day int) int64 {
	y := int64(astronomical(year))
	a := floorDiv(14-int64(month), 12)
	yy := y + 4800 - a
	mm := int64(month) + 12*a - 3
	return int64(day) + floorDiv(153*mm+2, 5) + 365*yy + floorDiv(yy, 4) - floorDiv(yy, 100) + floorDiv(yy, 400) - 32045
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
