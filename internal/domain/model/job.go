package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical format for a job's calendar date key.
const DateLayout = "2006-01-02"

// SlotsPerDay is the fixed number of hour slots in a job.
const SlotsPerDay = 24

type SlotStatus string

const (
	SlotStatusPending           SlotStatus = "pending"
	SlotStatusProcessing        SlotStatus = "processing"
	SlotStatusCompleted         SlotStatus = "completed"
	SlotStatusFailed            SlotStatus = "failed"
	SlotStatusPermanentlyFailed SlotStatus = "permanently_failed"
)

// Terminal reports whether no further processing attempt may touch the slot.
func (s SlotStatus) Terminal() bool {
	return s == SlotStatusCompleted || s == SlotStatusPermanentlyFailed
}

// HourSlot is the unit of processing for one hour-of-day within a Job.
// Status moves pending -> processing -> {completed | failed}, and
// failed -> processing on retry, until completed or the attempt ceiling
// turns it permanently_failed. Hour ranges are immutable after creation.
type HourSlot struct {
	JobDate     string // DateLayout
	HourRange   string // "HH-HH", end hour mod 24
	Status      SlotStatus
	Attempts    int
	LastError   string
	RecordCount int64
	FilePath    string
	StorageKey  string
	UploadedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Job is the per-date container of exactly SlotsPerDay hour slots that
// partition the day contiguously from "00-01" through "23-00".
type Job struct {
	Date      string // DateLayout
	HourSlots []HourSlot
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewJob builds a job for date with all slots pending.
func NewJob(date string, now time.Time) *Job {
	j := &Job{
		Date:      date,
		HourSlots: make([]HourSlot, 0, SlotsPerDay),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for h := 0; h < SlotsPerDay; h++ {
		j.HourSlots = append(j.HourSlots, HourSlot{
			JobDate:   date,
			HourRange: HourRangeFor(h),
			Status:    SlotStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return j
}

// HourRangeFor formats the "HH-HH" key for the slot starting at hour h.
func HourRangeFor(h int) string {
	return fmt.Sprintf("%02d-%02d", h, (h+1)%SlotsPerDay)
}

// ParseHourRange validates an "HH-HH" key and returns its start hour.
func ParseHourRange(hr string) (int, error) {
	parts := strings.Split(hr, "-")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("hour range %q: want \"HH-HH\"", hr)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil || start < 0 || start >= SlotsPerDay {
		return 0, fmt.Errorf("hour range %q: bad start hour", hr)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil || end != (start+1)%SlotsPerDay {
		return 0, fmt.Errorf("hour range %q: end must be start+1 mod 24", hr)
	}
	return start, nil
}

// ParseDate validates a DateLayout date key.
func ParseDate(date string) (time.Time, error) {
	return time.Parse(DateLayout, date)
}

// SlotWindow resolves the half-open interval [start, end) covered by
// (date, hourRange) in the given location.
func SlotWindow(date, hourRange string, loc *time.Location) (time.Time, time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	h, err := ParseHourRange(hourRange)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(d.Year(), d.Month(), d.Day(), h, 0, 0, 0, loc)
	return start, start.Add(time.Hour), nil
}
