// Package domain contains core concepts of the group-guard bot.
// This file defines wall-clock access schedule rules.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AccessAction is a scheduled group-access transition.
type AccessAction int

const (
	AccessClose AccessAction = iota
	AccessOpen
)

// AdminsOnly maps the action onto the group setting it applies.
func (a AccessAction) AdminsOnly() bool {
	return a == AccessClose
}

func (a AccessAction) String() string {
	if a == AccessClose {
		return "close"
	}
	return "open"
}

// ScheduleRule fires once per day at Hour:Minute in the scheduler's
// configured timezone. Rules are static configuration.
type ScheduleRule struct {
	Hour   int
	Minute int
	Action AccessAction
}

// ParseScheduleRule builds a rule from an "HH:MM" clock string.
func ParseScheduleRule(clock string, action AccessAction) (ScheduleRule, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return ScheduleRule{}, fmt.Errorf("clock time %q must be HH:MM", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return ScheduleRule{}, fmt.Errorf("clock time %q has invalid hour", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return ScheduleRule{}, fmt.Errorf("clock time %q has invalid minute", clock)
	}
	return ScheduleRule{Hour: hour, Minute: minute, Action: action}, nil
}

// NextAfter returns the next firing instant strictly after now, in loc.
func (r ScheduleRule) NextAfter(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), r.Hour, r.Minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
