package models

import (
	"strings"

	apperrors "github.com/kimhsiao/leadbook/internal/errors"
)

// LeadStatus is the workflow stage of a lead.
type LeadStatus string

const (
	StatusInSystem     LeadStatus = "In System"
	StatusGoodLead     LeadStatus = "Good Lead"
	StatusContactLater LeadStatus = "Contact Later"
	StatusBadLead      LeadStatus = "Bad Lead"
	StatusPassedAlong  LeadStatus = "Passed Along"
	StatusClosed       LeadStatus = "Closed"
)

// LeadStatuses lists every status in the order menus present them.
var LeadStatuses = []LeadStatus{
	StatusInSystem,
	StatusGoodLead,
	StatusContactLater,
	StatusBadLead,
	StatusPassedAlong,
	StatusClosed,
}

// ParseLeadStatus matches s case-insensitively against the known statuses.
// An empty string yields the default, In System.
func ParseLeadStatus(s string) (LeadStatus, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return StatusInSystem, nil
	}
	for _, st := range LeadStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", apperrors.Newf(apperrors.ErrInvalidValue, "unknown lead status %q", s)
}

// JobType is the category of work a lead is for.
type JobType string

// The entry form historically offered "Unknown" and the table editor
// "Other" for the same choice; both map to JobTypeUnknown.
const (
	JobTypeResidential JobType = "Residential"
	JobTypeCommercial  JobType = "Commercial"
	JobTypeUnknown     JobType = "Unknown"
)

// JobTypes lists every job type in menu order.
var JobTypes = []JobType{JobTypeResidential, JobTypeCommercial, JobTypeUnknown}

var jobTypeAliases = map[string]JobType{
	"other":         JobTypeUnknown,
	"other/unknown": JobTypeUnknown,
}

// ParseJobType matches s case-insensitively against the known job types and
// their aliases. An empty string yields Unknown.
func ParseJobType(s string) (JobType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return JobTypeUnknown, nil
	}
	for _, jt := range JobTypes {
		if strings.EqualFold(s, string(jt)) {
			return jt, nil
		}
	}
	if jt, ok := jobTypeAliases[strings.ToLower(s)]; ok {
		return jt, nil
	}
	return "", apperrors.Newf(apperrors.ErrInvalidValue, "unknown job type %q", s)
}
