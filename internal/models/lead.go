// Package models provides data model definitions for the lead book.
package models

import (
	"encoding/json"
	"strings"
)

// Lead is one prospective or existing customer contact.
//
// The JSON keys are the persisted keys of leads_data.json and must not
// change: existing files written by the earlier desktop tool use them.
type Lead struct {
	ID           string     `json:"ID"`
	FirstName    string     `json:"First Name"`
	LastName     string     `json:"Last Name"`
	AddressLine1 string     `json:"Address Line 1"`
	AddressLine2 string     `json:"Address Line 2"`
	City         string     `json:"City"`
	State        string     `json:"State"`
	Zip          string     `json:"Zip"`
	Phone        string     `json:"Phone"`
	Email        string     `json:"Email"`
	Notes        string     `json:"Notes"`
	ReferredBy   string     `json:"Referred By"`
	ReferredTo   string     `json:"Referred To"`
	JobType      JobType    `json:"Job Type"`
	Status       LeadStatus `json:"Lead Status"`
}

// TableName returns the table name for Lead.
func (Lead) TableName() string {
	return "leads"
}

// UnmarshalJSON decodes a persisted lead and fills in defaults for keys the
// file does not carry.
func (l *Lead) UnmarshalJSON(data []byte) error {
	type plain Lead
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = Lead(p)
	l.applyDefaults()
	return nil
}

func (l *Lead) applyDefaults() {
	if jt, err := ParseJobType(string(l.JobType)); err == nil {
		l.JobType = jt
	}
	if st, err := ParseLeadStatus(string(l.Status)); err == nil {
		l.Status = st
	}
}

// Name is the display name used by every exporter: first and last name
// separated by a single space, skipping empty parts.
func (l *Lead) Name() string {
	return joinNonEmpty(" ", l.FirstName, l.LastName)
}

// Address is the one-line postal address used by every exporter, e.g.
// "12 Oak St, Unit 4, Springfield, IL 62701". Empty components are skipped.
func (l *Lead) Address() string {
	return joinNonEmpty(", ",
		l.AddressLine1,
		l.AddressLine2,
		l.City,
		joinNonEmpty(" ", l.State, l.Zip),
	)
}

// CityStateZip is the combined locality column shown by table views.
func (l *Lead) CityStateZip() string {
	return joinNonEmpty(", ", l.City, l.State, l.Zip)
}

// Get returns the value of field f.
func (l *Lead) Get(f Field) string {
	switch f {
	case FieldFirstName:
		return l.FirstName
	case FieldLastName:
		return l.LastName
	case FieldAddressLine1:
		return l.AddressLine1
	case FieldAddressLine2:
		return l.AddressLine2
	case FieldCity:
		return l.City
	case FieldState:
		return l.State
	case FieldZip:
		return l.Zip
	case FieldCityStateZip:
		return l.CityStateZip()
	case FieldPhone:
		return l.Phone
	case FieldEmail:
		return l.Email
	case FieldNotes:
		return l.Notes
	case FieldReferredBy:
		return l.ReferredBy
	case FieldReferredTo:
		return l.ReferredTo
	case FieldJobType:
		return string(l.JobType)
	case FieldLeadStatus:
		return string(l.Status)
	}
	return ""
}

// Set overwrites field f with value. Text fields take any value; Job Type
// and Lead Status must name a known value.
func (l *Lead) Set(f Field, value string) error {
	switch f {
	case FieldFirstName:
		l.FirstName = value
	case FieldLastName:
		l.LastName = value
	case FieldAddressLine1:
		l.AddressLine1 = value
	case FieldAddressLine2:
		l.AddressLine2 = value
	case FieldCity:
		l.City = value
	case FieldState:
		l.State = value
	case FieldZip:
		l.Zip = value
	case FieldCityStateZip:
		l.City, l.State, l.Zip = splitCityStateZip(value)
	case FieldPhone:
		l.Phone = value
	case FieldEmail:
		l.Email = value
	case FieldNotes:
		l.Notes = value
	case FieldReferredBy:
		l.ReferredBy = value
	case FieldReferredTo:
		l.ReferredTo = value
	case FieldJobType:
		jt, err := ParseJobType(value)
		if err != nil {
			return err
		}
		l.JobType = jt
	case FieldLeadStatus:
		st, err := ParseLeadStatus(value)
		if err != nil {
			return err
		}
		l.Status = st
	default:
		return unknownFieldError(string(f))
	}
	return nil
}

// NewLead builds a lead from entry-form values. Unset fields take their
// defaults; Lead Status is always In System regardless of the input.
func NewLead(values map[Field]string) (Lead, error) {
	normalized := make(map[Field]string, len(values))
	for k, v := range values {
		f, err := ParseField(string(k))
		if err != nil {
			return Lead{}, err
		}
		normalized[f] = v
	}

	l := Lead{JobType: JobTypeUnknown}
	// The combined locality goes first so explicit City/State/Zip win.
	if v, ok := normalized[FieldCityStateZip]; ok {
		l.City, l.State, l.Zip = splitCityStateZip(v)
	}
	for _, f := range EntryFields {
		v, ok := normalized[f]
		if !ok {
			continue
		}
		if err := l.Set(f, v); err != nil {
			return Lead{}, err
		}
	}
	l.Status = StatusInSystem
	return l, nil
}

// splitCityStateZip parses "City, State, Zip" as typed into a combined
// column. "City, ST 12345" is accepted too.
func splitCityStateZip(s string) (city, state, zip string) {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 1:
		return parts[0], "", ""
	case 2:
		city = parts[0]
		rest := strings.Fields(parts[1])
		if len(rest) >= 2 {
			return city, strings.Join(rest[:len(rest)-1], " "), rest[len(rest)-1]
		}
		return city, parts[1], ""
	default:
		return parts[0], parts[1], strings.Join(parts[2:], ", ")
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
