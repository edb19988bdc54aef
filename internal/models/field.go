package models

import (
	"strings"

	apperrors "github.com/kimhsiao/leadbook/internal/errors"
)

// Field names one editable attribute of a Lead. The values are the persisted
// JSON keys.
type Field string

const (
	FieldFirstName    Field = "First Name"
	FieldLastName     Field = "Last Name"
	FieldAddressLine1 Field = "Address Line 1"
	FieldAddressLine2 Field = "Address Line 2"
	FieldCity         Field = "City"
	FieldState        Field = "State"
	FieldZip          Field = "Zip"
	FieldPhone        Field = "Phone"
	FieldEmail        Field = "Email"
	FieldNotes        Field = "Notes"
	FieldReferredBy   Field = "Referred By"
	FieldReferredTo   Field = "Referred To"
	FieldJobType      Field = "Job Type"
	FieldLeadStatus   Field = "Lead Status"

	// FieldCityStateZip is not stored. Setting it splits the value into
	// City, State and Zip.
	FieldCityStateZip Field = "City, State, Zip"
)

// Fields lists the stored fields in persisted order.
var Fields = []Field{
	FieldFirstName,
	FieldLastName,
	FieldAddressLine1,
	FieldAddressLine2,
	FieldCity,
	FieldState,
	FieldZip,
	FieldPhone,
	FieldEmail,
	FieldNotes,
	FieldReferredBy,
	FieldReferredTo,
	FieldJobType,
	FieldLeadStatus,
}

// EntryFields are the fields a new lead can be created with. Lead Status is
// not among them: new leads always start In System.
var EntryFields = Fields[:len(Fields)-1 : len(Fields)-1]

var fieldAliases = map[string]Field{
	"first":        FieldFirstName,
	"last":         FieldLastName,
	"address":      FieldAddressLine1,
	"address1":     FieldAddressLine1,
	"address2":     FieldAddressLine2,
	"postcode":     FieldZip,
	"zipcode":      FieldZip,
	"phone number": FieldPhone,
	"job":          FieldJobType,
	"type":         FieldJobType,
	"status":       FieldLeadStatus,
	"csz":          FieldCityStateZip,
}

// ParseField resolves a field name. Besides the exact persisted keys it
// accepts case-insensitive spellings with spaces, underscores or hyphens
// ("first_name", "lead-status") and a few short aliases ("status", "job").
func ParseField(s string) (Field, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)
	key = strings.Join(strings.Fields(key), " ")

	for _, f := range Fields {
		if key == strings.ToLower(string(f)) {
			return f, nil
		}
	}
	if key == strings.ToLower(string(FieldCityStateZip)) || key == "city state zip" {
		return FieldCityStateZip, nil
	}
	if f, ok := fieldAliases[key]; ok {
		return f, nil
	}
	return "", unknownFieldError(s)
}

func unknownFieldError(s string) error {
	return apperrors.Newf(apperrors.ErrInvalidField, "unknown lead field %q", s)
}
