package export

import "github.com/kimhsiao/leadbook/internal/models"

// Columns are the report columns shared by the CSV, PDF, TXT and HTML
// exporters.
var Columns = []string{"Name", "Address", "Phone", "Email", "Notes", "Job Type"}

// Row returns a lead's report cells in Columns order.
func Row(l models.Lead) []string {
	return []string{
		l.Name(),
		l.Address(),
		l.Phone,
		l.Email,
		l.Notes,
		string(l.JobType),
	}
}
