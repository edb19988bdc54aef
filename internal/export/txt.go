package export

import (
	"fmt"
	"io"

	"github.com/kimhsiao/leadbook/internal/models"
)

// ExportTXT writes one block per lead: a "Column: value" line for each
// report column followed by a blank line.
func (s *Service) ExportTXT(leads []models.Lead, path string) (*Result, error) {
	start := s.now()
	size, err := writeFile(path, func(w io.Writer) error {
		return writeTXT(w, leads)
	})
	if err != nil {
		return nil, err
	}
	return s.result(FormatTXT, path, len(leads), size, start), nil
}

func writeTXT(w io.Writer, leads []models.Lead) error {
	for _, l := range leads {
		row := Row(l)
		for i, col := range Columns {
			if _, err := fmt.Fprintf(w, "%s: %s\n", col, row[i]); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
