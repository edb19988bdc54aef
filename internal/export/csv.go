package export

import (
	"encoding/csv"
	"io"

	"github.com/kimhsiao/leadbook/internal/models"
)

// ExportCSV writes a header row and one row per lead. Fields containing
// commas, quotes or newlines are quoted; rows end in CRLF.
func (s *Service) ExportCSV(leads []models.Lead, path string) (*Result, error) {
	start := s.now()
	size, err := writeFile(path, func(w io.Writer) error {
		return writeCSV(w, leads)
	})
	if err != nil {
		return nil, err
	}
	return s.result(FormatCSV, path, len(leads), size, start), nil
}

func writeCSV(w io.Writer, leads []models.Lead) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, l := range leads {
		if err := cw.Write(Row(l)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
