package export

import (
	"bytes"
	"io"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"

	"github.com/kimhsiao/leadbook/internal/models"
)

// Table layout in points on US Letter portrait.
const (
	pdfMargin          = 36.0
	pdfFontSize        = 10.0
	pdfLineHeight      = 12.0
	pdfPadX            = 6.0
	pdfPadY            = 3.0
	pdfHeaderPadBottom = 12.0
	pdfGridWidth       = 1.0

	// The logo is scaled to this many pixels wide and drawn at 96 dpi.
	logoWidthPx = 150
	logoGap     = 12.0
)

// Relative column widths in Columns order.
var pdfColumnWeights = []float64{1.1, 1.9, 1.0, 1.6, 2.0, 0.9}

type rgb struct{ r, g, b int }

var (
	colorGrey       = rgb{128, 128, 128}
	colorWhitesmoke = rgb{245, 245, 245}
	colorBeige      = rgb{245, 245, 220}
	colorBlack      = rgb{0, 0, 0}
)

// ExportPDF renders the report columns as a table: grey header row with
// bold whitesmoke text, beige body rows, black grid lines and centered,
// word-wrapped cells. The header is repeated on every page.
func (s *Service) ExportPDF(leads []models.Lead, path string) (*Result, error) {
	start := s.now()
	size, err := writeFile(path, func(w io.Writer) error {
		return s.writePDF(w, leads)
	})
	if err != nil {
		return nil, err
	}
	return s.result(FormatPDF, path, len(leads), size, start), nil
}

func (s *Service) writePDF(w io.Writer, leads []models.Lead) error {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.SetTitle(s.opts.Title, true)
	pdf.SetCreator("leadbook", true)
	pdf.SetCreationDate(s.now())
	pdf.SetLineWidth(pdfGridWidth)
	pdf.SetDrawColor(colorBlack.r, colorBlack.g, colorBlack.b)
	pdf.AddPage()

	if s.opts.LogoPath != "" {
		if err := s.drawLogo(pdf); err != nil {
			s.log.Warn("logo skipped", map[string]any{"logo": s.opts.LogoPath, "cause": err.Error()})
		}
	}

	t := newPDFTable(pdf)
	t.drawHeader()
	for _, l := range leads {
		t.drawBody(Row(l))
	}

	return pdf.Output(w)
}

// drawLogo scales the configured image and centers it at the top of the
// first page.
func (s *Service) drawLogo(pdf *fpdf.Fpdf) error {
	img, err := imaging.Open(s.opts.LogoPath, imaging.AutoOrientation(true))
	if err != nil {
		return err
	}
	img = imaging.Resize(img, logoWidthPx, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return err
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("logo", opts, &buf)
	if err := pdf.Error(); err != nil {
		pdf.ClearError()
		return err
	}

	bounds := img.Bounds()
	w := float64(logoWidthPx) * 72 / 96
	h := w * float64(bounds.Dy()) / float64(bounds.Dx())
	pageW, _ := pdf.GetPageSize()
	pdf.ImageOptions("logo", (pageW-w)/2, pdfMargin, w, h, false, opts, 0, "")
	pdf.SetY(pdfMargin + h + logoGap)
	return nil
}

// columnWidths splits total across the columns by weight.
func columnWidths(total float64) []float64 {
	var sum float64
	for _, w := range pdfColumnWeights {
		sum += w
	}
	widths := make([]float64, len(pdfColumnWeights))
	for i, w := range pdfColumnWeights {
		widths[i] = total * w / sum
	}
	return widths
}

// pdfTable draws rows top to bottom, starting a new page with a fresh
// header whenever a row would cross the bottom margin. A row taller than
// a whole page is split between pages.
type pdfTable struct {
	pdf     *fpdf.Fpdf
	tr      func(string) string
	widths  []float64
	bodyTop float64 // y of the first body row on the current page
}

func newPDFTable(pdf *fpdf.Fpdf) *pdfTable {
	pageW, _ := pdf.GetPageSize()
	return &pdfTable{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		widths: columnWidths(pageW - 2*pdfMargin),
	}
}

func (t *pdfTable) drawHeader() {
	t.pdf.SetFont("Helvetica", "B", pdfFontSize)
	t.drawRow(Columns, colorGrey, colorWhitesmoke, pdfHeaderPadBottom)
	t.bodyTop = t.pdf.GetY()
}

func (t *pdfTable) newPage() {
	t.pdf.AddPage()
	t.drawHeader()
	t.pdf.SetFont("Helvetica", "", pdfFontSize)
}

func (t *pdfTable) drawBody(cells []string) {
	t.pdf.SetFont("Helvetica", "", pdfFontSize)
	lines := t.wrap(cells)
	_, pageH := t.pdf.GetPageSize()
	bottom := pageH - pdfMargin

	for {
		y := t.pdf.GetY()
		if y+rowHeight(lines, pdfPadY) <= bottom {
			t.drawLines(lines, colorBeige, colorBlack, pdfPadY)
			return
		}
		fit := int((bottom - y - 2*pdfPadY) / pdfLineHeight)
		if y > t.bodyTop && (fit < 1 || t.bodyTop+rowHeight(lines, pdfPadY) <= bottom) {
			t.newPage()
			continue
		}
		head, rest := splitRow(lines, max(fit, 1))
		t.drawLines(head, colorBeige, colorBlack, pdfPadY)
		t.newPage()
		lines = rest
	}
}

// splitRow cuts every cell after its first n lines.
func splitRow(lines [][][]byte, n int) (head, rest [][][]byte) {
	head = make([][][]byte, len(lines))
	rest = make([][][]byte, len(lines))
	for i, cell := range lines {
		k := min(n, len(cell))
		head[i], rest[i] = cell[:k], cell[k:]
	}
	return head, rest
}

func (t *pdfTable) drawRow(cells []string, fill, text rgb, padBottom float64) {
	t.drawLines(t.wrap(cells), fill, text, padBottom)
}

// wrap splits each cell into lines that fit its column with the current font.
func (t *pdfTable) wrap(cells []string) [][][]byte {
	lines := make([][][]byte, len(cells))
	for i, cell := range cells {
		lines[i] = t.pdf.SplitLines([]byte(t.tr(cell)), t.widths[i]-2*pdfPadX)
	}
	return lines
}

func rowHeight(lines [][][]byte, padBottom float64) float64 {
	n := 1
	for _, cell := range lines {
		n = max(n, len(cell))
	}
	return float64(n)*pdfLineHeight + pdfPadY + padBottom
}

func (t *pdfTable) drawLines(lines [][][]byte, fill, text rgb, padBottom float64) {
	pageW, _ := t.pdf.GetPageSize()
	var tableW float64
	for _, w := range t.widths {
		tableW += w
	}

	h := rowHeight(lines, padBottom)
	x := (pageW - tableW) / 2
	y := t.pdf.GetY()

	t.pdf.SetFillColor(fill.r, fill.g, fill.b)
	t.pdf.SetTextColor(text.r, text.g, text.b)
	for i, cell := range lines {
		w := t.widths[i]
		t.pdf.Rect(x, y, w, h, "FD")
		for j, line := range cell {
			t.pdf.SetXY(x+pdfPadX, y+pdfPadY+float64(j)*pdfLineHeight)
			t.pdf.CellFormat(w-2*pdfPadX, pdfLineHeight, string(line), "", 0, "C", false, 0, "")
		}
		x += w
	}
	t.pdf.SetXY(pdfMargin, y+h)
}
