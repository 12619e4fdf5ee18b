package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf/v2"

	"docquiz/internal/domain"
)

// PDFService renders a question set as a printable quiz sheet with an
// answer key on the final page.
type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

func (s *PDFService) GenerateQuizPDF(title string, questions []domain.Question, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure pdf directory: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, false)
	pdf.SetAuthor("docquiz", false)
	pdf.AddPage()

	if strings.TrimSpace(title) == "" {
		title = "Quiz"
	}

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().Local().Format("02/01/2006 15:04")))
	pdf.Ln(12)

	letters := []string{"A", "B", "C", "D"}
	for i, q := range questions {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, 6, fmt.Sprintf("%d. %s", i+1, q.Text), "", "L", false)
		pdf.Ln(2)

		pdf.SetFont("Helvetica", "", 12)
		for j, opt := range q.Options {
			label := letters[j%len(letters)]
			pdf.MultiCell(0, 6, fmt.Sprintf("   %s) %s", label, opt.Text), "", "L", false)
		}
		pdf.Ln(6)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "Answer Key")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 12)
	for i, q := range questions {
		idx := q.CorrectIndex()
		answer := "?"
		if idx >= 0 {
			answer = letters[idx%len(letters)]
		}
		pdf.Cell(0, 6, fmt.Sprintf("%d. %s", i+1, answer))
		pdf.Ln(6)
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}

	return nil
}
