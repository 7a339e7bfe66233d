package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/haneul-lab/essay-feedback-api/internal/models"
)

const defaultFontFamily = "Arial"

// PDFRenderer renders the feedback report handed to students. A UTF-8 TTF
// font file must be configured for Hangul output; without one the built-in
// core fonts are used and non-Latin text degrades.
type PDFRenderer struct {
	fontPath   string
	fontFamily string
}

// NewPDFRenderer constructs a renderer. fontPath may be empty.
func NewPDFRenderer(fontPath string) *PDFRenderer {
	family := defaultFontFamily
	if fontPath != "" {
		family = "report"
	}
	return &PDFRenderer{fontPath: fontPath, fontFamily: family}
}

// Render produces the PDF document for one record.
func (r *PDFRenderer) Render(record models.EssayRecord) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	if r.fontPath != "" {
		pdf.AddUTF8Font(r.fontFamily, "", r.fontPath)
		pdf.AddUTF8Font(r.fontFamily, "B", r.fontPath)
	}

	pdf.SetFont(r.fontFamily, "B", 16)
	pdf.CellFormat(0, 10, "Essay Feedback Report", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(r.fontFamily, "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Process: %s", record.ProcessID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Essay: %s", record.EssayID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Submitted: %s", record.CreatedAt.Format(time.RFC3339)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if record.Evaluation != nil {
		r.scoresTable(pdf, record.Evaluation)
		pdf.Ln(4)
	}

	r.section(pdf, "Student Essay", record.StudentEssay)
	r.section(pdf, "Feedback", finalFeedback(record))

	if record.AIFeedback != nil && record.AIFeedback.RevisedText != "" {
		r.section(pdf, "Suggested Revision", record.AIFeedback.RevisedText)
	}
	if record.AIFeedback != nil && record.AIFeedback.AchievementExplanation != "" {
		r.section(pdf, "Achievement Standard Notes", record.AIFeedback.AchievementExplanation)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render feedback report: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) scoresTable(pdf *gofpdf.Fpdf, eval *models.Evaluation) {
	rows := []struct {
		label string
		dim   models.Dimension
	}{
		{"Vocabulary", eval.Vocabulary},
		{"Grammar", eval.Grammar},
		{"Logic", eval.Logic},
		{"Empathy", eval.Empathy},
	}

	pdf.SetFont(r.fontFamily, "B", 10)
	pdf.CellFormat(60, 8, "Dimension", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 8, "Score", "1", 1, "C", false, 0, "")

	pdf.SetFont(r.fontFamily, "", 10)
	for _, row := range rows {
		pdf.CellFormat(60, 7, row.label, "1", 0, "", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprintf("%d / %d", row.dim.Value, row.dim.Scale), "1", 1, "C", false, 0, "")
	}
}

func (r *PDFRenderer) section(pdf *gofpdf.Fpdf, title, body string) {
	if body == "" {
		return
	}
	pdf.SetFont(r.fontFamily, "B", 11)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetFont(r.fontFamily, "", 10)
	pdf.MultiCell(0, 5, body, "", "L", false)
	pdf.Ln(3)
}

// finalFeedback picks the teacher-approved feedback, falling back to the
// draft when approval has not happened yet.
func finalFeedback(record models.EssayRecord) string {
	if record.Teacher != nil && record.Teacher.FinalFeedback != "" {
		return record.Teacher.FinalFeedback
	}
	if record.AIFeedback != nil {
		if record.AIFeedback.FinalFeedback != "" {
			return record.AIFeedback.FinalFeedback
		}
		return record.AIFeedback.DraftFeedback
	}
	return ""
}
