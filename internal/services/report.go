package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/code-o-holic/ai-toolkit-datasets/internal/dataset"
	"github.com/code-o-holic/ai-toolkit-datasets/internal/domain"
)

const reportFileName = "report.pdf"

type ReportService struct{}

func NewReportService() *ReportService {
	return &ReportService{}
}

// ReportPath returns where a dataset's caption report lives. Reports go in
// the _controls subdirectory so the captioning walks never see them.
func (s *ReportService) ReportPath(datasetDir string) string {
	return filepath.Join(datasetDir, dataset.ControlsDirName, reportFileName)
}

// GenerateReport renders a caption report PDF for a dataset: counts, lock
// status, and every media file with its caption (or a missing marker).
func (s *ReportService) GenerateReport(datasetDir, name string, st dataset.Status, lock domain.DatasetLock, locked bool) (string, error) {
	outPath := s.ReportPath(datasetDir)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure report directory: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Dataset %s", name), false)
	pdf.SetAuthor("ai-toolkit-datasets", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, name)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04")))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Media files: %d, captioned: %d", st.Total, st.Captioned))
	pdf.Ln(6)

	lockLine := "Lock: not locked"
	if locked {
		lockLine = fmt.Sprintf("Lock: %s at %s", lock.Identifier, lock.LockedAt.Format("2006-01-02 15:04"))
	}
	pdf.Cell(0, 6, lockLine)
	pdf.Ln(12)

	s.writeCaptionSection(pdf, datasetDir)

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	return outPath, nil
}

func (s *ReportService) writeCaptionSection(pdf *gofpdf.Fpdf, datasetDir string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "Captions")
	pdf.Ln(10)

	for _, mediaPath := range dataset.FindAllMedia(datasetDir, dataset.ModeAll) {
		rel, err := filepath.Rel(datasetDir, mediaPath)
		if err != nil {
			rel = filepath.Base(mediaPath)
		}

		pdf.SetFont("Helvetica", "B", 11)
		pdf.MultiCell(0, 5, rel, "", "L", false)

		pdf.SetFont("Helvetica", "", 11)
		caption := "(no caption)"
		if data, err := os.ReadFile(dataset.CaptionPath(mediaPath)); err == nil {
			if text := strings.TrimSpace(string(data)); text != "" {
				caption = text
			}
		}
		pdf.MultiCell(0, 5, caption, "", "L", false)
		pdf.Ln(3)
	}
}
