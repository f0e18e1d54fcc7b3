package extract

import (
	"fmt"
	"strings"

	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"tender-rag/internal/models"
)

// sheetExtractor flattens spreadsheet workbooks into tab-separated text,
// one section per sheet. XLSX goes through tealeg/xlsx, ODS through
// excelize which also reads the OpenDocument container.
type sheetExtractor struct{}

func (e *sheetExtractor) Name() string { return "spreadsheet" }

func (e *sheetExtractor) Supports(ext string) bool {
	return ext == ".xlsx" || ext == ".ods"
}

func (e *sheetExtractor) Extract(filePath string) (*models.ExtractionResult, error) {
	if strings.HasSuffix(strings.ToLower(filePath), ".xlsx") {
		return e.extractXLSX(filePath)
	}
	return e.extractODS(filePath)
}

func (e *sheetExtractor) extractXLSX(filePath string) (*models.ExtractionResult, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, sheet := range f.Sheets {
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		text.WriteString("\n")
	}

	return &models.ExtractionResult{
		Text:       text.String(),
		PageCount:  len(f.Sheets),
		TableCount: len(f.Sheets),
	}, nil
}

func (e *sheetExtractor) extractODS(filePath string) (*models.ExtractionResult, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var text strings.Builder
	sheets := f.GetSheetList()
	for _, sheetName := range sheets {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		text.WriteString("\n")
	}

	return &models.ExtractionResult{
		Text:       text.String(),
		PageCount:  len(sheets),
		TableCount: len(sheets),
	}, nil
}
