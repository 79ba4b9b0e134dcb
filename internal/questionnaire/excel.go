package questionnaire

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Answer column headers written into the output workbook.
const (
	headerResponse   = "Réponse"
	headerConfidence = "Confiance"
	headerSources    = "Sources"
)

// errorMarker prefixes failed questions in the output, keeping them
// distinguishable from genuine low-confidence answers.
const errorMarker = "ERREUR"

// Questionnaire is a parsed tender workbook: the questions plus enough
// layout information to write answers back into a copy of the original.
type Questionnaire struct {
	Path        string
	Sheet       string
	Questions   []Question
	questionCol int // 1-based
	categoryCol int // 1-based, 0 when absent
	hasHeader   bool
	width       int // widest row, answer columns start after it
}

// Read parses the first sheet of a workbook. When a header row names a
// question column ("question") it is used, with an optional category
// column; otherwise every non-empty first-column cell is a question.
func Read(path string) (*Questionnaire, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open questionnaire: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("questionnaire %s has no sheets", path)
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	q := &Questionnaire{
		Path:        path,
		Sheet:       sheet,
		questionCol: 1,
	}

	for _, row := range rows {
		q.width = max(q.width, len(row))
	}

	firstDataRow := 1
	if len(rows) > 0 {
		if qCol, cCol, ok := detectColumns(rows[0]); ok {
			q.hasHeader = true
			q.questionCol = qCol
			q.categoryCol = cCol
			firstDataRow = 2
		}
	}

	for i := firstDataRow - 1; i < len(rows); i++ {
		row := rows[i]
		text := cellAt(row, q.questionCol)
		if strings.TrimSpace(text) == "" {
			continue
		}
		q.Questions = append(q.Questions, Question{
			ID:       i + 1,
			Text:     strings.TrimSpace(text),
			Category: strings.TrimSpace(cellAt(row, q.categoryCol)),
		})
	}

	return q, nil
}

// WriteAnswers copies the source workbook to outPath with three new columns
// holding each question's answer, confidence and sources. Failed questions
// get an explicit error marker instead of a fabricated answer.
func (q *Questionnaire) WriteAnswers(outPath string, records []Record) error {
	f, err := excelize.OpenFile(q.Path)
	if err != nil {
		return fmt.Errorf("reopen questionnaire: %w", err)
	}
	defer f.Close()

	ansCol := q.width + 1
	confCol := q.width + 2
	srcCol := q.width + 3

	if q.hasHeader {
		for col, header := range map[int]string{
			ansCol:  headerResponse,
			confCol: headerConfidence,
			srcCol:  headerSources,
		} {
			if err := setCell(f, q.Sheet, col, 1, header); err != nil {
				return err
			}
		}
	}

	for _, rec := range records {
		if rec.Err != "" {
			if err := setCell(f, q.Sheet, ansCol, rec.QuestionID, fmt.Sprintf("%s: %s", errorMarker, rec.Err)); err != nil {
				return err
			}
			continue
		}

		if err := setCell(f, q.Sheet, ansCol, rec.QuestionID, rec.Response); err != nil {
			return err
		}
		if err := setCell(f, q.Sheet, confCol, rec.QuestionID, rec.Confidence); err != nil {
			return err
		}
		if err := setCell(f, q.Sheet, srcCol, rec.QuestionID, strings.Join(rec.Sources, "; ")); err != nil {
			return err
		}
	}

	if err := f.SaveAs(outPath); err != nil {
		return fmt.Errorf("save answered questionnaire: %w", err)
	}
	return nil
}

// OutputPath derives the answered copy's location: the input file name with
// an _avec_reponses suffix, placed in outputDir.
func OutputPath(outputDir, inputPath string) string {
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(outputDir, name+"_avec_reponses"+ext)
}

// detectColumns finds the question and category columns in a header row.
func detectColumns(header []string) (questionCol, categoryCol int, ok bool) {
	for i, cell := range header {
		h := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case strings.Contains(h, "question"):
			if questionCol == 0 {
				questionCol = i + 1
			}
		case strings.Contains(h, "catégorie") || strings.Contains(h, "categorie") || strings.Contains(h, "category"):
			if categoryCol == 0 {
				categoryCol = i + 1
			}
		}
	}
	return questionCol, categoryCol, questionCol > 0
}

func cellAt(row []string, col int) string {
	if col <= 0 || col > len(row) {
		return ""
	}
	return row[col-1]
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name (%d,%d): %w", col, row, err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}
