// Package questionnaire reads tender questionnaires from Excel workbooks
// and writes the answered copies back out.
package questionnaire

// Question is one row of the tender questionnaire. ID is the spreadsheet
// row number, which is how the answer finds its way back to the right cell.
type Question struct {
	ID       int
	Text     string
	Category string
}

// Record is the outcome for one question: either a generated answer or an
// explicit error marker. A failed question is never disguised as a
// low-confidence answer.
type Record struct {
	QuestionID int
	Response   string
	Confidence float64
	Sources    []string
	Err        string
}
