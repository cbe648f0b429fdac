package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/labor-atlas/internal/model"
)

// payroll column order in the standard export layout.
const (
	payrollColAgency = iota
	payrollColEmployeeID
	payrollColTitle
	payrollColCity
	payrollColState
	payrollColAnnualPay
	payrollColFiscalYear
	payrollColCount // expected column count
)

// PayrollAdapter parses government payroll XLSX exports. Payroll rows
// are the highest-reliability source: actual people, actual pay.
type PayrollAdapter struct{}

// NewPayrollAdapter creates a payroll export adapter.
func NewPayrollAdapter() *PayrollAdapter { return &PayrollAdapter{} }

// Descriptor returns the payroll source identity.
func (a *PayrollAdapter) Descriptor() model.Source {
	return model.Source{Name: "state_payroll", Category: model.CategoryPayroll, Tier: model.TierA, Weight: 0.95}
}

// Parse reads the first sheet of a payroll workbook. The natural key is
// agency + employee id + fiscal year, which identifies one person's
// position in one reporting period.
func (a *PayrollAdapter) Parse(ctx context.Context, r io.Reader) ([]model.RawRecord, error) {
	// tealeg needs random access; spool the stream to a temp file.
	tmp, err := os.CreateTemp("", "payroll-*.xlsx")
	if err != nil {
		return nil, eris.Wrap(err, "payroll: create temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, eris.Wrap(err, "payroll: spool workbook")
	}
	tmp.Close()

	f, err := xlsx.OpenFile(tmp.Name())
	if err != nil {
		return nil, eris.Wrap(err, "payroll: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("payroll: workbook has no sheets")
	}
	sheet := f.Sheets[0]

	var records []model.RawRecord
	var skipped int
	for i, row := range sheet.Rows {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "payroll: parse cancelled")
		}
		if i == 0 {
			continue // header
		}

		cells := make([]string, payrollColCount)
		for j, cell := range row.Cells {
			if j >= payrollColCount {
				break
			}
			cells[j] = strings.TrimSpace(cell.String())
		}

		agency := cells[payrollColAgency]
		empID := cells[payrollColEmployeeID]
		year := cells[payrollColFiscalYear]
		if agency == "" || empID == "" {
			skipped++
			continue
		}

		rec := model.RawRecord{
			NaturalKey:  fmt.Sprintf("%s|%s|%s", agency, empID, year),
			RawCompany:  agency,
			RawLocation: joinCityState(cells[payrollColCity], cells[payrollColState]),
			RawTitle:    cells[payrollColTitle],
		}
		if pay := parsePay(cells[payrollColAnnualPay]); pay != nil {
			rec.RawSalary = pay
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		zap.L().Warn("payroll: skipped rows missing agency or employee id", zap.Int("skipped", skipped))
	}
	return records, nil
}

func parsePay(s string) *float64 {
	s = strings.TrimSpace(strings.Trim(strings.ReplaceAll(s, ",", ""), "$ "))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}
