package exports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"mvpplanner/internal/core"
)

// Format names an export rendering of the plan.
type Format string

const (
	FormatText Format = "txt"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DefaultFormats is used when a request names none.
var DefaultFormats = []Format{FormatText, FormatXLSX}

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatText, FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type stored with the artifact.
func (f Format) ContentType() string {
	switch f {
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// Render produces the artifact bytes for plan in format f.
func Render(f Format, plan core.Plan) ([]byte, error) {
	switch f {
	case FormatText:
		return []byte(core.RenderReport(plan)), nil
	case FormatJSON:
		return json.MarshalIndent(plan, "", "  ")
	case FormatCSV:
		return renderCSV(plan)
	case FormatXLSX:
		return renderXLSX(plan)
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}

var csvHeader = []string{
	"mvp_id", "mvp_name", "clinician_id", "clinician_name", "specialty", "npi", "selected_measures",
}

// renderCSV writes one row per MVP and assigned clinician. An MVP without
// clinicians still gets one row with the clinician columns empty.
func renderCSV(plan core.Plan) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, pg := range plan.Groupings {
		measures := measureIDs(pg)
		if len(pg.Clinicians) == 0 {
			if err := w.Write([]string{pg.Grouping.ID, pg.Grouping.Name, "", "", "", "", measures}); err != nil {
				return nil, err
			}
			continue
		}
		for _, c := range pg.Clinicians {
			row := []string{pg.Grouping.ID, pg.Grouping.Name, c.ID, c.DisplayName(), c.Specialty, c.NPI, measures}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func measureIDs(pg core.PlannedGrouping) string {
	ids := make([]string, len(pg.Measures))
	for i, pm := range pg.Measures {
		ids[i] = pm.Measure.ID
	}
	return strings.Join(ids, ";")
}

type sheet struct {
	name   string
	header []string
	widths []float64
	rows   [][]any
}

func planSheets(plan core.Plan) []sheet {
	groupings := sheet{
		name:   "Groupings",
		header: []string{"MVP ID", "MVP Name", "Eligible Specialties", "Required Measures", "Selected Measures", "Clinicians"},
		widths: []float64{12, 40, 30, 18, 18, 12},
	}
	measures := sheet{
		name:   "Measures",
		header: []string{"MVP ID", "Measure ID", "Measure Name", "Collection Type", "Difficulty", "Activated", "Action"},
		widths: []float64{12, 12, 50, 18, 14, 12, 24},
	}
	clinicians := sheet{
		name:   "Clinicians",
		header: []string{"MVP ID", "Clinician ID", "Name", "Specialty", "NPI"},
		widths: []float64{12, 14, 30, 25, 14},
	}
	for _, pg := range plan.Groupings {
		g := pg.Grouping
		groupings.rows = append(groupings.rows, []any{
			g.ID, g.Name, g.EligibleSpecialties, g.RequiredMeasures, len(pg.Measures), pg.MemberCount,
		})
		for _, pm := range pg.Measures {
			action := ""
			if !pm.Measure.Activated {
				action = "Implement measure"
			}
			measures.rows = append(measures.rows, []any{
				g.ID, pm.Measure.ID, pm.Measure.Name, pm.Config.CollectionType, pm.Config.Difficulty,
				yesNo(pm.Measure.Activated), action,
			})
		}
		for _, c := range pg.Clinicians {
			clinicians.rows = append(clinicians.rows, []any{
				g.ID, c.ID, c.DisplayName(), c.SpecialtyOr("N/A"), c.NPI,
			})
		}
	}
	return []sheet{groupings, measures, clinicians}
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

// renderXLSX writes the plan as a three-sheet workbook.
func renderXLSX(plan core.Plan) (out []byte, err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, s := range planSheets(plan) {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s, headerStyle); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "MVP Strategic Plan - " + plan.Organization,
		Created: plan.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}); err != nil {
		return nil, fmt.Errorf("set doc props: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, s sheet, headerStyle int) error {
	header := make([]any, len(s.header))
	for i, h := range s.header {
		header[i] = h
	}
	if err := f.SetSheetRow(s.name, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", s.name, err)
	}
	last, err := excelize.CoordinatesToCellName(len(s.header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(s.name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", s.name, err)
	}
	for i, width := range s.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(s.name, col, col, width); err != nil {
			return fmt.Errorf("set %s width: %w", s.name, err)
		}
	}
	for i, row := range s.rows {
		row := row
		if err := f.SetSheetRow(s.name, "A"+strconv.Itoa(i+2), &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", s.name, i+2, err)
		}
	}
	return nil
}
