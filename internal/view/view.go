// Package view maps backend generation responses to render models. It is
// pure formatting: no I/O, no state.
package view

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"invoice-console/internal/backend"
)

// Artifact names offered for download, matching what the backend's own
// tooling writes.
const (
	ReportFilename = "Invoice_Report.xlsx"
	AuditFilename  = "Audit.json"
)

// CostLine is one hour-category row on an engineer card.
type CostLine struct {
	Label string `json:"label"` // Normal, OT, HOT
	Hours string `json:"hours"`
	Rate  string `json:"rate"`
	Cost  string `json:"cost"`
}

// EngineerCard is the expandable per-engineer breakdown.
type EngineerCard struct {
	Name     string     `json:"name"`
	Category string     `json:"category"`
	Level    string     `json:"level"`
	Lines    []CostLine `json:"lines"`
	Subtotal string     `json:"subtotal"`
}

// SummaryView is the aggregate banner.
type SummaryView struct {
	GrandTotal     string `json:"grand_total"`
	ContractNumber string `json:"contract_number"`
	Engineers      int    `json:"engineers"`
	TotalHours     string `json:"total_hours"`
	NormalHours    string `json:"normal_hours"`
	OTHours        string `json:"ot_hours"`
	HOTHours       string `json:"hot_hours"`
	DateRange      string `json:"date_range"`
}

// Downloads describes the two downloadable artifacts.
type Downloads struct {
	ReportName string `json:"report_name"`
	ReportSize string `json:"report_size"`
	AuditName  string `json:"audit_name"`
}

// Result is the full render model for one generation outcome.
type Result struct {
	OK        bool           `json:"ok"`
	Error     string         `json:"error,omitempty"`
	ErrorType string         `json:"error_type,omitempty"`
	Summary   *SummaryView   `json:"summary,omitempty"`
	Engineers []EngineerCard `json:"engineers,omitempty"`
	Downloads *Downloads     `json:"downloads,omitempty"`
}

// FromResponse builds the render model for a backend response, covering both
// the success and the logical-failure shape.
func FromResponse(resp *backend.GenerateResponse) Result {
	if !resp.Success {
		return Result{
			OK:        false,
			Error:     JoinErrors(resp.Errors),
			ErrorType: resp.ErrorType,
		}
	}

	out := Result{OK: true}

	if resp.Summary != nil {
		s := resp.Summary
		out.Summary = &SummaryView{
			GrandTotal:     FormatUSD(s.GrandTotalUSD),
			ContractNumber: s.ContractNumber,
			Engineers:      s.TotalEngineers,
			TotalHours:     FormatHours(s.TotalHours),
			NormalHours:    FormatHours(s.TotalNormalHours),
			OTHours:        FormatHours(s.TotalOTHours),
			HOTHours:       FormatHours(s.TotalHOTHours),
			DateRange:      formatDateRange(s.DateRange),
		}
	}

	for _, e := range resp.Engineers {
		out.Engineers = append(out.Engineers, EngineerCard{
			Name:     e.Name,
			Category: e.Category,
			Level:    e.Level,
			Lines: []CostLine{
				{Label: "Normal", Hours: FormatHours(e.NormalHours), Rate: FormatUSD(e.NormalRate), Cost: FormatUSD(e.NormalCost)},
				{Label: "OT", Hours: FormatHours(e.OTHours), Rate: FormatUSD(e.OTRate), Cost: FormatUSD(e.OTCost)},
				{Label: "HOT", Hours: FormatHours(e.HOTHours), Rate: FormatUSD(e.HOTRate), Cost: FormatUSD(e.HOTCost)},
			},
			Subtotal: FormatUSD(e.TotalCost),
		})
	}

	if resp.ExcelBase64 != "" {
		out.Downloads = &Downloads{
			ReportName: ReportFilename,
			ReportSize: humanize.Bytes(uint64(base64.StdEncoding.DecodedLen(len(resp.ExcelBase64)))),
			AuditName:  AuditFilename,
		}
	}

	return out
}

// TransportFailure builds the render model for a failed exchange.
func TransportFailure(err error) Result {
	return Result{
		OK:        false,
		Error:     fmt.Sprintf("Generation failed: %v", err),
		ErrorType: "transport_error",
	}
}

// FormatUSD renders a dollar amount with thousands separators and two fixed
// decimals, e.g. 1234.5 -> "$1,234.50".
func FormatUSD(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// FormatHours renders an hour count, dropping a trailing ".0".
func FormatHours(v float64) string {
	s := humanize.CommafWithDigits(v, 2)
	return s + "h"
}

// JoinErrors joins a backend error list for the banner, one per line.
func JoinErrors(errs []string) string {
	if len(errs) == 0 {
		return "generation failed"
	}
	return strings.Join(errs, "\n")
}

// DecodeReport decodes the embedded spreadsheet bytes.
func DecodeReport(resp *backend.GenerateResponse) ([]byte, error) {
	if resp == nil || resp.ExcelBase64 == "" {
		return nil, fmt.Errorf("no report in result")
	}
	b, err := base64.StdEncoding.DecodeString(resp.ExcelBase64)
	if err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return b, nil
}

// AuditJSON renders the audit object as indented JSON for download.
func AuditJSON(resp *backend.GenerateResponse) ([]byte, error) {
	if resp == nil || resp.Audit == nil {
		return nil, fmt.Errorf("no audit in result")
	}
	return json.MarshalIndent(resp.Audit, "", "  ")
}

func formatDateRange(dr backend.DateRange) string {
	switch {
	case dr.Start == "" && dr.End == "":
		return ""
	case dr.End == "":
		return dr.Start
	case dr.Start == "":
		return dr.End
	default:
		return dr.Start + " to " + dr.End
	}
}
