package backend

// Wire types for the invoice backend API. Field names mirror the backend's
// JSON so future additions are ignored safely.

// File is a named payload for one multipart file field.
type File struct {
	Name string
	Data []byte
}

// GenerateRequest carries everything the backend needs for one invoice run.
type GenerateRequest struct {
	PO             File
	Timesheets     []File
	Template       File
	EngineerConfig string // JSON object, forwarded verbatim
	Strict         bool
}

// DateRange is the first/last worked date covered by the invoice.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Summary contains the invoice-wide aggregates.
type Summary struct {
	GrandTotalUSD    float64   `json:"grand_total_usd"`
	TotalEngineers   int       `json:"total_engineers"`
	TotalNormalHours float64   `json:"total_normal_hours"`
	TotalOTHours     float64   `json:"total_ot_hours"`
	TotalHOTHours    float64   `json:"total_hot_hours"`
	TotalHours       float64   `json:"total_hours"`
	ContractNumber   string    `json:"contract_number"`
	DateRange        DateRange `json:"date_range"`
}

// Engineer is the per-engineer cost breakdown across the three hour
// categories (normal, overtime, holiday-overtime).
type Engineer struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Level       string  `json:"level"`
	NormalHours float64 `json:"normal_hours"`
	OTHours     float64 `json:"ot_hours"`
	HOTHours    float64 `json:"hot_hours"`
	TotalHours  float64 `json:"total_hours"`
	NormalRate  float64 `json:"normal_rate"`
	OTRate      float64 `json:"ot_rate"`
	HOTRate     float64 `json:"hot_rate"`
	NormalCost  float64 `json:"normal_cost"`
	OTCost      float64 `json:"ot_cost"`
	HOTCost     float64 `json:"hot_cost"`
	TotalCost   float64 `json:"total_cost"`
}

// GenerateResponse is the backend's answer to POST /api/v1/generate.
//
// Success=false with Errors set is a logical failure (bad config, strict
// validation), distinct from transport errors which surface as Go errors.
type GenerateResponse struct {
	Success     bool           `json:"success"`
	Summary     *Summary       `json:"summary,omitempty"`
	Engineers   []Engineer     `json:"engineers,omitempty"`
	ExcelBase64 string         `json:"excel_base64,omitempty"`
	Audit       map[string]any `json:"audit,omitempty"`
	ErrorType   string         `json:"error_type,omitempty"`
	Errors      []string       `json:"errors,omitempty"`
}
