package models

// ScanRequest asks for a static scan of an image at URL
type ScanRequest struct {
	URL         string `json:"url" binding:"required,url"`
	Preset      string `json:"preset,omitempty"`
	Sensitivity *int   `json:"sensitivity,omitempty"`
	Language    string `json:"language,omitempty"`
	WithOverlay bool   `json:"with_overlay,omitempty"`
	Diagnose    bool   `json:"diagnose,omitempty"`
}

// ScanResponse is returned for static scans and captures
type ScanResponse struct {
	ImageURL          string           `json:"image_url,omitempty"`
	Timestamp         string           `json:"timestamp"`
	ProcessingTimeSec float64          `json:"processing_time_sec"`
	Width             int              `json:"width"`
	Height            int              `json:"height"`
	Detections        []Detection      `json:"detections"`
	Summary           ScanSummary      `json:"summary"`
	Metrics           FrameMetrics     `json:"metrics"`
	Warnings          []string         `json:"warnings,omitempty"`
	OverlayPNG        string           `json:"overlay_png,omitempty"`
	Diagnosis         *DiagnosisResult `json:"diagnosis,omitempty"`
}

// DiagnoseRequest asks for an AI diagnosis of an image at URL
type DiagnoseRequest struct {
	URL      string `json:"url" binding:"required,url"`
	Language string `json:"language,omitempty"`
}

// ScanSettingsRequest updates a live session's scan settings.
// Nil fields are left unchanged.
type ScanSettingsRequest struct {
	Sensitivity       *int    `json:"sensitivity,omitempty"`
	ShowBoundingBoxes *bool   `json:"show_bounding_boxes,omitempty"`
	ShowConfidence    *bool   `json:"show_confidence,omitempty"`
	ColorCoding       *bool   `json:"color_coding,omitempty"`
	Language          *string `json:"language,omitempty"`
}

// SessionResponse describes a live scan session
type SessionResponse struct {
	ID         string      `json:"id"`
	State      string      `json:"state"`
	Analyzing  bool        `json:"analyzing"`
	Detections []Detection `json:"detections"`
	Summary    ScanSummary `json:"summary"`
	FrameSeq   uint64      `json:"frame_seq"`
	CreatedAt  string      `json:"created_at"`
}

// TranslateRequest asks for a translation of Text into Target
type TranslateRequest struct {
	Text   string `json:"text" binding:"required"`
	Target string `json:"target" binding:"required"`
}

// TranslateResponse carries a translation and whether it is in the target script
type TranslateResponse struct {
	Text     string `json:"text"`
	Target   string `json:"target"`
	Cached   bool   `json:"cached"`
	ScriptOK bool   `json:"script_ok"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
}
