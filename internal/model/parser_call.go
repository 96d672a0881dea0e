package model

import "time"

type ParserCall struct {
	ID           int64     `json:"id"`
	InputText    string    `json:"input_text"`
	Success      bool      `json:"success"`
	ErrorKind    string    `json:"error_kind"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	LatencyMS    int64     `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}
