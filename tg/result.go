package tg

import (
	"encoding/json"
	"fmt"
)

// Result is the decoded API response envelope. A result payload is usable
// only when OK is true; callers must branch on it explicitly.
type Result struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result,omitempty"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *ResponseParameters `json:"parameters,omitempty"`
}

// Decode unmarshals the result payload into out.
// Returns an error if the response did not report success.
func (r *Result) Decode(out any) error {
	if !r.OK {
		return fmt.Errorf("tgflow: cannot decode failed result (code=%d): %s", r.ErrorCode, r.Description)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("tgflow: failed to parse result: %w", err)
	}
	return nil
}

// RetryAfter returns the server-specified wait for rate-limited responses,
// or zero when none was supplied.
func (r *Result) RetryAfter() int {
	if r.Parameters == nil {
		return 0
	}
	return r.Parameters.RetryAfter
}
