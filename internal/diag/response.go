package diag

import (
	"encoding/json"
	"errors"
)

// ErrorInfo is the structured failure detail attached to a response.
// Raw carries unparseable output so the caller can inspect it.
type ErrorInfo struct {
	Kind Kind   `json:"kind"`
	Msg  string `json:"msg"`
	Path string `json:"path,omitempty"`
	Raw  string `json:"raw,omitempty"`
}

// Response is the single shape every operation returns to the host
// framework. Failures never cross the boundary as raw errors; they are
// rendered into Failed + Error so the framework can build a consistent
// report and decide retry/halt behavior from Changed/Failed.
type Response struct {
	Changed bool    `json:"changed"`
	Failed  bool    `json:"failed"`
	Msg     string  `json:"msg,omitempty"`
	RC      int     `json:"rc"`
	Stdout  string  `json:"stdout"`
	Stderr  string  `json:"stderr"`
	Elapsed float64 `json:"elapsed"`

	ToolVersion string `json:"risu_version,omitempty"`

	Plugins           []Plugin       `json:"plugins,omitempty"`
	PluginCount       int            `json:"plugin_count,omitempty"`
	PluginsByCategory map[string]int `json:"plugins_by_category,omitempty"`

	Results    *Result  `json:"results,omitempty"`
	Summary    *Summary `json:"summary,omitempty"`
	OutputFile string   `json:"output_file,omitempty"`

	JobID     string `json:"job_id,omitempty"`
	JobStatus string `json:"job_status,omitempty"`

	// DryRun marks a response that reports the intended invocation
	// without having executed anything.
	DryRun bool     `json:"dry_run,omitempty"`
	Cmd    []string `json:"cmd,omitempty"`

	Error *ErrorInfo `json:"error,omitempty"`
}

// JSON renders the response for the exec boundary and the HTTP surface.
func (r *Response) JSON() (string, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// failureResponse converts a classified error into a structured failure.
func failureResponse(err error) *Response {
	resp := &Response{Failed: true, RC: -1}
	var de *Error
	if errors.As(err, &de) {
		resp.Msg = de.Msg
		resp.Error = &ErrorInfo{Kind: de.Kind, Msg: de.Msg, Path: de.Path, Raw: de.Raw}
	} else {
		resp.Msg = err.Error()
		resp.Error = &ErrorInfo{Kind: KindExecutionFailure, Msg: err.Error()}
	}
	return resp
}
