package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"
)

// Adapter is the top-level dispatcher. It selects one of the three
// operating modes, drives prober, builder, runner, and normalizer in
// sequence, and assembles the final response. Every failure comes back
// as a structured response, never as a raw error.
type Adapter struct {
	runner    CommandRunner
	jobs      JobStore
	log       *logrus.Logger
	spoolRoot string
}

// NewAdapter wires the engine. jobs may be nil when async mode is not
// used (poll and async start will then fail with InvalidOptions).
func NewAdapter(runner CommandRunner, jobs JobStore, log *logrus.Logger, spoolRoot string) *Adapter {
	if runner == nil {
		runner = &ExecRunner{}
	}
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Adapter{runner: runner, jobs: jobs, log: log, spoolRoot: spoolRoot}
}

// Execute handles one request end to end.
func (a *Adapter) Execute(ctx context.Context, opts *RequestOptions) *Response {
	if err := opts.Validate(); err != nil {
		return failureResponse(err)
	}

	a.log.WithFields(logrus.Fields{
		"mode":    opts.Mode,
		"filter":  opts.Filter,
		"dry_run": opts.DryRun,
		"async":   opts.AsyncMode,
	}).Debug("dispatching diagnostic request")

	if opts.DryRun {
		return a.dryRun(ctx, opts)
	}

	switch opts.Mode {
	case ModeValidate:
		return a.validate(ctx, opts)
	case ModeList:
		return a.list(ctx, opts)
	default:
		if opts.AsyncMode {
			return a.startAsync(ctx, opts)
		}
		return a.run(ctx, opts)
	}
}

// dryRun reports the would-be invocation without executing anything.
// output_path is never created.
func (a *Adapter) dryRun(ctx context.Context, opts *RequestOptions) *Response {
	toolPath, err := Probe(opts.ToolPath)
	if err != nil {
		return failureResponse(err)
	}
	inv, err := BuildInvocation(opts, toolPath, opts.OutputPath)
	if err != nil {
		return failureResponse(err)
	}
	return &Response{
		DryRun: true,
		Msg:    fmt.Sprintf("would execute %s diagnostics", opts.Mode),
		Cmd:    append([]string{inv.Path}, inv.Args...),
	}
}

func (a *Adapter) validate(ctx context.Context, opts *RequestOptions) *Response {
	toolPath, err := Probe(opts.ToolPath)
	if err != nil {
		return failureResponse(err)
	}

	inv, err := BuildInvocation(opts, toolPath, "")
	if err != nil {
		return failureResponse(err)
	}

	out, err := a.runner.Run(ctx, inv)
	if err != nil {
		return outcomeFailure(err, out)
	}
	if out.TimedOut {
		return outcomeFailure(&Error{Kind: KindTimeout, Msg: "tool validation timed out", Path: toolPath}, out)
	}
	if out.ExitCode != 0 {
		return outcomeFailure(&Error{Kind: KindExecutionFailure, Msg: "tool validation failed", Path: toolPath}, out)
	}

	resp := responseFrom(out)
	resp.ToolVersion = firstLine(out.Stdout)
	if resp.ToolVersion != "" {
		resp.Msg = fmt.Sprintf("tool is installed and working: %s", resp.ToolVersion)
	} else {
		resp.Msg = "tool is installed and working"
	}
	return resp
}

func (a *Adapter) list(ctx context.Context, opts *RequestOptions) *Response {
	toolPath, err := Probe(opts.ToolPath)
	if err != nil {
		return failureResponse(err)
	}

	inv, err := BuildInvocation(opts, toolPath, "")
	if err != nil {
		return failureResponse(err)
	}

	out, err := a.runner.Run(ctx, inv)
	if err != nil {
		return outcomeFailure(err, out)
	}
	if out.TimedOut {
		return outcomeFailure(&Error{
			Kind: KindTimeout,
			Msg:  fmt.Sprintf("plugin listing timed out after %s", inv.Timeout),
			Path: toolPath,
		}, out)
	}

	plugins := ParseCatalog(out.Stdout)
	if out.ExitCode != 0 && len(plugins) == 0 {
		return outcomeFailure(&Error{Kind: KindExecutionFailure, Msg: "failed to list plugins", Path: toolPath}, out)
	}

	resp := responseFrom(out)
	resp.Plugins = plugins
	resp.PluginCount = len(plugins)
	resp.PluginsByCategory = CountByCategory(plugins)
	resp.Msg = fmt.Sprintf("found %d plugins", len(plugins))
	return resp
}

func (a *Adapter) run(ctx context.Context, opts *RequestOptions) *Response {
	toolPath, err := Probe(opts.ToolPath)
	if err != nil {
		return failureResponse(err)
	}

	outputPath, cleanup, err := a.resolveOutput(opts)
	if err != nil {
		return failureResponse(err)
	}
	defer cleanup()

	inv, err := BuildInvocation(opts, toolPath, outputPath)
	if err != nil {
		return failureResponse(err)
	}

	a.log.WithField("cmd", inv.String()).Info("running diagnostics")

	out, err := a.runner.Run(ctx, inv)
	if err != nil {
		return outcomeFailure(err, out)
	}
	if out.TimedOut {
		return outcomeFailure(&Error{
			Kind: KindTimeout,
			Msg:  fmt.Sprintf("diagnostics timed out after %s", inv.Timeout),
			Path: toolPath,
		}, out)
	}

	// Prefer the output file; an empty one means the tool never wrote
	// it, so stdout stays authoritative.
	raw := []byte(out.Stdout)
	if b, readErr := os.ReadFile(outputPath); readErr == nil && len(b) > 0 {
		raw = b
	}

	parser, err := ParserFor(opts.OutputFormat)
	if err != nil {
		return outcomeFailure(err, out)
	}
	result, perr := parser.Parse(raw)
	if perr != nil {
		// A non-zero exit with unparseable output means the run itself
		// broke; with exit zero the tool ran fine and only the output
		// shape is the problem.
		if out.ExitCode != 0 {
			return outcomeFailure(&Error{
				Kind: KindExecutionFailure,
				Msg:  fmt.Sprintf("diagnostics run failed with exit code %d", out.ExitCode),
				Path: toolPath,
				Raw:  string(raw),
			}, out)
		}
		return outcomeFailure(perr, out)
	}

	resp := responseFrom(out)
	resp.Results = result
	resp.Summary = &result.Summary
	resp.Changed = result.Summary.Fail > 0
	if opts.OutputPath != "" {
		resp.OutputFile = opts.OutputPath
	}
	resp.Msg = fmt.Sprintf("diagnostics complete: %d checks, %d failed", result.Summary.Total, result.Summary.Fail)
	return resp
}

// startAsync probes and registers the job, then hands the actual run to
// a detached worker re-invocation of this binary. The caller gets the
// job handle immediately.
func (a *Adapter) startAsync(ctx context.Context, opts *RequestOptions) *Response {
	start := time.Now()

	if a.jobs == nil {
		return failureResponse(Errorf(KindInvalidOptions, "async mode requires a job registry"))
	}

	toolPath, err := Probe(opts.ToolPath)
	if err != nil {
		return failureResponse(err)
	}

	jobID := opts.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	if existing, getErr := a.jobs.Get(jobID); getErr == nil && existing != nil {
		return failureResponse(Errorf(KindInvalidOptions, "job_id %q already exists", jobID))
	}

	spoolDir := filepath.Join(a.spoolRoot, jobID)
	if err := os.MkdirAll(spoolDir, 0o755); err != nil {
		return failureResponse(WrapErr(KindPermission, err, "create job spool directory %s", spoolDir))
	}

	// The worker gets the full request, forced synchronous.
	workerOpts := *opts
	workerOpts.AsyncMode = false
	workerOpts.DryRun = false
	workerOpts.JobID = jobID
	workerOpts.ToolPath = toolPath
	reqJSON, err := json.MarshalIndent(&workerOpts, "", "  ")
	if err != nil {
		return failureResponse(WrapErr(KindExecutionFailure, err, "encode job request"))
	}
	if err := os.WriteFile(filepath.Join(spoolDir, "request.json"), reqJSON, 0o644); err != nil {
		return failureResponse(WrapErr(KindPermission, err, "write job request file"))
	}

	rec := &JobRecord{
		ID:           jobID,
		SpoolDir:     spoolDir,
		ToolPath:     toolPath,
		OutputPath:   opts.OutputPath,
		OutputFormat: opts.OutputFormat,
		Status:       JobRunning,
		StartedAt:    time.Now().UTC(),
	}
	if err := a.jobs.Create(rec); err != nil {
		return failureResponse(WrapErr(KindExecutionFailure, err, "register job %s", jobID))
	}

	pid, err := LaunchDetached(spoolDir, []string{"job-worker", "--job-id", jobID, "--spool-dir", spoolDir})
	if err != nil {
		_ = a.jobs.MarkFailed(jobID, err.Error())
		return failureResponse(err)
	}
	if err := a.jobs.SetPID(jobID, pid); err != nil {
		a.log.WithError(err).WithField("job_id", jobID).Warn("record worker pid")
	}

	a.log.WithFields(logrus.Fields{"job_id": jobID, "pid": pid}).Info("diagnostic run started")

	return &Response{
		Msg:       "diagnostic run started",
		JobID:     jobID,
		JobStatus: JobRunning,
		Elapsed:   time.Since(start).Seconds(),
	}
}

// Poll reports the state of a detached run. It never blocks: an
// unfinished job reports "still running", distinct from both success
// and failure, and polling has no side effects beyond harvesting a
// worker that died without recording a result.
func (a *Adapter) Poll(jobID string) *Response {
	if a.jobs == nil {
		return failureResponse(Errorf(KindInvalidOptions, "polling requires a job registry"))
	}
	if jobID == "" {
		return failureResponse(Errorf(KindInvalidOptions, "job_id is required to poll"))
	}

	rec, err := a.jobs.Get(jobID)
	if err != nil {
		return failureResponse(WrapErr(KindExecutionFailure, err, "read job registry"))
	}
	if rec == nil {
		return failureResponse(Errorf(KindInvalidOptions, "unknown job_id %q", jobID))
	}

	switch rec.Status {
	case JobRunning:
		if rec.PID == 0 || pidAlive(rec.PID) {
			return &Response{
				Msg:       "diagnostic run still in progress",
				JobID:     jobID,
				JobStatus: JobRunning,
			}
		}
		// Worker died before recording an outcome.
		msg := "worker exited without recording a result"
		_ = a.jobs.MarkFailed(jobID, msg)
		resp := failureResponse(&Error{Kind: KindExecutionFailure, Msg: msg})
		resp.JobID = jobID
		resp.JobStatus = JobFailed
		return resp

	default:
		if resp := a.spoolResponse(rec); resp != nil {
			resp.JobID = jobID
			resp.JobStatus = rec.Status
			return resp
		}
		if rec.Status == JobFailed {
			resp := failureResponse(&Error{Kind: KindExecutionFailure, Msg: rec.Msg})
			resp.JobID = jobID
			resp.JobStatus = JobFailed
			resp.RC = rec.RC
			return resp
		}
		resp := failureResponse(Errorf(KindExecutionFailure, "job %s completed but its result is missing", jobID))
		resp.JobID = jobID
		resp.JobStatus = rec.Status
		return resp
	}
}

// RunWorker is the detached side of an async run: execute the spooled
// request synchronously, persist the response, and settle the registry
// record.
func (a *Adapter) RunWorker(ctx context.Context, jobID, spoolDir string) error {
	reqPath := filepath.Join(spoolDir, "request.json")
	b, err := os.ReadFile(reqPath)
	if err != nil {
		_ = a.jobs.MarkFailed(jobID, fmt.Sprintf("read job request: %v", err))
		return fmt.Errorf("read job request %s: %w", reqPath, err)
	}

	var opts RequestOptions
	if err := json.Unmarshal(b, &opts); err != nil {
		_ = a.jobs.MarkFailed(jobID, fmt.Sprintf("decode job request: %v", err))
		return fmt.Errorf("decode job request %s: %w", reqPath, err)
	}
	// The spooled request carries the job id for traceability, but the
	// worker itself is a plain synchronous run; job_id would fail
	// request validation here.
	opts.AsyncMode = false
	opts.DryRun = false
	opts.JobID = ""

	resp := a.Execute(ctx, &opts)
	resp.JobID = jobID

	if respJSON, jsonErr := json.MarshalIndent(resp, "", "  "); jsonErr == nil {
		_ = os.WriteFile(filepath.Join(spoolDir, "response.json"), respJSON, 0o644)
	}

	if resp.Failed {
		return a.jobs.MarkFailed(jobID, resp.Msg)
	}
	return a.jobs.MarkCompleted(jobID, resp.RC)
}

// resolveOutput picks the run-mode output destination: the caller's
// path (creating parent directories) or a temp file so results stay
// parseable. cleanup removes the temp file and is a no-op otherwise.
func (a *Adapter) resolveOutput(opts *RequestOptions) (string, func(), error) {
	noop := func() {}

	if opts.OutputPath != "" {
		dir := filepath.Dir(opts.OutputPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", noop, WrapErr(KindPermission, err, "create output directory %s", dir)
			}
		}
		return opts.OutputPath, noop, nil
	}

	ext := "json"
	switch opts.OutputFormat {
	case FormatHTML:
		ext = "html"
	case FormatText:
		ext = "txt"
	}
	f, err := os.CreateTemp("", "risu-*."+ext)
	if err != nil {
		return "", noop, WrapErr(KindPermission, err, "create temp output file")
	}
	path := f.Name()
	f.Close()
	return path, func() { os.Remove(path) }, nil
}

func (a *Adapter) spoolResponse(rec *JobRecord) *Response {
	b, err := os.ReadFile(filepath.Join(rec.SpoolDir, "response.json"))
	if err != nil {
		return nil
	}
	var resp Response
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil
	}
	return &resp
}

func pidAlive(pid int) bool {
	alive, err := process.PidExists(int32(pid))
	return err == nil && alive
}

func responseFrom(out Outcome) *Response {
	return &Response{
		RC:      out.ExitCode,
		Stdout:  out.Stdout,
		Stderr:  out.Stderr,
		Elapsed: out.Elapsed,
	}
}

func outcomeFailure(err error, out Outcome) *Response {
	resp := failureResponse(err)
	resp.RC = out.ExitCode
	resp.Stdout = out.Stdout
	resp.Stderr = out.Stderr
	resp.Elapsed = out.Elapsed
	return resp
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
