package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

// mockRunner records every invocation and delegates outcomes to onRun.
type mockRunner struct {
	calls []Invocation
	onRun func(inv Invocation) (Outcome, error)
}

func (m *mockRunner) Run(_ context.Context, inv Invocation) (Outcome, error) {
	m.calls = append(m.calls, inv)
	if m.onRun != nil {
		return m.onRun(inv)
	}
	return Outcome{}, nil
}

// memStore is an in-memory JobStore for dispatcher tests.
type memStore struct {
	mu   sync.Mutex
	recs map[string]*JobRecord
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]*JobRecord)}
}

func (s *memStore) Create(rec *JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[rec.ID]; ok {
		return fmt.Errorf("job %s already exists", rec.ID)
	}
	cp := *rec
	s.recs[rec.ID] = &cp
	return nil
}

func (s *memStore) Get(id string) (*JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) List() ([]*JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*JobRecord, 0, len(s.recs))
	for _, rec := range s.recs {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) SetPID(id string, pid int) error {
	return s.update(id, func(rec *JobRecord) { rec.PID = pid })
}

func (s *memStore) MarkCompleted(id string, rc int) error {
	return s.update(id, func(rec *JobRecord) {
		rec.Status = JobCompleted
		rec.RC = rc
		rec.FinishedAt = time.Now().UTC()
	})
}

func (s *memStore) MarkFailed(id string, msg string) error {
	return s.update(id, func(rec *JobRecord) {
		rec.Status = JobFailed
		rec.Msg = msg
		rec.FinishedAt = time.Now().UTC()
	})
}

func (s *memStore) update(id string, fn func(*JobRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	fn(rec)
	return nil
}

// fakeTool creates an executable stand-in so the probe passes without a
// real RISU install.
func fakeTool(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "risu")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write fake tool: %v", err)
	}
	return path
}

func testAdapter(t *testing.T, runner CommandRunner, jobs JobStore) *Adapter {
	t.Helper()
	return NewAdapter(runner, jobs, nil, t.TempDir())
}

func outputArg(args []string) string {
	for i, a := range args {
		if a == "--output" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// nativeDoc builds a risu.json results document mapping plugin names to
// return codes.
func nativeDoc(t *testing.T, rcs map[string]int) []byte {
	t.Helper()
	results := make(map[string]interface{}, len(rcs))
	for name, rc := range rcs {
		results[name] = map[string]interface{}{
			"name":   name,
			"result": map[string]interface{}{"rc": rc, "out": "", "err": ""},
		}
	}
	b, err := json.Marshal(map[string]interface{}{"results": results})
	if err != nil {
		t.Fatalf("marshal native doc: %v", err)
	}
	return b
}

func TestAdapter_Validate(t *testing.T) {
	runner := &mockRunner{onRun: func(Invocation) (Outcome, error) {
		return Outcome{ExitCode: 0, Stdout: "risu 1.7.1\nsome banner\n", Elapsed: 0.1}, nil
	}}
	a := testAdapter(t, runner, nil)
	opts := &RequestOptions{Mode: ModeValidate, ToolPath: fakeTool(t)}

	resp := a.Execute(context.Background(), opts)
	if resp.Failed {
		t.Fatalf("validate failed: %+v", resp.Error)
	}
	if resp.ToolVersion != "risu 1.7.1" {
		t.Errorf("tool version = %q, want %q", resp.ToolVersion, "risu 1.7.1")
	}
	if len(runner.calls) != 1 {
		t.Fatalf("got %d invocations, want 1", len(runner.calls))
	}
	if got := runner.calls[0].Args; !reflect.DeepEqual(got, []string{"--version"}) {
		t.Errorf("validate args = %v", got)
	}

	// Validation never changes anything, so repeating it must produce
	// the same response.
	again := a.Execute(context.Background(), opts)
	if !reflect.DeepEqual(resp, again) {
		t.Errorf("repeated validate differs:\nfirst  %+v\nsecond %+v", resp, again)
	}
}

func TestAdapter_ValidateNonZeroExit(t *testing.T) {
	runner := &mockRunner{onRun: func(Invocation) (Outcome, error) {
		return Outcome{ExitCode: 2, Stderr: "unknown flag"}, nil
	}}
	a := testAdapter(t, runner, nil)

	resp := a.Execute(context.Background(), &RequestOptions{Mode: ModeValidate, ToolPath: fakeTool(t)})
	if !resp.Failed || resp.Error == nil || resp.Error.Kind != KindExecutionFailure {
		t.Fatalf("want execution_failure, got %+v", resp)
	}
	if resp.RC != 2 || resp.Stderr != "unknown flag" {
		t.Errorf("outcome not preserved: rc=%d stderr=%q", resp.RC, resp.Stderr)
	}
}

func TestAdapter_ToolNotFoundSpawnsNothing(t *testing.T) {
	runner := &mockRunner{}
	a := testAdapter(t, runner, nil)
	missing := filepath.Join(t.TempDir(), "no-such-tool")

	for _, mode := range []Mode{ModeValidate, ModeList, ModeRun} {
		resp := a.Execute(context.Background(), &RequestOptions{Mode: mode, ToolPath: missing})
		if !resp.Failed || resp.Error == nil || resp.Error.Kind != KindToolNotFound {
			t.Errorf("%s: want tool_not_found, got %+v", mode, resp.Error)
		}
		if resp.Error != nil && resp.Error.Path != missing {
			t.Errorf("%s: error path = %q, want %q", mode, resp.Error.Path, missing)
		}
	}
	if len(runner.calls) != 0 {
		t.Errorf("missing tool still spawned %d processes", len(runner.calls))
	}
}

func TestAdapter_List(t *testing.T) {
	catalog := "_________ .Totals\n" +
		"{'backend': 'core', 'plugin': '/usr/share/risu/plugins/core/system/clock.sh', 'category': 'system', 'description': 'checks clock drift'}\n" +
		"{'backend': 'core', 'plugin': '/usr/share/risu/plugins/core/system/disk_usage.sh', 'category': 'system', 'description': 'checks disk usage'}\n" +
		"{'backend': 'core', 'plugin': '/usr/share/risu/plugins/core/network/dns.sh', 'category': 'network', 'description': 'checks resolvers'}\n"
	runner := &mockRunner{onRun: func(Invocation) (Outcome, error) {
		return Outcome{ExitCode: 0, Stdout: catalog}, nil
	}}
	a := testAdapter(t, runner, nil)

	resp := a.Execute(context.Background(), &RequestOptions{Mode: ModeList, ToolPath: fakeTool(t)})
	if resp.Failed {
		t.Fatalf("list failed: %+v", resp.Error)
	}
	if resp.PluginCount != len(resp.Plugins) || resp.PluginCount != 3 {
		t.Errorf("plugin_count = %d, plugins = %d, want 3", resp.PluginCount, len(resp.Plugins))
	}
	if resp.Plugins[0].Name != "clock" {
		t.Errorf("first plugin name = %q, want clock", resp.Plugins[0].Name)
	}
	want := map[string]int{"system": 2, "network": 1}
	if !reflect.DeepEqual(resp.PluginsByCategory, want) {
		t.Errorf("plugins_by_category = %v, want %v", resp.PluginsByCategory, want)
	}

	args := runner.calls[0].Args
	if args[0] != "--list-plugins" {
		t.Errorf("list args = %v", args)
	}
}

func TestAdapter_ListFailure(t *testing.T) {
	runner := &mockRunner{onRun: func(Invocation) (Outcome, error) {
		return Outcome{ExitCode: 2, Stderr: "boom"}, nil
	}}
	a := testAdapter(t, runner, nil)

	resp := a.Execute(context.Background(), &RequestOptions{Mode: ModeList, ToolPath: fakeTool(t)})
	if !resp.Failed || resp.Error == nil || resp.Error.Kind != KindExecutionFailure {
		t.Fatalf("want execution_failure, got %+v", resp)
	}
}

func TestAdapter_RunScenario(t *testing.T) {
	doc := nativeDoc(t, map[string]int{
		"clock":      0,
		"disk_usage": 0,
		"dns":        0,
		"entropy":    0,
		"firewall":   0,
		"grub":       10,
		"hostid":     40,
		"kdump":      20,
		"lvm":        20,
		"mounts":     30,
	})
	runner := &mockRunner{onRun: func(inv Invocation) (Outcome, error) {
		path := outputArg(inv.Args)
		if path == "" {
			return Outcome{}, fmt.Errorf("no --output in %v", inv.Args)
		}
		if err := os.WriteFile(path, doc, 0o644); err != nil {
			return Outcome{}, err
		}
		// RISU exits non-zero when checks fail; that is a finding, not
		// an execution failure.
		return Outcome{ExitCode: 20, Elapsed: 1.5}, nil
	}}
	a := testAdapter(t, runner, nil)

	outPath := filepath.Join(t.TempDir(), "risu.json")
	resp := a.Execute(context.Background(), &RequestOptions{
		Mode:       ModeRun,
		ToolPath:   fakeTool(t),
		Filter:     "system",
		OutputPath: outPath,
	})
	if resp.Failed {
		t.Fatalf("run failed: %+v", resp.Error)
	}
	want := Summary{Pass: 7, Fail: 2, Skip: 1, Error: 0, Total: 10, Extracted: true}
	if resp.Summary == nil || *resp.Summary != want {
		t.Fatalf("summary = %+v, want %+v", resp.Summary, want)
	}
	if !resp.Changed {
		t.Error("failed checks should mark the response changed")
	}
	if resp.OutputFile != outPath {
		t.Errorf("output_file = %q, want %q", resp.OutputFile, outPath)
	}
	if resp.RC != 20 {
		t.Errorf("rc = %d, want 20", resp.RC)
	}
	if len(resp.Results.Entries) != 10 || resp.Results.Entries[0].PluginName != "clock" {
		t.Errorf("entries not flattened in name order: %+v", resp.Results.Entries)
	}

	args := runner.calls[0].Args
	if args[0] != "-l" {
		t.Errorf("run args = %v, want live flag first", args)
	}
	found := false
	for i, arg := range args {
		if arg == "-i" && i+1 < len(args) && args[i+1] == "system" {
			found = true
		}
	}
	if !found {
		t.Errorf("filter not passed: %v", args)
	}
}

func TestAdapter_RunStdoutFallback(t *testing.T) {
	// Tool writes results to stdout only; the temp output file stays
	// empty and must not shadow them.
	runner := &mockRunner{onRun: func(Invocation) (Outcome, error) {
		return Outcome{ExitCode: 0, Stdout: `{"checks": [{"name": "clock", "status": "pass"}]}`}, nil
	}}
	a := testAdapter(t, runner, nil)

	resp := a.Execute(context.Background(), &RequestOptions{Mode: ModeRun, ToolPath: fakeTool(t)})
	if resp.Failed {
		t.Fatalf("run failed: %+v", resp.Error)
	}
	if resp.Summary == nil || resp.Summary.Pass != 1 || resp.Summary.Total != 1 {
		t.Errorf("summary = %+v", resp.Summary)
	}
	if resp.OutputFile != "" {
		t.Errorf("output_file = %q, want empty when caller asked for none", resp.OutputFile)
	}
}

func TestAdapter_RunTimeout(t *testing.T) {
	runner := &mockRunner{onRun: func(Invocation) (Outcome, error) {
		return Outcome{ExitCode: -1, TimedOut: true, Stdout: "partial", Elapsed: 1.0}, nil
	}}
	a := testAdapter(t, runner, nil)

	resp := a.Execute(context.Background(), &RequestOptions{
		Mode:           ModeRun,
		ToolPath:       fakeTool(t),
		TimeoutSeconds: 1,
	})
	if !resp.Failed || resp.Error == nil || resp.Error.Kind != KindTimeout {
		t.Fatalf("want timeout, got %+v", resp)
	}
	if resp.Stdout != "partial" {
		t.Errorf("partial stdout not preserved: %q", resp.Stdout)
	}
}

func TestAdapter_RunParsePolicy(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		wantKind Kind
	}{
		{"garbage with clean exit is a parse error", 0, KindParseError},
		{"garbage with non-zero exit is an execution failure", 2, KindExecutionFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{onRun: func(Invocation) (Outcome, error) {
				return Outcome{ExitCode: tt.exitCode, Stdout: "Traceback (most recent call last):"}, nil
			}}
			a := testAdapter(t, runner, nil)

			resp := a.Execute(context.Background(), &RequestOptions{Mode: ModeRun, ToolPath: fakeTool(t)})
			if !resp.Failed || resp.Error == nil || resp.Error.Kind != tt.wantKind {
				t.Fatalf("want %s, got %+v", tt.wantKind, resp.Error)
			}
			if resp.Error.Raw == "" {
				t.Error("raw output missing from the failure")
			}
		})
	}
}

func TestAdapter_DryRun(t *testing.T) {
	runner := &mockRunner{}
	a := testAdapter(t, runner, nil)
	tool := fakeTool(t)
	outPath := filepath.Join(t.TempDir(), "reports", "risu.json")

	resp := a.Execute(context.Background(), &RequestOptions{
		Mode:       ModeRun,
		ToolPath:   tool,
		OutputPath: outPath,
		DryRun:     true,
	})
	if resp.Failed {
		t.Fatalf("dry run failed: %+v", resp.Error)
	}
	if !resp.DryRun {
		t.Fatal("dry_run marker missing")
	}
	if len(resp.Cmd) == 0 || resp.Cmd[0] != tool {
		t.Errorf("cmd = %v, want tool path first", resp.Cmd)
	}
	if outputArg(resp.Cmd) != outPath {
		t.Errorf("cmd missing --output %s: %v", outPath, resp.Cmd)
	}
	if _, err := os.Stat(filepath.Dir(outPath)); !os.IsNotExist(err) {
		t.Error("dry run created the output directory")
	}
}

func TestAdapter_DryRunSpawnsNothing(t *testing.T) {
	runner := &mockRunner{}
	a := testAdapter(t, runner, nil)

	resp := a.Execute(context.Background(), &RequestOptions{
		Mode:     ModeRun,
		ToolPath: fakeTool(t),
		DryRun:   true,
	})
	if resp.Failed {
		t.Fatalf("dry run failed: %+v", resp.Error)
	}
	if len(runner.calls) != 0 {
		t.Errorf("dry run spawned %d processes", len(runner.calls))
	}
}

func TestAdapter_DryRunStillValidates(t *testing.T) {
	a := testAdapter(t, &mockRunner{}, nil)

	resp := a.Execute(context.Background(), &RequestOptions{
		Mode:       ModeList,
		ToolPath:   fakeTool(t),
		OutputPath: "/tmp/out.json",
		DryRun:     true,
	})
	if !resp.Failed || resp.Error == nil || resp.Error.Kind != KindInvalidOptions {
		t.Fatalf("want invalid_options, got %+v", resp)
	}
}

func TestAdapter_StartAsync(t *testing.T) {
	orig := detachedExecCommand
	detachedExecCommand = func(string, ...string) *exec.Cmd {
		return exec.Command("/bin/sh", "-c", "exit 0")
	}
	defer func() { detachedExecCommand = orig }()

	store := newMemStore()
	a := testAdapter(t, &mockRunner{}, store)

	resp := a.Execute(context.Background(), &RequestOptions{
		Mode:      ModeRun,
		ToolPath:  fakeTool(t),
		AsyncMode: true,
	})
	if resp.Failed {
		t.Fatalf("async start failed: %+v", resp.Error)
	}
	if resp.JobID == "" || resp.JobStatus != JobRunning {
		t.Fatalf("job handle = %q/%q", resp.JobID, resp.JobStatus)
	}
	if resp.Results != nil {
		t.Error("async start must not carry results")
	}

	rec, err := store.Get(resp.JobID)
	if err != nil || rec == nil {
		t.Fatalf("job not registered: %v", err)
	}
	if rec.Status != JobRunning || rec.PID == 0 {
		t.Errorf("record = %+v", rec)
	}

	b, err := os.ReadFile(filepath.Join(rec.SpoolDir, "request.json"))
	if err != nil {
		t.Fatalf("spooled request missing: %v", err)
	}
	var spooled RequestOptions
	if err := json.Unmarshal(b, &spooled); err != nil {
		t.Fatalf("decode spooled request: %v", err)
	}
	if spooled.AsyncMode {
		t.Error("spooled request must be forced synchronous")
	}
	if spooled.JobID != resp.JobID {
		t.Errorf("spooled job_id = %q, want %q", spooled.JobID, resp.JobID)
	}
}

func TestAdapter_StartAsyncDuplicateJobID(t *testing.T) {
	store := newMemStore()
	if err := store.Create(&JobRecord{ID: "job-1", Status: JobRunning}); err != nil {
		t.Fatal(err)
	}
	a := testAdapter(t, &mockRunner{}, store)

	resp := a.Execute(context.Background(), &RequestOptions{
		Mode:      ModeRun,
		ToolPath:  fakeTool(t),
		AsyncMode: true,
		JobID:     "job-1",
	})
	if !resp.Failed || resp.Error == nil || resp.Error.Kind != KindInvalidOptions {
		t.Fatalf("want invalid_options, got %+v", resp)
	}
}

func TestAdapter_PollUnknownJob(t *testing.T) {
	a := testAdapter(t, &mockRunner{}, newMemStore())

	resp := a.Poll("nope")
	if !resp.Failed || resp.Error == nil || resp.Error.Kind != KindInvalidOptions {
		t.Fatalf("want invalid_options, got %+v", resp)
	}
}

func TestAdapter_PollStillRunning(t *testing.T) {
	store := newMemStore()
	// PID zero means the launcher has not recorded it yet; the job is
	// given the benefit of the doubt.
	if err := store.Create(&JobRecord{ID: "job-1", Status: JobRunning}); err != nil {
		t.Fatal(err)
	}
	a := testAdapter(t, &mockRunner{}, store)

	resp := a.Poll("job-1")
	if resp.Failed {
		t.Fatalf("in-progress poll must not fail: %+v", resp.Error)
	}
	if resp.JobStatus != JobRunning {
		t.Errorf("job_status = %q, want running", resp.JobStatus)
	}

	// Polling again must give the same answer.
	again := a.Poll("job-1")
	if !reflect.DeepEqual(resp, again) {
		t.Errorf("repeated poll differs: %+v vs %+v", resp, again)
	}
}

func TestAdapter_PollDeadWorker(t *testing.T) {
	probe := exec.Command("/bin/sh", "-c", "exit 0")
	if err := probe.Run(); err != nil {
		t.Fatal(err)
	}
	deadPID := probe.Process.Pid

	store := newMemStore()
	if err := store.Create(&JobRecord{ID: "job-1", Status: JobRunning, PID: deadPID}); err != nil {
		t.Fatal(err)
	}
	a := testAdapter(t, &mockRunner{}, store)

	resp := a.Poll("job-1")
	if !resp.Failed || resp.Error == nil || resp.Error.Kind != KindExecutionFailure {
		t.Fatalf("want execution_failure, got %+v", resp)
	}
	if resp.JobStatus != JobFailed {
		t.Errorf("job_status = %q, want failed", resp.JobStatus)
	}
	rec, _ := store.Get("job-1")
	if rec.Status != JobFailed {
		t.Errorf("registry not settled: %+v", rec)
	}
}

func TestAdapter_PollCompleted(t *testing.T) {
	spoolDir := t.TempDir()
	done := &Response{
		Msg:     "diagnostics complete: 2 checks, 0 failed",
		RC:      0,
		Summary: &Summary{Pass: 2, Total: 2, Extracted: true},
	}
	b, err := json.Marshal(done)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(spoolDir, "response.json"), b, 0o644); err != nil {
		t.Fatal(err)
	}

	store := newMemStore()
	if err := store.Create(&JobRecord{ID: "job-1", Status: JobCompleted, SpoolDir: spoolDir}); err != nil {
		t.Fatal(err)
	}
	a := testAdapter(t, &mockRunner{}, store)

	resp := a.Poll("job-1")
	if resp.Failed {
		t.Fatalf("completed poll failed: %+v", resp.Error)
	}
	if resp.JobStatus != JobCompleted || resp.JobID != "job-1" {
		t.Errorf("handle = %q/%q", resp.JobID, resp.JobStatus)
	}
	if resp.Summary == nil || resp.Summary.Pass != 2 {
		t.Errorf("harvested summary = %+v", resp.Summary)
	}
}

func TestAdapter_PollFailed(t *testing.T) {
	store := newMemStore()
	if err := store.Create(&JobRecord{ID: "job-1", Status: JobFailed, Msg: "diagnostics timed out after 5m0s", SpoolDir: t.TempDir()}); err != nil {
		t.Fatal(err)
	}
	a := testAdapter(t, &mockRunner{}, store)

	resp := a.Poll("job-1")
	if !resp.Failed || resp.JobStatus != JobFailed {
		t.Fatalf("want failed job, got %+v", resp)
	}
	if resp.Msg != "diagnostics timed out after 5m0s" {
		t.Errorf("msg = %q", resp.Msg)
	}
}

func TestAdapter_RunWorker(t *testing.T) {
	doc := nativeDoc(t, map[string]int{"clock": 0, "kdump": 20})
	runner := &mockRunner{onRun: func(inv Invocation) (Outcome, error) {
		if path := outputArg(inv.Args); path != "" {
			if err := os.WriteFile(path, doc, 0o644); err != nil {
				return Outcome{}, err
			}
		}
		return Outcome{ExitCode: 20, Elapsed: 0.4}, nil
	}}

	store := newMemStore()
	a := testAdapter(t, runner, store)

	spoolDir := t.TempDir()
	req := &RequestOptions{Mode: ModeRun, ToolPath: fakeTool(t), JobID: "job-1"}
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(spoolDir, "request.json"), b, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(&JobRecord{ID: "job-1", Status: JobRunning, SpoolDir: spoolDir}); err != nil {
		t.Fatal(err)
	}

	if err := a.RunWorker(context.Background(), "job-1", spoolDir); err != nil {
		t.Fatalf("worker: %v", err)
	}

	rec, _ := store.Get("job-1")
	if rec.Status != JobCompleted || rec.RC != 20 {
		t.Errorf("record not settled: %+v", rec)
	}

	// A later poll harvests the spooled response.
	resp := a.Poll("job-1")
	if resp.Failed {
		t.Fatalf("poll after worker failed: %+v", resp.Error)
	}
	if resp.Summary == nil || resp.Summary.Fail != 1 || resp.Summary.Total != 2 {
		t.Errorf("summary = %+v", resp.Summary)
	}
	if !resp.Changed {
		t.Error("failed check should mark the harvested response changed")
	}
}

func TestAdapter_AsyncWithoutRegistry(t *testing.T) {
	a := testAdapter(t, &mockRunner{}, nil)

	resp := a.Execute(context.Background(), &RequestOptions{
		Mode:      ModeRun,
		ToolPath:  fakeTool(t),
		AsyncMode: true,
	})
	if !resp.Failed || resp.Error == nil || resp.Error.Kind != KindInvalidOptions {
		t.Fatalf("want invalid_options, got %+v", resp)
	}
	if resp = a.Poll("job-1"); !resp.Failed || resp.Error.Kind != KindInvalidOptions {
		t.Fatalf("poll without registry: %+v", resp)
	}
}
