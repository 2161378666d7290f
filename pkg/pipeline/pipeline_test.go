package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fossensics/fossensics/pkg/config"
	"github.com/fossensics/fossensics/pkg/errors"
	"github.com/fossensics/fossensics/pkg/observability"
	"github.com/fossensics/fossensics/pkg/stats"
	"github.com/fossensics/fossensics/pkg/toolexec"
)

// newBuildDir creates a build directory whose toolchain holds arm-linux-strip.
func newBuildDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	bin := filepath.Join(dir, "host", "usr", "bin")
	if err := os.MkdirAll(bin, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"arm-linux-gcc", "arm-linux-strip"} {
		if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\n"), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// fakeTool scripts one external tool.
type fakeTool struct {
	stdout string
	stderr string
	exit   toolexec.ExitCode
	err    error
}

// fakeInvoker dispatches invocations to scripted tools by name and
// records what it was given.
type fakeInvoker struct {
	tools  map[string]fakeTool
	calls  []toolexec.Invocation
	stdins map[string]string
	files  map[string]string // tool -> name of the *os.File given as stdin
}

func newFakeInvoker(tools map[string]fakeTool) *fakeInvoker {
	return &fakeInvoker{tools: tools, stdins: map[string]string{}, files: map[string]string{}}
}

func (f *fakeInvoker) Invoke(_ context.Context, inv toolexec.Invocation) (toolexec.Result, error) {
	f.calls = append(f.calls, inv)
	if inv.Stdin != nil {
		if file, ok := inv.Stdin.(*os.File); ok {
			f.files[inv.Name] = file.Name()
		}
		data, _ := io.ReadAll(inv.Stdin)
		f.stdins[inv.Name] = string(data)
	}

	tool, ok := f.tools[inv.Name]
	if !ok {
		return toolexec.Result{}, nil
	}
	if tool.err != nil {
		return toolexec.Result{ExitCode: 127}, tool.err
	}
	if inv.Stdout != nil {
		io.WriteString(inv.Stdout, tool.stdout)
	}
	if inv.Stderr != nil {
		io.WriteString(inv.Stderr, tool.stderr)
	}
	return toolexec.Result{ExitCode: tool.exit, Duration: time.Millisecond}, nil
}

func (f *fakeInvoker) called() []string {
	var names []string
	for _, c := range f.calls {
		names = append(names, c.Name)
	}
	return names
}

func (f *fakeInvoker) args(tool string) []string {
	for _, c := range f.calls {
		if c.Name == tool {
			return c.Args
		}
	}
	return nil
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newInspector(t *testing.T, build string, inv toolexec.Invoker) *Inspector {
	t.Helper()
	in, err := New(build, WithInvoker(inv), WithLogger(quietLogger()), WithStderr(io.Discard))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return in
}

// standardTools scripts the two-program scenario: /bin/foo traced to
// pkgA-1.0, /bin/bar reported as an orphan, pkgA documented.
func standardTools(build string) map[string]fakeTool {
	return map[string]fakeTool{
		config.DefaultScanner: {stdout: "/bin/foo\n/bin/bar\n"},
		config.DefaultDeps:    {stdout: "/bin/foo: libc.so.0\n"},
		config.DefaultOrigin: {
			stdout: "/bin/foo: " + filepath.Join(build, "build", "pkgA-1.0") + "\n",
			stderr: "/bin/bar: no origin found\n",
		},
		config.DefaultLegal: {stdout: "pkgA-1.0: GPL-2.0\n"},
	}
}

func TestNewToolNotFound(t *testing.T) {
	build := t.TempDir()
	bin := filepath.Join(build, "host", "usr", "bin")
	if err := os.MkdirAll(bin, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bin, "arm-linux-gcc"), []byte("x"), 0755); err != nil {
		t.Fatal(err)
	}

	fake := newFakeInvoker(nil)
	in, err := New(build, WithInvoker(fake))
	if in != nil {
		t.Error("New() should not return an Inspector when strip is missing")
	}
	if !errors.Is(err, errors.ErrCodeToolNotFound) {
		t.Errorf("New() error = %v, want TOOL_NOT_FOUND", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("no tool should run, got %v", fake.called())
	}
}

func TestNewDefaults(t *testing.T) {
	build := newBuildDir(t)
	in, err := New(build)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	want := filepath.Join(build, "host", "usr", "bin", "arm-linux-strip") +
		" --remove-section=.comment --remove-section=.note -R .note.GNU-stack"
	if in.StripCommand() != want {
		t.Errorf("StripCommand() = %q, want %q", in.StripCommand(), want)
	}
	if in.BuildTree().RootDir != filepath.Join(build, "target") {
		t.Errorf("RootDir = %q", in.BuildTree().RootDir)
	}
	if in.Tools() != config.Default().Tools {
		t.Errorf("Tools() = %+v, want defaults", in.Tools())
	}
}

func TestWithTools(t *testing.T) {
	in, err := New(newBuildDir(t), WithTools(config.Tools{Origin: "/opt/origin"}))
	if err != nil {
		t.Fatal(err)
	}
	got := in.Tools()
	if got.Origin != "/opt/origin" || got.Scanner != config.DefaultScanner {
		t.Errorf("Tools() = %+v", got)
	}
}

func TestInspectEndToEnd(t *testing.T) {
	build := newBuildDir(t)
	fake := newFakeInvoker(standardTools(build))
	in := newInspector(t, build, fake)
	dest := filepath.Join(t.TempDir(), "report", "nested")

	res, err := in.Inspect(context.Background(), dest)
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}

	want := stats.Statistics{Programs: 1, Packages: 1, Orphans: 1, Undocumented: 0}
	got := *res.Statistics
	if got.Programs != want.Programs || got.Packages != want.Packages ||
		got.Orphans != want.Orphans || got.Undocumented != want.Undocumented {
		t.Errorf("Statistics = %+v, want %+v", got, want)
	}
	if len(got.Histogram) != 1 || got.Histogram[0] != (stats.PackageCount{Package: "pkgA-1.0", Programs: 1}) {
		t.Errorf("Histogram = %v", got.Histogram)
	}
	if res.Destination != dest {
		t.Errorf("Destination = %q, want %q", res.Destination, dest)
	}

	wantCalls := []string{config.DefaultScanner, config.DefaultDeps, config.DefaultOrigin, config.DefaultLegal}
	if !slices.Equal(fake.called(), wantCalls) {
		t.Errorf("tools called = %v, want %v", fake.called(), wantCalls)
	}

	var stages []string
	for _, tm := range res.Timings {
		stages = append(stages, tm.Stage)
	}
	if !slices.Equal(stages, Stages) {
		t.Errorf("Timings stages = %v, want %v", stages, Stages)
	}

	artifacts := map[string]string{
		"progs.txt":        "/bin/foo\n/bin/bar\n",
		"deps.txt":         "/bin/foo: libc.so.0\n",
		"orphans.txt":      "/bin/bar: no origin found\n",
		"packages.txt":     "pkgA-1.0\t/bin/foo\n",
		"licenses.txt":     "pkgA-1.0: GPL-2.0\n",
		"undocumented.txt": "",
	}
	for name, content := range artifacts {
		data, err := os.ReadFile(filepath.Join(dest, name))
		if err != nil {
			t.Errorf("artifact %s: %v", name, err)
			continue
		}
		if string(data) != content {
			t.Errorf("artifact %s = %q, want %q", name, data, content)
		}
	}
}

func TestInspectToolArguments(t *testing.T) {
	build := newBuildDir(t)
	fake := newFakeInvoker(standardTools(build))
	in := newInspector(t, build, fake)

	if _, err := in.Inspect(context.Background(), t.TempDir()); err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}

	root := filepath.Join(build, "target")
	tests := []struct {
		tool string
		want []string
	}{
		{config.DefaultScanner, []string{root}},
		{config.DefaultDeps, []string{
			"-L", filepath.Join(root, "lib"),
			"-L", filepath.Join(root, "usr", "lib"),
			"-D", "-f", "simple", "-",
		}},
		{config.DefaultOrigin, []string{
			"-Q",
			"-I", filepath.Join(build, "build"),
			"-S", in.StripCommand(),
			"-",
		}},
		{config.DefaultLegal, []string{"query", "-"}},
	}
	for _, tt := range tests {
		if got := fake.args(tt.tool); !slices.Equal(got, tt.want) {
			t.Errorf("%s args = %q, want %q", tt.tool, got, tt.want)
		}
	}

	if fake.stdins[config.DefaultDeps] != "/bin/foo\n/bin/bar\n" {
		t.Errorf("deps stdin = %q, want progs.txt", fake.stdins[config.DefaultDeps])
	}
	if fake.stdins[config.DefaultOrigin] != "/bin/foo\n/bin/bar\n" {
		t.Errorf("origin stdin = %q, want progs.txt", fake.stdins[config.DefaultOrigin])
	}
}

func TestInspectLicenseQuery(t *testing.T) {
	build := newBuildDir(t)
	tools := standardTools(build)
	bdir := filepath.Join(build, "build")
	tools[config.DefaultOrigin] = fakeTool{stdout: strings.Join([]string{
		"/usr/bin/zcat: " + bdir + "/zlib-1.3/contrib",
		"/bin/busybox: " + bdir + "/busybox-1.36.1",
		"/usr/lib/libz.so.1: " + bdir + "/zlib-1.3",
		"/usr/sbin/dropbear: " + bdir + "/dropbear-2019.78/src",
		"",
	}, "\n")}
	tools[config.DefaultLegal] = fakeTool{
		stderr: "Error: no information found for 'dropbear-2019.78%'\n",
	}

	fake := newFakeInvoker(tools)
	in := newInspector(t, build, fake)
	res, err := in.Inspect(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}

	wantQuery := "busybox-1.36.1%\ndropbear-2019.78%\nzlib-1.3%\n"
	if got := fake.stdins[config.DefaultLegal]; got != wantQuery {
		t.Errorf("license query = %q, want %q", got, wantQuery)
	}

	scratch := fake.files[config.DefaultLegal]
	if scratch == "" {
		t.Fatal("license query should be fed from a file")
	}
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Errorf("scratch file %s should be removed, stat err = %v", scratch, err)
	}

	st := res.Statistics
	if st.Programs != 4 || st.Packages != 3 || st.Undocumented != 1 {
		t.Errorf("Statistics = %+v", st)
	}
	if st.Histogram[0] != (stats.PackageCount{Package: "zlib-1.3", Programs: 2}) {
		t.Errorf("Histogram[0] = %+v", st.Histogram[0])
	}
	if st.Histogram[1].Package != "busybox-1.36.1" || st.Histogram[2].Package != "dropbear-2019.78" {
		t.Errorf("ties should keep first-seen order: %v", st.Histogram)
	}
}

func TestInspectFatalStages(t *testing.T) {
	tests := []struct {
		name      string
		tool      string
		wantStage string
		wantCalls []string
	}{
		{
			name:      "scanner",
			tool:      config.DefaultScanner,
			wantStage: StageCollectProgs,
			wantCalls: []string{config.DefaultScanner},
		},
		{
			name:      "dependency lister",
			tool:      config.DefaultDeps,
			wantStage: StageCollectDeps,
			wantCalls: []string{config.DefaultScanner, config.DefaultDeps},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			build := newBuildDir(t)
			tools := standardTools(build)
			tool := tools[tt.tool]
			tool.exit = 2
			tools[tt.tool] = tool

			fake := newFakeInvoker(tools)
			in := newInspector(t, build, fake)
			res, err := in.Inspect(context.Background(), t.TempDir())

			if res != nil {
				t.Error("no result should be returned on fatal failure")
			}
			if !errors.Is(err, errors.ErrCodeToolFailed) {
				t.Fatalf("Inspect() error = %v, want TOOL_FAILED", err)
			}
			var exitErr *errors.ExitError
			if !stderrors.As(err, &exitErr) || exitErr.ExitCode != 2 || exitErr.Tool != tt.tool {
				t.Errorf("error should carry the exit status: %v", err)
			}
			if !strings.HasPrefix(err.Error(), tt.wantStage+":") {
				t.Errorf("error should name stage %s: %v", tt.wantStage, err)
			}
			if !slices.Equal(fake.called(), tt.wantCalls) {
				t.Errorf("tools called = %v, want %v", fake.called(), tt.wantCalls)
			}
		})
	}
}

func TestInspectToleratedStages(t *testing.T) {
	for _, tool := range []string{config.DefaultOrigin, config.DefaultLegal} {
		t.Run(tool, func(t *testing.T) {
			build := newBuildDir(t)
			tools := standardTools(build)
			ft := tools[tool]
			ft.exit = 1
			tools[tool] = ft

			fake := newFakeInvoker(tools)
			in := newInspector(t, build, fake)
			res, err := in.Inspect(context.Background(), t.TempDir())
			if err != nil {
				t.Fatalf("Inspect() error = %v, non-zero exit of %s should be tolerated", err, tool)
			}
			if res.Statistics.Programs != 1 || res.Statistics.Orphans != 1 {
				t.Errorf("Statistics = %+v, output should be kept", res.Statistics)
			}
			if len(fake.calls) != 4 {
				t.Errorf("all tools should run, got %v", fake.called())
			}
		})
	}
}

func TestInspectToolCannotStart(t *testing.T) {
	for _, tool := range []string{config.DefaultScanner, config.DefaultOrigin, config.DefaultLegal} {
		t.Run(tool, func(t *testing.T) {
			build := newBuildDir(t)
			tools := standardTools(build)
			tools[tool] = fakeTool{err: stderrors.New("executable file not found in $PATH")}

			in := newInspector(t, build, newFakeInvoker(tools))
			_, err := in.Inspect(context.Background(), t.TempDir())
			if !errors.Is(err, errors.ErrCodeToolFailed) {
				t.Errorf("Inspect() error = %v, want TOOL_FAILED", err)
			}
		})
	}
}

func TestInspectMalformedOrigins(t *testing.T) {
	build := newBuildDir(t)
	tools := standardTools(build)
	tools[config.DefaultOrigin] = fakeTool{stdout: "/bin/foo without separator\n"}

	fake := newFakeInvoker(tools)
	in := newInspector(t, build, fake)
	dest := t.TempDir()
	_, err := in.Inspect(context.Background(), dest)

	if !errors.Is(err, errors.ErrCodeMalformedArtifact) {
		t.Fatalf("Inspect() error = %v, want MALFORMED_ARTIFACT", err)
	}
	if !strings.HasPrefix(err.Error(), StageRefineOrigins+":") {
		t.Errorf("error should name stage %s: %v", StageRefineOrigins, err)
	}
	if slices.Contains(fake.called(), config.DefaultLegal) {
		t.Error("license tool should not run after a malformed origins.txt")
	}
	if _, err := os.Stat(filepath.Join(dest, "progs.txt")); err != nil {
		t.Errorf("earlier artifacts should be left in place: %v", err)
	}
}

func TestInspectMalformedPackages(t *testing.T) {
	build := newBuildDir(t)
	tools := standardTools(build)
	// A program path with a space yields a three-field packages.txt line.
	tools[config.DefaultOrigin] = fakeTool{stdout: "/bin/my prog: " + filepath.Join(build, "build", "pkgA-1.0") + "\n"}

	fake := newFakeInvoker(tools)
	in := newInspector(t, build, fake)
	_, err := in.Inspect(context.Background(), t.TempDir())

	if !errors.Is(err, errors.ErrCodeMalformedArtifact) {
		t.Fatalf("Inspect() error = %v, want MALFORMED_ARTIFACT", err)
	}
	if !strings.HasPrefix(err.Error(), StageComputeStats+":") {
		t.Errorf("error should name stage %s: %v", StageComputeStats, err)
	}
	if !slices.Contains(fake.called(), config.DefaultLegal) {
		t.Error("license tool should still run before aggregation fails")
	}
}

func TestInspectDestinationIsFile(t *testing.T) {
	build := newBuildDir(t)
	dest := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(dest, nil, 0644); err != nil {
		t.Fatal(err)
	}

	fake := newFakeInvoker(standardTools(build))
	in := newInspector(t, build, fake)
	_, err := in.Inspect(context.Background(), dest)
	if !errors.Is(err, errors.ErrCodeIO) {
		t.Errorf("Inspect() error = %v, want IO_ERROR", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("no tool should run, got %v", fake.called())
	}
}

func TestInspectCustomTools(t *testing.T) {
	build := newBuildDir(t)
	std := standardTools(build)
	tools := map[string]fakeTool{
		"scan": std[config.DefaultScanner],
		"deps": std[config.DefaultDeps],
		"orig": std[config.DefaultOrigin],
		"lgl":  std[config.DefaultLegal],
	}
	fake := newFakeInvoker(tools)
	in, err := New(build,
		WithInvoker(fake),
		WithLogger(quietLogger()),
		WithTools(config.Tools{Scanner: "scan", Deps: "deps", Origin: "orig", Legal: "lgl"}))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := in.Inspect(context.Background(), t.TempDir()); err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if !slices.Equal(fake.called(), []string{"scan", "deps", "orig", "lgl"}) {
		t.Errorf("tools called = %v", fake.called())
	}
}

func TestInspectLogsToleratedFailure(t *testing.T) {
	build := newBuildDir(t)
	tools := standardTools(build)
	ft := tools[config.DefaultOrigin]
	ft.exit = 3
	tools[config.DefaultOrigin] = ft

	var buf bytes.Buffer
	in, err := New(build,
		WithInvoker(newFakeInvoker(tools)),
		WithLogger(log.NewWithOptions(&buf, log.Options{Level: log.WarnLevel})))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := in.Inspect(context.Background(), t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), config.DefaultOrigin) {
		t.Errorf("tolerated failure should be logged, got %q", buf.String())
	}
}

func TestInspectHooks(t *testing.T) {
	observability.Reset()
	defer observability.Reset()

	hooks := &recordingHooks{}
	observability.SetPipelineHooks(hooks)

	build := newBuildDir(t)
	in := newInspector(t, build, newFakeInvoker(standardTools(build)))
	if _, err := in.Inspect(context.Background(), t.TempDir()); err != nil {
		t.Fatal(err)
	}

	if !slices.Equal(hooks.stages, Stages) {
		t.Errorf("stage events = %v, want %v", hooks.stages, Stages)
	}
	if hooks.runs != 1 {
		t.Errorf("inspect complete events = %d, want 1", hooks.runs)
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	stages []string
	runs   int
}

func (h *recordingHooks) OnStageStart(_ context.Context, stage string) {
	h.stages = append(h.stages, stage)
}

func (h *recordingHooks) OnInspectComplete(context.Context, string, string, time.Duration, error) {
	h.runs++
}

func TestUniquePackages(t *testing.T) {
	dir := t.TempDir()
	content := "zlib-1.3\t/usr/lib/libz.so\n\nbusybox-1.36.1\t/bin/busybox\nzlib-1.3\t/usr/bin/zcat\n"
	if err := os.WriteFile(filepath.Join(dir, "packages.txt"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := uniquePackages(dir)
	if err != nil {
		t.Fatalf("uniquePackages() error: %v", err)
	}
	if want := []string{"busybox-1.36.1", "zlib-1.3"}; !slices.Equal(got, want) {
		t.Errorf("uniquePackages() = %v, want %v", got, want)
	}
}

type toolEvent struct {
	tool   string
	status int
}

type recordingToolHooks struct {
	observability.NoopToolHooks
	exits  []toolEvent
	errors []string
}

func (h *recordingToolHooks) OnToolExit(_ context.Context, tool string, exitCode int, _ time.Duration) {
	h.exits = append(h.exits, toolEvent{tool, exitCode})
}

func (h *recordingToolHooks) OnToolError(_ context.Context, tool string, _ error) {
	h.errors = append(h.errors, tool)
}

func TestInspectToolHooks(t *testing.T) {
	observability.Reset()
	defer observability.Reset()

	hooks := &recordingToolHooks{}
	observability.SetToolHooks(hooks)

	build := newBuildDir(t)
	tools := standardTools(build)
	ft := tools[config.DefaultOrigin]
	ft.exit = 1
	tools[config.DefaultOrigin] = ft
	tools[config.DefaultLegal] = fakeTool{err: stderrors.New("no such file")}

	in := newInspector(t, build, newFakeInvoker(tools))
	if _, err := in.Inspect(context.Background(), t.TempDir()); err == nil {
		t.Fatal("Inspect() should fail when the license tool cannot start")
	}

	want := []toolEvent{
		{config.DefaultScanner, 0},
		{config.DefaultDeps, 0},
		{config.DefaultOrigin, 1},
	}
	if !slices.Equal(hooks.exits, want) {
		t.Errorf("exit events = %v, want %v", hooks.exits, want)
	}
	if !slices.Equal(hooks.errors, []string{config.DefaultLegal}) {
		t.Errorf("error events = %v", hooks.errors)
	}
}
