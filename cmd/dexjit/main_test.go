package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"dexjit/internal/jit"
	"dexjit/internal/meta"
)

const testImage = `
resolved = ["LLoop;->helper"]

[[class]]
descriptor = "LLoop;"

  [[class.method]]
  name = "run"
  code = "0012 0139 0003 000e 0028"

  [[class.method]]
  name = "helper"
  code = "000e"

[[trace]]
name = "hot"
method = "LLoop;->run"
runs = [{ start = 0, count = 2 }, { start = 4, count = 1 }]
`

const testConfig = `
[jit]
max_trace_insns = 50
`

func writeFixture(t *testing.T) (dir, image, config string) {
	t.Helper()
	dir = t.TempDir()
	image = filepath.Join(dir, "image.toml")
	config = filepath.Join(dir, "dexjit.toml")
	if err := os.WriteFile(image, []byte(testImage), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(config, []byte(testConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir, image, config
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestReadUIMode(t *testing.T) {
	tests := []struct {
		in      string
		want    uiMode
		wantErr bool
	}{
		{"", uiModeAuto, false},
		{"AUTO", uiModeAuto, false},
		{" on ", uiModeOn, false},
		{"off", uiModeOff, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		got, err := readUIMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("readUIMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("readUIMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newTraceFlags(t *testing.T, set map[string]string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().String("method", "", "")
	cmd.Flags().String("start", "0", "")
	cmd.Flags().Uint32("count", 0, "")
	for k, v := range set {
		if err := cmd.Flags().Set(k, v); err != nil {
			t.Fatal(err)
		}
	}
	return cmd
}

func TestTraceRequests(t *testing.T) {
	img, err := meta.DecodeImage(strings.NewReader(testImage))
	if err != nil {
		t.Fatal(err)
	}

	reqs, err := traceRequests(newTraceFlags(t, nil), img, nil)
	if err != nil || len(reqs) != 1 || reqs[0].Name() != "hot" {
		t.Fatalf("all traces = %v, %v", reqs, err)
	}

	reqs, err = traceRequests(newTraceFlags(t, map[string]string{
		"method": "LLoop;->run", "start": "0x1", "count": "2",
	}), img, nil)
	if err != nil {
		t.Fatal(err)
	}
	if run := reqs[0].Trace.Runs[0]; run.StartOffset != 1 || run.NumInsts != 2 || !run.RunEnd {
		t.Errorf("ad hoc run = %+v", run)
	}

	errCases := []struct {
		name  string
		flags map[string]string
		names []string
	}{
		{"unknown trace", nil, []string{"cold"}},
		{"unknown method", map[string]string{"method": "LNope;->x", "count": "1"}, nil},
		{"zero count", map[string]string{"method": "LLoop;->run"}, nil},
		{"start beyond code", map[string]string{"method": "LLoop;->run", "start": "9", "count": "1"}, nil},
		{"method and names", map[string]string{"method": "LLoop;->run", "count": "1"}, []string{"hot"}},
	}
	for _, tc := range errCases {
		if _, err := traceRequests(newTraceFlags(t, tc.flags), img, tc.names); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestMethodRequests_SkipsNative(t *testing.T) {
	img, err := meta.DecodeImage(strings.NewReader(testImage + `
[[class]]
descriptor = "LSys;"

  [[class.method]]
  name = "arraycopy"
  native = true
`))
	if err != nil {
		t.Fatal(err)
	}
	reqs, err := methodRequests(img, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range reqs {
		if r.Method.Native {
			t.Errorf("native method %s requested", r.Name())
		}
	}
	if len(reqs) != 2 {
		t.Errorf("got %d requests, want 2", len(reqs))
	}
}

func TestBatchAndLogCommands(t *testing.T) {
	dir, image, config := writeFixture(t)
	logPath := filepath.Join(dir, "translations.msgpack")

	out, err := execute(t, "batch", "--color", "off", "--config", config, "--ui", "off", "--methods", "--log", logPath, image)
	if err != nil {
		t.Fatalf("batch: %v\n%s", err, out)
	}
	for _, want := range []string{"ok   hot", "LLoop;->run", "wrote 3 translations"} {
		if !strings.Contains(out, want) {
			t.Errorf("batch output missing %q:\n%s", want, out)
		}
	}

	entries, _, err := jit.ReadLog(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("log has %d entries, want 3", len(entries))
	}

	out, err = execute(t, "log", "--color", "off", "--method", "LLoop;->helper", logPath)
	if err != nil {
		t.Fatalf("log: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 translations") || !strings.Contains(out, "method:LLoop;->helper") {
		t.Errorf("log output:\n%s", out)
	}
}

func TestTraceCommand_UnknownTrace(t *testing.T) {
	_, image, config := writeFixture(t)
	if _, err := execute(t, "trace", "--color", "off", "--config", config, image, "missing"); err == nil {
		t.Fatal("expected an error for an unknown trace")
	}
}
