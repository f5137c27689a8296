package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"alfalfa/internal/config"
	"alfalfa/internal/testsupport"
)

type cliTestEnv struct {
	dir        string
	configPath string
	catalog    string
}

func setupCLITestEnv(t *testing.T) cliTestEnv {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("ALFALFA_CATALOG", "")
	t.Setenv("ALFALFA_LOG_LEVEL", "")

	env := cliTestEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "alfalfa.toml"),
		catalog:    filepath.Join(dir, "data", "catalog.db"),
	}
	content := fmt.Sprintf(`[paths]
catalog = %q
log_dir = %q

[logging]
format = "json"
level = "info"

[decoder]
reconstructor = "synthetic"
`, env.catalog, filepath.Join(dir, "logs"))
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e cliTestEnv) stream(t *testing.T, name string, frames ...[]byte) string {
	t.Helper()
	return testsupport.WriteIVF(t, filepath.Join(e.dir, "streams", name+".ivf"), 16, 16, "", frames...)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd, cmdCtx := newRootCommand()
	defer func() {
		if err := cmdCtx.Close(); err != nil {
			t.Fatalf("close command context: %v", err)
		}
	}()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func decodeJSON[T any](t *testing.T, output string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(output), &v); err != nil {
		t.Fatalf("decode JSON output %q: %v", output, err)
	}
	return v
}

func TestCLIInfo(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.stream(t, "clip",
		testsupport.KeyFrame(16, 16, 1),
		testsupport.InterFrame(2),
		testsupport.InterFrame(3),
	)

	out, _, err := runCLI(t, []string{"info", path}, env.configPath)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	requireContains(t, out, "VP80")
	requireContains(t, out, "16x16")
	requireContains(t, out, "3 (1 key, 0 hidden)")

	out, _, err = runCLI(t, []string{"info", "--frames", "--json", path}, env.configPath)
	if err != nil {
		t.Fatalf("info --json: %v", err)
	}
	info := decodeJSON[streamInfo](t, out)
	if info.FrameCount != 3 || info.KeyFrames != 1 || len(info.Frames) != 3 {
		t.Fatalf("unexpected info %+v", info)
	}
	if !info.Frames[0].KeyFrame || info.Frames[1].KeyFrame {
		t.Fatalf("key frame flags wrong: %+v", info.Frames)
	}
}

func TestCLIPlaySynthetic(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.stream(t, "clip",
		testsupport.KeyFrame(16, 16, 1),
		testsupport.InterFrame(2),
		testsupport.InterFrame(3),
	)

	out, stderr, err := runCLI(t, []string{"play", "--json", path}, env.configPath)
	if err != nil {
		t.Fatalf("play: %v (stderr %s)", err, stderr)
	}
	frames := decodeJSON[[]shownFrame](t, out)
	if len(frames) != 3 {
		t.Fatalf("expected 3 shown frames, got %d", len(frames))
	}
	seen := map[string]bool{}
	for i, f := range frames {
		if f.Index != i {
			t.Fatalf("frame %d reported index %d", i, f.Index)
		}
		if seen[f.Fingerprint] {
			t.Fatalf("frame %d repeats state %s", i, f.Fingerprint)
		}
		seen[f.Fingerprint] = true
	}

	out, _, err = runCLI(t, []string{"play", "-n", "1", path}, env.configPath)
	if err != nil {
		t.Fatalf("play -n 1: %v", err)
	}
	requireContains(t, out, "Final state: ")
	requireContains(t, out, frames[0].Fingerprint[:16])
}

func TestCLIPlayIntraRejectsInterFrames(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.stream(t, "clip",
		testsupport.KeyFrame(16, 16, 1),
		testsupport.InterFrame(2),
	)

	_, _, err := runCLI(t, []string{"--reconstructor", "intra", "play", path}, env.configPath)
	if err == nil {
		t.Fatal("expected intra reconstructor to reject the inter frame")
	}
	requireContains(t, err.Error(), "--reconstructor synthetic")
}

func TestCLIUnknownReconstructor(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"--reconstructor", "magic", "play", "missing.ivf"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown reconstructor")
	}
	requireContains(t, err.Error(), "magic")
}

func TestCLIDiffReproducesResult(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.stream(t, "clip",
		testsupport.KeyFrame(16, 16, 1),
		testsupport.InterFrame(2),
		testsupport.InterFrame(3),
	)

	out, _, err := runCLI(t, []string{"diff", "--from", "0", "--to", "2", "--json", path}, env.configPath)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	summary := decodeJSON[diffSummary](t, out)
	if !summary.Verified {
		t.Fatalf("diff did not reproduce the result: %+v", summary)
	}
	if summary.Identity || !summary.LastChanged {
		t.Fatalf("expected the last reference to change: %+v", summary)
	}
	if summary.ContinuationOrigin != "fresh" {
		t.Fatalf("continuation origin = %q, want fresh", summary.ContinuationOrigin)
	}

	out, _, err = runCLI(t, []string{"diff", "--from", "1", "--to", "1", path}, env.configPath)
	if err != nil {
		t.Fatalf("diff same frame: %v", err)
	}
	requireContains(t, out, "States are identical")

	if _, _, err := runCLI(t, []string{"diff", "--from", "2", "--to", "1", path}, env.configPath); err == nil {
		t.Fatal("expected error when --to precedes --from")
	}
	if _, _, err := runCLI(t, []string{"diff", "--to", "9", path}, env.configPath); err == nil {
		t.Fatal("expected error for frame beyond the stream")
	}
}

func TestCLISerializeAndCatalog(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.stream(t, "clip",
		testsupport.KeyFrame(16, 16, 1),
		testsupport.InterFrame(2),
		testsupport.InterFrame(3),
	)

	out, _, err := runCLI(t, []string{"catalog", "list"}, env.configPath)
	if err == nil {
		t.Fatalf("expected missing catalog to fail, got %q", out)
	}

	out, _, err = runCLI(t, []string{"serialize", "--name", "A", path}, env.configPath)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	requireContains(t, out, `Stored 3 of 3 frames`)
	requireContains(t, out, `as "A"`)

	out, _, err = runCLI(t, []string{"serialize", "--name", "A", "--continuation-every", "2", "--json", path}, env.configPath)
	if err != nil {
		t.Fatalf("serialize again: %v", err)
	}
	rows := decodeJSON[[]serializedRow](t, out)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.Stored {
			t.Fatalf("frame %d stored twice", r.Index)
		}
	}
	if !strings.HasSuffix(rows[0].Continuation, "/fresh") || !strings.HasSuffix(rows[1].Continuation, "/carried") {
		t.Fatalf("unexpected continuation labels %q, %q", rows[0].Continuation, rows[1].Continuation)
	}
	if rows[1].Source != rows[0].Target {
		t.Fatalf("frame 1 should start where frame 0 ends")
	}

	out, _, err = runCLI(t, []string{"catalog", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog list: %v", err)
	}
	requireContains(t, out, "A")
	requireContains(t, out, "3")

	out, _, err = runCLI(t, []string{"catalog", "candidates", rows[1].Source}, env.configPath)
	if err != nil {
		t.Fatalf("catalog candidates: %v", err)
	}
	requireContains(t, out, rows[1].Target)

	if _, _, err := runCLI(t, []string{"catalog", "candidates", "not-a-fingerprint"}, env.configPath); err == nil {
		t.Fatal("expected error for malformed fingerprint")
	}
}

func TestCLISwitchBetweenStreams(t *testing.T) {
	env := setupCLITestEnv(t)
	streams := map[string][][]byte{
		"A": {testsupport.KeyFrame(16, 16, 1), testsupport.InterFrame(2), testsupport.InterFrame(3)},
		"B": {testsupport.KeyFrame(16, 16, 1), testsupport.InterFrame(2), testsupport.InterFrame(9)},
		"C": {testsupport.KeyFrame(16, 16, 7), testsupport.InterFrame(8)},
	}
	for _, name := range []string{"A", "B", "C"} {
		path := env.stream(t, name, streams[name]...)
		if _, _, err := runCLI(t, []string{"serialize", "--name", name, path}, env.configPath); err != nil {
			t.Fatalf("serialize %s: %v", name, err)
		}
	}

	t.Run("shared prefix", func(t *testing.T) {
		out, _, err := runCLI(t, []string{"switch", "A", "--to", "B", "--at", "2", "--json"}, env.configPath)
		if err != nil {
			t.Fatalf("switch: %v", err)
		}
		steps := decodeJSON[[]switchStep](t, out)
		if len(steps) != 3 {
			t.Fatalf("expected 3 steps, got %d", len(steps))
		}
		for i, want := range []string{"A", "A", "B"} {
			if steps[i].Stream != want || steps[i].Frame != i {
				t.Fatalf("step %d decoded %s@%d, want %s@%d", i, steps[i].Stream, steps[i].Frame, want, i)
			}
		}
	})

	t.Run("fallback", func(t *testing.T) {
		out, _, err := runCLI(t, []string{"switch", "A", "--to", "C", "--at", "1", "--json"}, env.configPath)
		if err != nil {
			t.Fatalf("switch: %v", err)
		}
		steps := decodeJSON[[]switchStep](t, out)
		if len(steps) != 3 {
			t.Fatalf("expected 3 steps, got %d", len(steps))
		}
		for _, s := range steps[1:] {
			if s.Preferred != "C" || s.Stream == "C" {
				t.Fatalf("step %d should fall back away from C: %+v", s.Step, s)
			}
		}

		out, _, err = runCLI(t, []string{"switch", "A", "--to", "C", "--at", "1"}, env.configPath)
		if err != nil {
			t.Fatalf("switch table: %v", err)
		}
		requireContains(t, out, "(fallback)")
	})

	t.Run("unknown stream", func(t *testing.T) {
		if _, _, err := runCLI(t, []string{"switch", "missing"}, env.configPath); err == nil {
			t.Fatal("expected error for unknown stream")
		}
	})
}

func TestCLILogsToFile(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.stream(t, "clip", testsupport.KeyFrame(16, 16, 1))

	if _, _, err := runCLI(t, []string{"serialize", "--name", "logged", path}, env.configPath); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(env.dir, "logs", "alfalfa.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	requireContains(t, string(data), `"session_id"`)
	requireContains(t, string(data), "stream serialized")

	cmd, cmdCtx := newRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", env.configPath, "info", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("info: %v", err)
	}
	if err := cmdCtx.Close(); err != nil {
		t.Fatalf("close command context: %v", err)
	}
	if err := cmdCtx.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	cmdCtx.logger.Error("written after close")
	data, err = os.ReadFile(filepath.Join(env.dir, "logs", "alfalfa.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(data), "written after close") {
		t.Fatal("log file should be closed once the command finished")
	}
}

func TestCLIConfigInit(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("ALFALFA_CATALOG", "")
	target := filepath.Join(dir, "nested", "alfalfa.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected config init to refuse overwriting")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "show"}, target)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, config.ReconstructorIntra)
	requireContains(t, out, filepath.Join(dir, ".local", "share", "alfalfa"))
}
