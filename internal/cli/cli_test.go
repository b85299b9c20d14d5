package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/rowplan/internal/geometry"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

func optimizerStub(t *testing.T) *httptest.Server {
	t.Helper()
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"count": 3, "holes": []map[string]any{
			{"id": 1, "x": 0, "y": 0},
			{"id": 2, "x": 10, "y": 0},
			{"id": 3, "x": 10, "y": 10},
		}})
	})
	mux.HandleFunc("/api/optimize", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"options": []map[string]any{{
			"option_id": 1, "hole_to_hole_ms": 17, "row_to_row_ms": 42,
			"timing": []map[string]any{
				{"hole_id": 1, "delay_ms": 0},
				{"hole_id": 2, "delay_ms": 17},
				{"hole_id": 3, "delay_ms": 42},
			},
			"metrics": map[string]any{"max_holes_per_8ms": 1, "holes_per_8ms": []any{}},
		}}})
	})
	mux.HandleFunc("/api/export", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]string{"csv": "hole_id,row_id,position_in_row,delay_ms,row_reference_hole\n1,1,1,0,\n"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// writeSetup creates a config pointing at baseURL and a hole file.
func writeSetup(t *testing.T, baseURL string) (configPath, outDir, holes string) {
	t.Helper()
	dir := t.TempDir()
	outDir = filepath.Join(dir, "out")
	holes = filepath.Join(dir, "holes.csv")
	require.NoError(t, os.WriteFile(holes, []byte("id,x,y\n1,0,0\n2,10,0\n3,10,10\n"), 0o644))

	configPath = filepath.Join(dir, "rowplan.yaml")
	content := fmt.Sprintf(`
service:
  base_url: %s
  timeout: 5s
artifacts:
  dir: %s
  svg: true
  png: true
log:
  level: error
`, baseURL, outDir)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath, outDir, holes
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := BuildCLI()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// ============================================================================
// Command Tree
// ============================================================================

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI()

	assert.NotNil(t, cmd, "BuildCLI should return a non-nil command")
	assert.Equal(t, "rowplan", cmd.Use, "Root command should be 'rowplan'")
	assert.Equal(t, Version, cmd.Version)

	commandNames := make(map[string]bool)
	for _, c := range cmd.Commands() {
		commandNames[c.Use] = true
	}
	assert.True(t, commandNames["session"], "Should have 'session' command")
	assert.True(t, commandNames["status"], "Should have 'status' command")

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag, "Should have --config flag")
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "configs/default.yaml", configFlag.DefValue)
}

func TestBuildSessionCommand(t *testing.T) {
	cmd := buildSessionCommand()

	assert.Equal(t, "session", cmd.Use)
	scriptFlag := cmd.Flags().Lookup("script")
	require.NotNil(t, scriptFlag, "Should have --script flag")
	assert.Equal(t, "s", scriptFlag.Shorthand)
	assert.NotNil(t, cmd.RunE)
}

// ============================================================================
// session
// ============================================================================

func TestSessionScript_EndToEnd(t *testing.T) {
	srv := optimizerStub(t)
	configPath, outDir, holes := writeSetup(t, srv.URL)

	script := filepath.Join(t.TempDir(), "plan.txt")
	require.NoError(t, os.WriteFile(script, []byte(strings.Join([]string{
		"# two rows",
		"upload " + holes,
		"assign 1 2",
		"row new",
		"seq 2",
		"assign 3",
		"rows",
		"validate",
		"optimize",
		"option 1",
		"options",
		"export",
		"render png",
		"quit",
		"assign 99",
	}, "\n")), 0o644))

	out, err := runCLI(t, "session", "-c", configPath, "-s", script)
	require.NoError(t, err)

	assert.Contains(t, out, `"uploaded": 3`)
	assert.Contains(t, out, "row 2  start=2  holes=[3]")
	assert.Contains(t, out, "valid")
	assert.Contains(t, out, "max_holes_per_8ms")
	assert.Contains(t, out, "* 1) Opt 1: HH 17 / RR 42 / Max(8ms) 1")
	assert.Contains(t, out, "saved "+filepath.Join(outDir, "timing-results.csv"))

	csv, err := os.ReadFile(filepath.Join(outDir, "timing-results.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(csv), "hole_id,row_id")
	assert.FileExists(t, filepath.Join(outDir, "surface.svg"))
	assert.FileExists(t, filepath.Join(outDir, "surface.png"))
}

func TestSessionScript_StopsOnBadLine(t *testing.T) {
	srv := optimizerStub(t)
	configPath, _, _ := writeSetup(t, srv.URL)

	script := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(script, []byte("row new\nfrobnicate\n"), 0o644))

	_, err := runCLI(t, "session", "-c", configPath, "-s", script)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCommand))
	assert.Contains(t, err.Error(), "line 2")
}

func TestSession_InteractiveKeepsGoingAfterErrors(t *testing.T) {
	srv := optimizerStub(t)
	configPath, _, _ := writeSetup(t, srv.URL)

	cmd := BuildCLI()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader("seq x\nrow new\nstatus\nexit\n"))
	cmd.SetArgs([]string{"session", "-c", configPath})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "rowplan> ")
	assert.Contains(t, out.String(), "usage: seq <n>")
}

func TestSessionScript_OptionsBeforeOptimize(t *testing.T) {
	srv := optimizerStub(t)
	configPath, _, holes := writeSetup(t, srv.URL)

	script := filepath.Join(t.TempDir(), "plan.txt")
	require.NoError(t, os.WriteFile(script, []byte("upload "+holes+"\noptions\n"), 0o644))

	out, err := runCLI(t, "session", "-c", configPath, "-s", script)
	require.NoError(t, err)
	assert.Contains(t, out, "no options")
	assert.NotContains(t, out, "Opt ")
}

func TestSessionScript_SkippedExportReportsNoSave(t *testing.T) {
	srv := optimizerStub(t)
	configPath, outDir, holes := writeSetup(t, srv.URL)

	// Left behind by an earlier session.
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "timing-results.csv"), []byte("old"), 0o644))

	script := filepath.Join(t.TempDir(), "plan.txt")
	require.NoError(t, os.WriteFile(script, []byte("upload "+holes+"\nexport\n"), 0o644))

	out, err := runCLI(t, "session", "-c", configPath, "-s", script)
	require.NoError(t, err)
	assert.NotContains(t, out, "saved ")

	old, err := os.ReadFile(filepath.Join(outDir, "timing-results.csv"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
}

func TestSession_MissingConfig(t *testing.T) {
	_, err := runCLI(t, "session", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// ============================================================================
// status
// ============================================================================

func TestStatus_Healthy(t *testing.T) {
	srv := optimizerStub(t)
	configPath, _, _ := writeSetup(t, srv.URL)

	out, err := runCLI(t, "status", "-c", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, srv.URL)
	assert.Contains(t, out, "healthy")
	assert.Contains(t, out, "Disabled")
}

func TestStatus_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	configPath, _, _ := writeSetup(t, url)

	out, err := runCLI(t, "status", "-c", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "unreachable")
}

// ============================================================================
// Argument parsing
// ============================================================================

func TestArgumentParsing(t *testing.T) {
	ids, err := ints([]string{"1,", "2", "3"}, 1, -1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ids)

	_, err = ints(nil, 1, 1)
	assert.True(t, errors.Is(err, ErrUsage))
	_, err = ints([]string{"1", "2"}, 1, 1)
	assert.True(t, errors.Is(err, ErrUsage))
	_, err = ints([]string{"a"}, 1, 1)
	assert.Error(t, err)

	pts, err := points([]string{"1", "2", "3.5", "4"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []geometry.Point{{X: 1, Y: 2}, {X: 3.5, Y: 4}}, pts)

	_, err = floats([]string{"1"}, 4)
	assert.True(t, errors.Is(err, ErrUsage))
}
