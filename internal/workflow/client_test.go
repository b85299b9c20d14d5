package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ChuLiYu/rowplan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func intPtr(v int) *int { return &v }

// ============================================================================
// Upload
// ============================================================================

func TestUpload_StringIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		body, _ := io.ReadAll(f)
		assert.Equal(t, "holes.csv", hdr.Filename)
		assert.Equal(t, "id,x,y\n", string(body))

		w.Write([]byte(`{"status":"success","count":2,"holes":[
			{"id":"1","x":0,"y":0,"attributes":{"depth":"12.5","burden":3}},
			{"id":2,"x":10,"y":5}
		]}`))
	})

	res, err := c.Upload(context.Background(), "holes.csv", strings.NewReader("id,x,y\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Holes, 2)
	assert.Equal(t, 1, res.Holes[0].ID)
	assert.JSONEq(t, `"12.5"`, string(res.Holes[0].Attributes["depth"]))
	assert.JSONEq(t, `3`, string(res.Holes[0].Attributes["burden"]))
	assert.Equal(t, types.Hole{ID: 2, X: 10, Y: 5}, res.Holes[1])
}

func TestUpload_ServiceErrorVerbatim(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "File must be CSV"})
	})

	_, err := c.Upload(context.Background(), "holes.txt", strings.NewReader("x"))
	require.Error(t, err)

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Equal(t, "File must be CSV", StatusMessage(OpUpload, err))
}

func TestUpload_NonNumericIDIsTransportFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"holes":[{"id":"A-1","x":0,"y":0}],"count":1}`))
	})

	_, err := c.Upload(context.Background(), "holes.csv", strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, "Upload failed", StatusMessage(OpUpload, err))
}

func TestUpload_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := NewClient(url, time.Second)

	_, err := c.Upload(context.Background(), "holes.csv", strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, "Upload failed", StatusMessage(OpUpload, err))
}

// ============================================================================
// Optimize
// ============================================================================

func TestOptimize_RequestAndOptions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/optimize", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		rows := req["rows"].([]any)
		require.Len(t, rows, 2)
		first := rows[0].(map[string]any)
		assert.EqualValues(t, 1, first["row_id"])
		assert.EqualValues(t, 2, first["start_from_prev_hole"])
		assert.Len(t, first["hole_ids"], 2)
		assert.Empty(t, rows[1].(map[string]any)["hole_ids"])
		cons := req["constraints"].(map[string]any)
		assert.EqualValues(t, 42, cons["hole_to_hole_max"])

		w.Write([]byte(`{
			"options":[{
				"option_id":"a","hole_to_hole_ms":17,"row_to_row_ms":42,
				"timing":[{"hole_id":"1","delay_ms":0,"row_id":1,"position_in_row":"1"},
				          {"hole_id":2,"delay_ms":17,"row_reference_hole":null}],
				"metrics":{"max_holes_per_8ms":1,"holes_per_8ms":[{"window_start_ms":0,"window_end_ms":8,"hole_count":1}]}
			}],
			"metrics":{"conflicts":0}
		}`))
	})

	res, err := c.Optimize(context.Background(), OptimizeRequest{
		Snapshot: types.Snapshot{
			Holes: []types.Hole{{ID: 1}, {ID: 2, X: 1}},
			Rows: []types.Row{
				{ID: 1, HoleIDs: []int{1, 2}, StartFromPrevHole: 2},
				{ID: 2, StartFromPrevHole: 1},
			},
		},
		Constraints: types.Constraints{HoleToHoleMin: 17, HoleToHoleMax: 42, RowToRowMin: 42, RowToRowMax: 100},
	})
	require.NoError(t, err)

	require.Len(t, res.Options, 1)
	o := res.Options[0]
	assert.Equal(t, "a", o.ID)
	assert.Equal(t, 17.0, o.HoleToHoleMs)
	require.Len(t, o.Timing, 2)
	assert.Equal(t, 1, o.Timing[0].HoleID)
	assert.Equal(t, intPtr(1), o.Timing[0].PositionInRow)
	assert.Nil(t, o.Timing[1].RowReferenceHole)
	assert.Equal(t, []types.Window{{StartMs: 0, EndMs: 8, HoleCount: 1}}, o.Metrics.HolesPer8ms)
	assert.JSONEq(t, `{"conflicts":0}`, string(res.Metrics))
}

func TestOptimize_NumericOptionIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"options":[
			{"option_id":1,"hole_to_hole_ms":17,"row_to_row_ms":42,"timing":[{"hole_id":1,"delay_ms":0}],"metrics":{"max_holes_per_8ms":1}},
			{"option_id":2.5,"hole_to_hole_ms":25,"row_to_row_ms":60,"timing":[],"metrics":{"max_holes_per_8ms":2}}
		]}`))
	})

	res, err := c.Optimize(context.Background(), OptimizeRequest{})
	require.NoError(t, err)
	require.Len(t, res.Options, 2)
	assert.Equal(t, "1", res.Options[0].ID)
	assert.Equal(t, "2.5", res.Options[1].ID)
}

func TestOptimize_AttributesPassThroughUnchanged(t *testing.T) {
	var sent map[string]json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/upload":
			w.Write([]byte(`{"count":1,"holes":[{"id":1,"x":0,"y":0,"attributes":{"burden":3,"charged":true,"pattern":"A"}}]}`))
		case "/api/optimize":
			var req struct {
				Holes []struct {
					Attributes map[string]json.RawMessage `json:"attributes"`
				} `json:"holes"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Holes, 1)
			sent = req.Holes[0].Attributes
			w.Write([]byte(`{"options":[]}`))
		}
	})

	up, err := c.Upload(context.Background(), "holes.csv", strings.NewReader(""))
	require.NoError(t, err)
	_, err = c.Optimize(context.Background(), OptimizeRequest{Snapshot: types.Snapshot{Holes: up.Holes}})
	require.NoError(t, err)

	assert.JSONEq(t, `3`, string(sent["burden"]))
	assert.JSONEq(t, `true`, string(sent["charged"]))
	assert.JSONEq(t, `"A"`, string(sent["pattern"]))
}

func TestOptimize_SingleTimingResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","timing":[{"hole_id":1,"delay_ms":5}],"metrics":{}}`))
	})

	res, err := c.Optimize(context.Background(), OptimizeRequest{})
	require.NoError(t, err)
	require.Len(t, res.Options, 1)
	d, ok := res.Options[0].DelayFor(1)
	assert.True(t, ok)
	assert.Equal(t, 5.0, d)
}

func TestOptimize_ErrorWithoutMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>boom</html>"))
	})

	_, err := c.Optimize(context.Background(), OptimizeRequest{})
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Optimize failed", StatusMessage(OpOptimize, err))
}

// ============================================================================
// Export
// ============================================================================

func TestExport_EchoesTimingColumns(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Timing  []map[string]any `json:"timing"`
			Summary []map[string]any `json:"summary"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Timing, 1)
		assert.EqualValues(t, 3, req.Timing[0]["row_id"])
		assert.NotContains(t, req.Timing[0], "row_reference_hole")
		require.Len(t, req.Summary, 4)
		assert.Equal(t, "holes_per_8ms", req.Summary[3]["section"])
		assert.Equal(t, "0-8", req.Summary[3]["name"])

		writeJSON(w, http.StatusOK, map[string]string{"csv": "hole_id,delay_ms\n1,0\n"})
	})

	opt := types.Option{
		HoleToHoleMs: 17,
		RowToRowMs:   42,
		Timing:       []types.HoleTiming{{HoleID: 1, DelayMs: 0, RowID: intPtr(3)}},
		Metrics: types.OptionMetrics{
			MaxHolesPer8ms: 1,
			HolesPer8ms:    []types.Window{{StartMs: 0, EndMs: 8, HoleCount: 1}},
		},
	}
	csv, err := c.Export(context.Background(), opt.Timing, SummaryRows(opt))
	require.NoError(t, err)
	assert.Equal(t, "hole_id,delay_ms\n1,0\n", string(csv))
}

func TestSummaryRows(t *testing.T) {
	opt := types.Option{
		HoleToHoleMs: 17,
		RowToRowMs:   42,
		Metrics: types.OptionMetrics{
			MaxHolesPer8ms: 3,
			HolesPer8ms: []types.Window{
				{StartMs: 0, EndMs: 8, HoleCount: 3},
				{StartMs: 8.5, EndMs: 16.5, HoleCount: 1},
			},
		},
	}

	rows := SummaryRows(opt)
	assert.Equal(t, []types.SummaryRow{
		{Section: "timings", Name: "row_1_hole_to_hole_ms", Value: 17},
		{Section: "timings", Name: "row_2_row_to_row_ms", Value: 42},
		{Section: "timings", Name: "row_3_max_holes_per_8ms", Value: 3},
		{Section: "holes_per_8ms", Name: "0-8", Value: 3},
		{Section: "holes_per_8ms", Name: "8.5-16.5", Value: 1},
	}, rows)
}

// ============================================================================
// Validate / Health
// ============================================================================

func TestValidate_InvalidIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status": "invalid",
			"errors": []string{"Row 1: Hole 9 not found"},
		})
	})

	problems, err := c.Validate(context.Background(), types.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Row 1: Hole 9 not found"}, problems)
}

func TestValidate_Valid(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "valid", "message": "Data is valid"})
	})

	problems, err := c.Validate(context.Background(), types.Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/health", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	status, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status)
}

func TestStatusMessage(t *testing.T) {
	assert.Equal(t, "Export failed", StatusMessage(OpExport, errors.New("x")))
	assert.Equal(t, "Export failed", StatusMessage(OpExport, &ServiceError{Op: OpExport, Status: 500}))
	assert.Equal(t, "No timing data provided",
		StatusMessage(OpExport, &ServiceError{Op: OpExport, Status: 400, Message: "No timing data provided"}))
}
