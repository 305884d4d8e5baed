package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/metacheck/internal/checker"
	"github.com/starford/metacheck/internal/models"
	"github.com/starford/metacheck/internal/reconcile"
	"github.com/starford/metacheck/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()

	_, store := testutil.TestArchive(t)
	db := testutil.TestDB(t)
	p := testutil.PutLanelet(t, store, testutil.DefaultLanelet())

	engine, err := reconcile.NewEngine(reconcile.DefaultRules())
	if err != nil {
		t.Fatal(err)
	}
	srv := New(checker.New(engine, store, checker.WithRunStore(db)), "test")
	return srv, p
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "check_files":
		result, err = srv.checkFiles(ctx, req)
	case "classify_identifier":
		result, err = srv.classifyIdentifier(ctx, req)
	case "decode_path":
		result, err = srv.decodePath(ctx, req)
	case "get_run":
		result, err = srv.getRun(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCheckFilesAndGetRun(t *testing.T) {
	srv, p := testServer(t)

	r := callTool(t, srv, "check_files", map[string]interface{}{
		"paths": []interface{}{p},
	})
	if r.IsError {
		t.Fatalf("check_files error: %s", resultText(r))
	}
	var rep models.Report
	if err := json.Unmarshal([]byte(resultText(r)), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(rep.Files) != 1 || rep.Files[0].Path != p {
		t.Fatalf("report = %+v", rep)
	}

	r = callTool(t, srv, "get_run", map[string]interface{}{"id": rep.RunID})
	if r.IsError || !strings.Contains(resultText(r), rep.RunID) {
		t.Errorf("get_run = %q", resultText(r))
	}
}

func TestCheckFilesByStudy(t *testing.T) {
	srv, p := testServer(t)

	r := callTool(t, srv, "check_files", map[string]interface{}{
		"study":   "ERP000123",
		"qc_pass": true,
	})
	if r.IsError {
		t.Fatalf("check_files error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), p) {
		t.Errorf("result does not mention %s: %s", p, resultText(r))
	}
}

func TestCheckFilesNothingSelected(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "check_files", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error without paths or study")
	}
}

func TestClassifyIdentifier(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "classify_identifier", map[string]interface{}{"value": "EGAN00001234"})
	if got := resultText(r); got != string(models.ClassAccessionNumber) {
		t.Errorf("classify = %q", got)
	}
}

func TestDecodePath(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "decode_path", map[string]interface{}{"path": "/seq/10001/10001_1#30.bam"})
	if r.IsError || !strings.Contains(resultText(r), `"tag_id": "30"`) {
		t.Errorf("decode = %q", resultText(r))
	}

	r = callTool(t, srv, "decode_path", map[string]interface{}{"path": "/tmp/x.bam"})
	if !r.IsError {
		t.Error("expected error for non-sequencing path")
	}
}

func TestGetRunMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_run", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing run")
	}
}
