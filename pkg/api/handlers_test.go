package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ssargent/niflheim/pkg/kfm"
	"github.com/ssargent/niflheim/pkg/nif"
	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/schema"
	"github.com/ssargent/niflheim/pkg/toaster"
)

// Handlers run without Prometheus metrics here: promauto registration is
// process-global, so only TestMetrics creates a Metrics value.

const testSchemaDoc = `
format: nif
versions:
  - {id: "20.0.0.4", value: 0x14000004, games: [New Engine]}
basics:
  - {name: u32, kind: u32}
  - {name: ref, kind: ref}
  - {name: string, kind: stringref}
structs:
  - name: NiObject
    fields: []
  - name: Node
    inherit: NiObject
    fields:
      - {name: name, type: string}
      - {name: num_children, type: u32}
      - {name: children, type: ref, template: NiObject, arr1: num_children}
  - name: Leaf
    inherit: NiObject
    fields:
      - {name: value, type: u32}
  - name: Footer
    fields:
      - {name: num_roots, type: u32}
      - {name: roots, type: ref, template: NiObject, arr1: num_roots}
`

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Load([]byte(testSchemaDoc))
	if err != nil {
		t.Fatalf("Failed to load test schema: %v", err)
	}
	return reg
}

// newTestServer creates a server whose block-container format decodes
// against the trimmed test schema.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	formats := []toaster.Format{
		toaster.NIF(&nif.Options{Registry: testRegistry(t)}),
		toaster.CGF(nil),
		toaster.KFM(nil),
	}
	return NewServer(formats, ServerConfig{Port: 9200, APIKey: "test-key"}, nil)
}

// sceneBytes encodes a block container holding a Node that owns two
// Leaf blocks.
func sceneBytes(t *testing.T) []byte {
	t.Helper()
	d, err := nif.NewData(0x14000004, &nif.Options{Registry: testRegistry(t)})
	if err != nil {
		t.Fatalf("Failed to create container: %v", err)
	}
	node, err := d.NewBlock("Node")
	if err != nil {
		t.Fatalf("Failed to create block: %v", err)
	}
	leaf1, err := d.NewBlock("Leaf")
	if err != nil {
		t.Fatalf("Failed to create block: %v", err)
	}
	leaf2, err := d.NewBlock("Leaf")
	if err != nil {
		t.Fatalf("Failed to create block: %v", err)
	}
	if err := node.SetString("name", "Scene Root"); err != nil {
		t.Fatalf("Failed to set name: %v", err)
	}
	if err := node.SetInt("num_children", 2); err != nil {
		t.Fatalf("Failed to set num_children: %v", err)
	}
	if err := node.Set("children", &object.Array{Elems: []object.Value{
		&object.Ref{Target: leaf1}, &object.Ref{Target: leaf2},
	}}); err != nil {
		t.Fatalf("Failed to set children: %v", err)
	}
	if err := leaf1.SetInt("value", 7); err != nil {
		t.Fatalf("Failed to set value: %v", err)
	}
	if err := leaf2.SetInt("value", 8); err != nil {
		t.Fatalf("Failed to set value: %v", err)
	}
	d.Roots = []*object.Record{node}

	path := filepath.Join(t.TempDir(), "scene.nif")
	fh, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if err := nif.Write(fh, d); err != nil {
		t.Fatalf("Failed to encode container: %v", err)
	}
	if err := fh.Close(); err != nil {
		t.Fatalf("Failed to close file: %v", err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file back: %v", err)
	}
	return body
}

// manifestBytes encodes a flat manifest naming two animations.
func manifestBytes(t *testing.T) []byte {
	t.Helper()
	d, err := kfm.NewData(0x0200000B, nil)
	if err != nil {
		t.Fatalf("Failed to create manifest: %v", err)
	}
	if err := d.Header.SetString("nif_file_name", "Scene.nif"); err != nil {
		t.Fatalf("Failed to set nif_file_name: %v", err)
	}
	for i, name := range []string{"Idle", "Walk"} {
		anim, err := d.NewAnimation()
		if err != nil {
			t.Fatalf("Failed to create animation: %v", err)
		}
		if err := anim.SetInt("event_code", int64(i)); err != nil {
			t.Fatalf("Failed to set event_code: %v", err)
		}
		if err := anim.SetString("name", name); err != nil {
			t.Fatalf("Failed to set name: %v", err)
		}
		if err := anim.SetString("kf_file_name", "Scene_"+name+".kf"); err != nil {
			t.Fatalf("Failed to set kf_file_name: %v", err)
		}
	}
	if err := d.Header.SetInt("num_animations", 2); err != nil {
		t.Fatalf("Failed to set num_animations: %v", err)
	}

	path := filepath.Join(t.TempDir(), "actor.kfm")
	fh, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if err := kfm.Write(fh, d); err != nil {
		t.Fatalf("Failed to encode manifest: %v", err)
	}
	if err := fh.Close(); err != nil {
		t.Fatalf("Failed to close file: %v", err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file back: %v", err)
	}
	return body
}

func TestServer_handleHealth(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	server.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response APIResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if !response.Success {
		t.Error("Expected success to be true")
	}

	if response.Data == nil {
		t.Error("Expected data to be present")
	}
}

func TestServer_handleInspect(t *testing.T) {
	server := newTestServer(t)
	scene := sceneBytes(t)

	tests := []struct {
		name           string
		target         string
		body           []byte
		expectedStatus int
	}{
		{
			name:           "block container",
			target:         "/inspect",
			body:           scene,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "manifest",
			target:         "/inspect",
			body:           manifestBytes(t),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "format restricted to the wrong family",
			target:         "/inspect?format=kfm",
			body:           scene,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown format name",
			target:         "/inspect?format=dds",
			body:           scene,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "empty body",
			target:         "/inspect",
			body:           nil,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unrecognized payload",
			target:         "/inspect",
			body:           []byte("not a container"),
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.target, bytes.NewReader(tt.body))
			w := httptest.NewRecorder()

			server.handleInspect(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestServer_handleInspectSummary(t *testing.T) {
	server := newTestServer(t)
	scene := sceneBytes(t)

	req := httptest.NewRequest("POST", "/inspect", bytes.NewReader(scene))
	w := httptest.NewRecorder()

	server.handleInspect(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Success bool            `json:"success"`
		Data    InspectResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if !response.Success {
		t.Error("Expected success to be true")
	}
	if response.Data.Format != "nif" {
		t.Errorf("Expected format nif, got %q", response.Data.Format)
	}
	if response.Data.Version != "20.0.0.4" {
		t.Errorf("Expected version 20.0.0.4, got %q", response.Data.Version)
	}
	if response.Data.NumRecords != 3 {
		t.Errorf("Expected 3 records, got %d", response.Data.NumRecords)
	}
	if response.Data.RecordTypes["Node"] != 1 || response.Data.RecordTypes["Leaf"] != 2 {
		t.Errorf("Unexpected record type counts: %v", response.Data.RecordTypes)
	}
	if response.Data.SizeBytes != int64(len(scene)) {
		t.Errorf("Expected size %d, got %d", len(scene), response.Data.SizeBytes)
	}

	if got := server.filesInspected.Load(); got != 1 {
		t.Errorf("Expected 1 file inspected, got %d", got)
	}
	if got := server.bytesParsed.Load(); got != int64(len(scene)) {
		t.Errorf("Expected %d bytes parsed, got %d", len(scene), got)
	}
}

func TestServer_handleDump(t *testing.T) {
	server := newTestServer(t)
	scene := sceneBytes(t)

	req := httptest.NewRequest("POST", "/dump", bytes.NewReader(scene))
	w := httptest.NewRecorder()

	server.handleDump(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Success bool         `json:"success"`
		Data    DumpResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if !response.Success {
		t.Error("Expected success to be true")
	}
	if response.Data.Format != "nif" || response.Data.Version != "20.0.0.4" {
		t.Errorf("Unexpected envelope: %+v", response.Data)
	}
	if len(response.Data.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", response.Data.Warnings)
	}
	if len(response.Data.Roots) != 1 {
		t.Fatalf("Expected 1 root, got %d", len(response.Data.Roots))
	}

	root := response.Data.Roots[0]
	if root.Type != "Node" {
		t.Errorf("Expected root type Node, got %q", root.Type)
	}
	if root.Name != "Scene Root" {
		t.Errorf("Expected root name Scene Root, got %q", root.Name)
	}
	if root.Size <= 0 {
		t.Errorf("Expected positive root size, got %d", root.Size)
	}
	if len(root.Children) != 2 {
		t.Fatalf("Expected 2 children, got %d", len(root.Children))
	}
	for _, child := range root.Children {
		if child.Type != "Leaf" {
			t.Errorf("Expected child type Leaf, got %q", child.Type)
		}
		if child.Size != 4 {
			t.Errorf("Expected leaf size 4, got %d", child.Size)
		}
	}

	if got := server.filesDumped.Load(); got != 1 {
		t.Errorf("Expected 1 file dumped, got %d", got)
	}
}

func TestServer_handleDumpManifest(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("POST", "/dump", bytes.NewReader(manifestBytes(t)))
	w := httptest.NewRecorder()

	server.handleDump(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Success bool         `json:"success"`
		Data    DumpResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Data.Format != "kfm" {
		t.Errorf("Expected format kfm, got %q", response.Data.Format)
	}
	if response.Data.Version != "2.0.0.0b" {
		t.Errorf("Expected version 2.0.0.0b, got %q", response.Data.Version)
	}
	if len(response.Data.Roots) != 2 {
		t.Fatalf("Expected 2 roots, got %d", len(response.Data.Roots))
	}
	for i, name := range []string{"Idle", "Walk"} {
		if response.Data.Roots[i].Type != "Animation" {
			t.Errorf("Expected root type Animation, got %q", response.Data.Roots[i].Type)
		}
		if response.Data.Roots[i].Name != name {
			t.Errorf("Expected root name %q, got %q", name, response.Data.Roots[i].Name)
		}
	}
}

func TestServer_handleFormats(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/formats", nil)
	w := httptest.NewRecorder()

	server.handleFormats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Success bool         `json:"success"`
		Data    []FormatInfo `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(response.Data) != 3 {
		t.Fatalf("Expected 3 formats, got %d", len(response.Data))
	}
	byName := make(map[string]FormatInfo, len(response.Data))
	for _, info := range response.Data {
		byName[info.Name] = info
	}

	nifInfo, ok := byName["nif"]
	if !ok {
		t.Fatal("Expected a nif format entry")
	}
	if len(nifInfo.Versions) != 1 || nifInfo.Versions[0] != "20.0.0.4" {
		t.Errorf("Unexpected nif versions: %v", nifInfo.Versions)
	}
	if len(nifInfo.Extensions) != 3 {
		t.Errorf("Unexpected nif extensions: %v", nifInfo.Extensions)
	}

	for _, name := range []string{"cgf", "kfm"} {
		info, ok := byName[name]
		if !ok {
			t.Fatalf("Expected a %s format entry", name)
		}
		if len(info.Versions) == 0 {
			t.Errorf("Expected %s versions to be listed", name)
		}
	}
}

func TestServer_handleStats(t *testing.T) {
	server := newTestServer(t)

	// One good inspect and one rejected payload.
	req := httptest.NewRequest("POST", "/inspect", bytes.NewReader(sceneBytes(t)))
	server.handleInspect(httptest.NewRecorder(), req)
	req = httptest.NewRequest("POST", "/inspect", bytes.NewReader([]byte("junk")))
	server.handleInspect(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	server.handleStats(w, httptest.NewRequest("GET", "/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Success bool          `json:"success"`
		Data    StatsResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Data.FilesInspected != 1 {
		t.Errorf("Expected 1 file inspected, got %d", response.Data.FilesInspected)
	}
	if response.Data.ParseFailures != 1 {
		t.Errorf("Expected 1 parse failure, got %d", response.Data.ParseFailures)
	}
	if response.Data.BytesParsed <= 0 {
		t.Errorf("Expected positive bytes parsed, got %d", response.Data.BytesParsed)
	}
	if response.Data.UptimeSeconds < 0 {
		t.Errorf("Expected non-negative uptime, got %d", response.Data.UptimeSeconds)
	}
}
