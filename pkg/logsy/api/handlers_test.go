package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruit-freedom/logsy/pkg/logsy"
	"github.com/fruit-freedom/logsy/pkg/logsy/repo/memory"
	memorystorage "github.com/fruit-freedom/logsy/pkg/logsy/storage/memory"
)

type fixedTiler struct{}

func (fixedTiler) CreateTiles(ctx context.Context, path string) (*logsy.TileResult, error) {
	return &logsy.TileResult{
		Path: "tiles/" + path,
		Meta: map[string]any{"extension": "png"},
	}, nil
}

func setupRouter(t *testing.T) (chi.Router, logsy.Service, logsy.BlobStore) {
	store := memorystorage.New()
	svc, err := logsy.New(
		logsy.WithRepository(memory.New()),
		logsy.WithBlobStore(store),
		logsy.WithTiler(fixedTiler{}),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount("/api/tasks", NewTaskHandler(svc).Routes())
	r.Mount("/api/objects", NewObjectHandler(svc, store).Routes())
	r.Mount("/api/groups", NewGroupHandler(svc).Routes())
	r.Mount("/api/source-code", NewSourceCodeHandler(svc).Routes())
	r.Mount("/api/storage", NewStorageHandler(store).Routes())

	return r, svc, store
}

func doJSON(t *testing.T, router chi.Router, method, target string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestTaskHandler_Create(t *testing.T) {
	router, _, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/tasks/", CreateTaskRequest{
		Inputs: json.RawMessage(`{"threshold":0.9}`),
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[TaskResponse](t, w)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "created", resp.Status)
	assert.Equal(t, 0.9, resp.Inputs["threshold"])
	assert.False(t, resp.StartTime.IsZero())
}

func TestTaskHandler_CreateNonObjectInputs(t *testing.T) {
	router, _, _ := setupRouter(t)

	// Well-formed JSON that is not a mapping is a validation failure, not a
	// malformed request.
	for _, inputs := range []string{`[1,2,3]`, `"text"`, `42`} {
		w := doJSON(t, router, http.MethodPost, "/api/tasks/", CreateTaskRequest{
			Inputs: json.RawMessage(inputs),
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, inputs)
		assert.Contains(t, w.Body.String(), "inputs must be a JSON object")
	}
}

func TestTaskHandler_CreateWithBadSourceCodeID(t *testing.T) {
	router, _, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/tasks/", CreateTaskRequest{
		SourceCodeID: "not-a-uuid",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskHandler_GetNotFound(t *testing.T) {
	router, _, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/tasks/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskHandler_GetBadID(t *testing.T) {
	router, _, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/tasks/banana", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskHandler_Update(t *testing.T) {
	router, _, _ := setupRouter(t)

	created := decode[TaskResponse](t, doJSON(t, router, http.MethodPost, "/api/tasks/", CreateTaskRequest{}))

	status := "running"
	w := doJSON(t, router, http.MethodPatch, "/api/tasks/"+created.ID, UpdateTaskRequest{Status: &status})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "running", decode[TaskResponse](t, w).Status)
}

func TestTaskHandler_UpdateInvalidStatus(t *testing.T) {
	router, _, _ := setupRouter(t)

	created := decode[TaskResponse](t, doJSON(t, router, http.MethodPost, "/api/tasks/", CreateTaskRequest{}))

	status := "finished"
	w := doJSON(t, router, http.MethodPatch, "/api/tasks/"+created.ID, UpdateTaskRequest{Status: &status})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestTaskHandler_UpdateAbortWithoutStacktrace(t *testing.T) {
	router, _, _ := setupRouter(t)

	created := decode[TaskResponse](t, doJSON(t, router, http.MethodPost, "/api/tasks/", CreateTaskRequest{}))

	status := "aborted"
	w := doJSON(t, router, http.MethodPatch, "/api/tasks/"+created.ID, UpdateTaskRequest{Status: &status})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestTaskHandler_List(t *testing.T) {
	router, _, _ := setupRouter(t)

	for i := 0; i < 2; i++ {
		doJSON(t, router, http.MethodPost, "/api/tasks/", CreateTaskRequest{})
	}

	w := doJSON(t, router, http.MethodGet, "/api/tasks/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]TaskResponse](t, w), 2)
}

func multipartRequest(t *testing.T, target string, fields map[string]string, fileName, fileContent string) *http.Request {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = io.WriteString(part, fileContent)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestObjectHandler_IngestFile(t *testing.T) {
	router, _, store := setupRouter(t)

	req := multipartRequest(t, "/api/objects/", map[string]string{
		"type":           "image",
		"algorithm_name": "detector",
		"meta":           `{"width":640}`,
	}, "shot.png", "pixels")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[ObjectResponse](t, w)
	assert.Equal(t, "image", resp.Type)
	assert.Equal(t, "absolute", resp.PathType)
	assert.Equal(t, "detector", resp.AlgorithmName)
	assert.Equal(t, float64(640), resp.Meta["width"])

	reader, err := store.Download(context.Background(), resp.Path)
	require.NoError(t, err)
	data, _ := io.ReadAll(reader)
	reader.Close()
	assert.Equal(t, "pixels", string(data))
}

func TestObjectHandler_IngestPath(t *testing.T) {
	router, _, _ := setupRouter(t)

	req := multipartRequest(t, "/api/objects/", map[string]string{
		"type": "json",
		"path": "runs/42/report.json",
	}, "", "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[ObjectResponse](t, w)
	assert.Equal(t, "relative", resp.PathType)
	assert.Equal(t, "runs/42/report.json", resp.Path)
}

func TestObjectHandler_IngestGeotiff(t *testing.T) {
	router, _, _ := setupRouter(t)

	req := multipartRequest(t, "/api/objects/", map[string]string{
		"type": "geotiff",
	}, "scene.tif", "raster")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[ObjectResponse](t, w)
	xyz, ok := resp.Meta["xyz"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(xyz, "tiles/"))
	assert.True(t, strings.HasSuffix(xyz, "/{z}/{x}/{-y}.png"))
}

func TestObjectHandler_IngestValidation(t *testing.T) {
	router, _, _ := setupRouter(t)

	tests := []struct {
		name   string
		fields map[string]string
		file   string
		status int
	}{
		{
			name:   "missing source",
			fields: map[string]string{"type": "image"},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "both sources",
			fields: map[string]string{"type": "image", "path": "a.png"},
			file:   "b.png",
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "unknown type",
			fields: map[string]string{"type": "video", "path": "a.mp4"},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "bad meta",
			fields: map[string]string{"type": "json", "path": "a.json", "meta": "{"},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "bad task id",
			fields: map[string]string{"type": "json", "path": "a.json", "task_id": "nope"},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := multipartRequest(t, "/api/objects/", tt.fields, tt.file, "data")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestObjectHandler_ListByTask(t *testing.T) {
	router, svc, _ := setupRouter(t)

	task, err := svc.CreateTask(context.Background(), logsy.CreateTaskRequest{})
	require.NoError(t, err)

	req := multipartRequest(t, "/api/objects/", map[string]string{
		"type":    "json",
		"path":    "metrics.json",
		"task_id": task.ID.String(),
	}, "", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = multipartRequest(t, "/api/objects/", map[string]string{
		"type": "json",
		"path": "unlinked.json",
	}, "", "")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/objects/?task_id="+task.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]ObjectResponse](t, w), 1)

	w = doJSON(t, router, http.MethodGet, "/api/objects/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]ObjectResponse](t, w), 2)
}

func TestObjectHandler_GetData(t *testing.T) {
	router, _, _ := setupRouter(t)

	req := multipartRequest(t, "/api/objects/", map[string]string{
		"type": "html",
	}, "report.html", "<html></html>")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	created := decode[ObjectResponse](t, w)

	w = doJSON(t, router, http.MethodGet, "/api/objects/"+created.ID+"/data", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html></html>", w.Body.String())
}

func TestObjectHandler_GetDataForReference(t *testing.T) {
	router, _, _ := setupRouter(t)

	req := multipartRequest(t, "/api/objects/", map[string]string{
		"type": "json",
		"path": "external/report.json",
	}, "", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	created := decode[ObjectResponse](t, w)

	// Reference objects have no service-held bytes.
	w = doJSON(t, router, http.MethodGet, "/api/objects/"+created.ID+"/data", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGroupHandler_CreateAndList(t *testing.T) {
	router, svc, _ := setupRouter(t)

	task, err := svc.CreateTask(context.Background(), logsy.CreateTaskRequest{})
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodPost, "/api/groups/", CreateGroupRequest{
		TaskID: task.ID.String(),
		Name:   "detections",
	})
	require.Equal(t, http.StatusOK, w.Code)
	created := decode[GroupResponse](t, w)
	assert.Equal(t, "detections", created.Name)
	assert.Equal(t, task.ID.String(), created.TaskID)

	w = doJSON(t, router, http.MethodGet, "/api/groups/?task_id="+task.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]GroupResponse](t, w), 1)

	w = doJSON(t, router, http.MethodGet, "/api/groups/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGroupHandler_UnknownTask(t *testing.T) {
	router, _, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/groups/", CreateGroupRequest{
		TaskID: uuid.NewString(),
		Name:   "orphan",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSourceCodeHandler_Create(t *testing.T) {
	router, _, store := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/source-code/", CreateSourceCodeRequest{
		SourceCode: "def run():\n    pass\n",
	})
	require.Equal(t, http.StatusOK, w.Code)

	created := decode[SourceCodeResponse](t, w)
	assert.True(t, strings.HasPrefix(created.EntryPoint, "src_"))

	reader, err := store.Download(context.Background(), created.EntryPoint)
	require.NoError(t, err)
	reader.Close()

	w = doJSON(t, router, http.MethodGet, "/api/source-code/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSourceCodeHandler_Empty(t *testing.T) {
	router, _, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/source-code/", CreateSourceCodeRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestStorageHandler_GetFile(t *testing.T) {
	router, _, store := setupRouter(t)

	require.NoError(t, store.Upload(context.Background(), "tiles/abc/3/2/1.png", strings.NewReader("tile")))

	w := doJSON(t, router, http.MethodGet, "/api/storage/tiles/abc/3/2/1.png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tile", w.Body.String())
}

func TestStorageHandler_Missing(t *testing.T) {
	router, _, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/storage/nope.bin", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
