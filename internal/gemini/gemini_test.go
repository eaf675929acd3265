package gemini

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/home-library/bookshelf/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

const uploadedName = "files/abc123"

// fakeGemini serves the file upload, file lookup, generateContent and file
// delete endpoints the provider calls.
type fakeGemini struct {
	mu sync.Mutex

	reply        string
	failGenerate bool

	uploadMeta  map[string]any
	uploadMIME  string
	uploadBody  []byte
	generateReq map[string]any
	generateURL string
	deleted     []string
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/upload/"):
		if err := f.readUpload(r); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"` + err.Error() + `"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"file": f.file()})
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/"+uploadedName):
		_ = json.NewEncoder(w).Encode(f.file())
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":generateContent"):
		f.generateURL = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&f.generateReq)
		if f.failGenerate {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"image could not be processed","status":"INVALID_ARGUMENT"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": f.reply}},
				},
			}},
		})
	case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/"+uploadedName):
		f.deleted = append(f.deleted, uploadedName)
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeGemini) file() map[string]any {
	return map[string]any{
		"name":     uploadedName,
		"uri":      "https://files.example/" + uploadedName,
		"mimeType": f.uploadMIME,
		"state":    "ACTIVE",
	}
}

// readUpload records the metadata and media parts of a multipart upload
func (f *fakeGemini) readUpload(r *http.Request) error {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return err
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	meta, err := mr.NextPart()
	if err != nil {
		return err
	}
	if err := json.NewDecoder(meta).Decode(&f.uploadMeta); err != nil {
		return err
	}

	media, err := mr.NextPart()
	if err != nil {
		return err
	}
	f.uploadMIME = media.Header.Get("Content-Type")
	f.uploadBody, err = io.ReadAll(media)
	return err
}

func newFakeGemini(t *testing.T, fake *fakeGemini) *Gemini {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	g, err := New(context.Background(), "test-key", option.WithEndpoint(srv.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func writeImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// generationConfig digs the generationConfig object out of the recorded request
func (f *fakeGemini) generationConfig(t *testing.T) map[string]any {
	t.Helper()
	require.NotNil(t, f.generateReq, "generateContent was not called")
	cfg, ok := f.generateReq["generationConfig"].(map[string]any)
	require.True(t, ok, "request has no generationConfig: %v", f.generateReq)
	return cfg
}

func TestExtractText(t *testing.T) {
	fake := &fakeGemini{reply: `{"title":"Dune","genre":"Science Fiction"}`}
	g := newFakeGemini(t, fake)

	text, err := g.ExtractText(context.Background(), providers.Config{
		Model:     "gemini-2.5-flash",
		Prompt:    "identify the book",
		ImagePath: writeImage(t, "cover.jpg", []byte("jpeg bytes")),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Dune","genre":"Science Fiction"}`, text)

	// upload
	assert.Equal(t, "image/jpeg", fake.uploadMIME)
	assert.Equal(t, []byte("jpeg bytes"), fake.uploadBody)
	file, ok := fake.uploadMeta["file"].(map[string]any)
	require.True(t, ok, "upload metadata has no file: %v", fake.uploadMeta)
	displayName, _ := file["displayName"].(string)
	assert.True(t, strings.HasPrefix(displayName, "book-"), displayName)
	assert.True(t, strings.HasSuffix(displayName, ".jpg"), displayName)

	// generateContent
	assert.Contains(t, fake.generateURL, "models/gemini-2.5-flash:generateContent")
	cfg := fake.generationConfig(t)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	schema, ok := cfg["responseSchema"].(map[string]any)
	require.True(t, ok, "generationConfig has no responseSchema: %v", cfg)
	assert.ElementsMatch(t, []any{"title", "genre"}, schema["required"])
	assert.NotContains(t, cfg, "temperature")

	body, err := json.Marshal(fake.generateReq["contents"])
	require.NoError(t, err)
	assert.Contains(t, string(body), "https://files.example/"+uploadedName)
	assert.Contains(t, string(body), "identify the book")

	assert.Equal(t, []string{uploadedName}, fake.deleted)
}

func TestExtractTextSetsTemperature(t *testing.T) {
	fake := &fakeGemini{reply: `{"title":"Emma","genre":"Romance"}`}
	g := newFakeGemini(t, fake)

	temp := 0.5
	_, err := g.ExtractText(context.Background(), providers.Config{
		Model:       "gemini-2.5-flash",
		Temperature: &temp,
		Prompt:      "identify the book",
		ImagePath:   writeImage(t, "cover.png", []byte("png bytes")),
		MIMEType:    "image/png",
	})
	require.NoError(t, err)

	assert.Equal(t, "image/png", fake.uploadMIME)
	assert.InDelta(t, 0.5, fake.generationConfig(t)["temperature"], 1e-6)
}

func TestExtractTextDeletesFileOnGenerateError(t *testing.T) {
	fake := &fakeGemini{failGenerate: true}
	g := newFakeGemini(t, fake)

	_, err := g.ExtractText(context.Background(), providers.Config{
		Model:     "gemini-2.5-flash",
		Prompt:    "identify the book",
		ImagePath: writeImage(t, "cover.jpg", []byte("jpeg bytes")),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate content")

	assert.Equal(t, []string{uploadedName}, fake.deleted)
}

func TestExtractTextMissingImage(t *testing.T) {
	fake := &fakeGemini{}
	g := newFakeGemini(t, fake)

	_, err := g.ExtractText(context.Background(), providers.Config{
		Model:     "gemini-2.5-flash",
		ImagePath: filepath.Join(t.TempDir(), "missing.jpg"),
	})
	require.Error(t, err)
	assert.Nil(t, fake.uploadMeta)
	assert.Empty(t, fake.deleted)
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), "")
	require.Error(t, err)
}

func TestBookSchema(t *testing.T) {
	schema := BookSchema()

	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.ElementsMatch(t, []string{"title", "genre"}, schema.Required)
	require.Contains(t, schema.Properties, "title")
	require.Contains(t, schema.Properties, "genre")
	assert.Equal(t, genai.TypeString, schema.Properties["title"].Type)
	assert.Equal(t, genai.TypeString, schema.Properties["genre"].Type)
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		want    string
		wantErr bool
	}{
		{
			name:    "nil response",
			resp:    nil,
			wantErr: true,
		},
		{
			name:    "no candidates",
			resp:    &genai.GenerateContentResponse{},
			wantErr: true,
		},
		{
			name: "empty content",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{Content: &genai.Content{}}},
			},
			wantErr: true,
		},
		{
			name: "single text part",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content: &genai.Content{Parts: []genai.Part{
						genai.Text(`{"title":"Dune","genre":"Science Fiction"}`),
					}},
				}},
			},
			want: `{"title":"Dune","genre":"Science Fiction"}`,
		},
		{
			name: "split text parts are joined",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content: &genai.Content{Parts: []genai.Part{
						genai.Text(`{"title":"Emma",`),
						genai.Text(`"genre":"Romance"}`),
					}},
				}},
			},
			want: `{"title":"Emma","genre":"Romance"}`,
		},
		{
			name: "non-text parts only",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content: &genai.Content{Parts: []genai.Part{
						genai.Blob{MIMEType: "image/png", Data: []byte{0x89}},
					}},
				}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := responseText(tt.resp)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectMIMEType(t *testing.T) {
	dir := t.TempDir()
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	byExt := filepath.Join(dir, "cover.JPG")
	require.NoError(t, os.WriteFile(byExt, []byte("not really a jpeg"), 0o600))
	got, err := DetectMIMEType(byExt)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", got)

	sniffed := filepath.Join(dir, "cover")
	require.NoError(t, os.WriteFile(sniffed, png, 0o600))
	got, err = DetectMIMEType(sniffed)
	require.NoError(t, err)
	assert.Equal(t, "image/png", got)

	_, err = DetectMIMEType(filepath.Join(dir, "missing"))
	require.Error(t, err)
}
