package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/home-library/bookshelf/internal/providers"
	"google.golang.org/api/option"
)

// Gemini is a provider for Google Gemini
type Gemini struct {
	client *genai.Client
}

// New returns a Gemini provider holding a single client for the process lifetime.
// Callers must Close it.
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

// Close releases the underlying client
func (g *Gemini) Close() error {
	return g.client.Close()
}

// ExtractText uploads the image, asks the model for a JSON answer constrained
// to the book schema and returns the raw text of the first candidate.
func (g *Gemini) ExtractText(ctx context.Context, config providers.Config) (string, error) {
	f, err := os.Open(config.ImagePath)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	mimeType := config.MIMEType
	if mimeType == "" {
		mimeType, err = DetectMIMEType(config.ImagePath)
		if err != nil {
			return "", err
		}
	}

	file, err := g.client.UploadFile(ctx, "", f, &genai.UploadFileOptions{
		DisplayName: "book-" + uuid.New().String() + filepath.Ext(config.ImagePath),
		MIMEType:    mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image to gemini: %w", err)
	}
	defer func() {
		if err := g.client.DeleteFile(context.WithoutCancel(ctx), file.Name); err != nil {
			slog.Warn("Failed to delete uploaded gemini file", "name", file.Name, "err", err)
		}
	}()

	model := g.client.GenerativeModel(config.Model)
	if config.Temperature != nil {
		model.SetTemperature(float32(*config.Temperature))
	}
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = BookSchema()

	resp, err := model.GenerateContent(ctx,
		genai.FileData{MIMEType: file.MIMEType, URI: file.URI},
		genai.Text(config.Prompt),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return responseText(resp)
}

// BookSchema is the two-field output schema the model must follow
func BookSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title": {Type: genai.TypeString, Description: "Title of the book"},
			"genre": {Type: genai.TypeString, Description: "Genre of the book"},
		},
		Required: []string{"title", "genre"},
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return sb.String(), nil
}

// DetectMIMEType resolves the image MIME type from the file extension,
// falling back to sniffing the first bytes.
func DetectMIMEType(path string) (string, error) {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && n == 0 {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return http.DetectContentType(head[:n]), nil
}
