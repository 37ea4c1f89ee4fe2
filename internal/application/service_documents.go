package application

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/ports"
)

func (s *Service) ConvertHTMLToMarkdown(ctx context.Context, userID uuid.UUID, req HTMLToMarkdownRequest) (HTMLToMarkdownResponse, error) {
	if userID == uuid.Nil {
		return HTMLToMarkdownResponse{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(req.HTML) == "" {
		return HTMLToMarkdownResponse{}, fmt.Errorf("%w: html is required", domain.ErrInvalidInput)
	}
	if len(req.HTML) > s.cfg.MaxHTMLBytes {
		return HTMLToMarkdownResponse{}, fmt.Errorf("%w: html exceeds %d bytes", domain.ErrInvalidInput, s.cfg.MaxHTMLBytes)
	}
	if s.markdown == nil {
		return HTMLToMarkdownResponse{}, fmt.Errorf("%w: markdown converter not configured", domain.ErrDependencyUnavailable)
	}
	md, err := s.markdown.Convert(req.HTML)
	if err != nil {
		return HTMLToMarkdownResponse{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	resp := HTMLToMarkdownResponse{
		Filename: sanitizeFilename(req.Filename, s.cfg.DefaultFilename),
		Markdown: md,
	}
	if !req.Store {
		return resp, nil
	}
	if s.documents == nil {
		return HTMLToMarkdownResponse{}, fmt.Errorf("%w: document storage not configured", domain.ErrStorageUnavailable)
	}
	doc, err := s.documents.Create(ctx, ports.CreateDocumentParams{
		UserID:    userID,
		Filename:  resp.Filename,
		Markdown:  md,
		SourceLen: len(req.HTML),
		CreatedAt: s.nowFn(),
	})
	if err != nil {
		return HTMLToMarkdownResponse{}, err
	}
	resp.DocumentID = doc.ID.String()
	return resp, nil
}

func (s *Service) ListDocuments(ctx context.Context, userID uuid.UUID, limit int) ([]DocumentView, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrUnauthorized
	}
	if s.documents == nil {
		return []DocumentView{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	docs, err := s.documents.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]DocumentView, 0, len(docs))
	for _, d := range docs {
		out = append(out, DocumentView{ID: d.ID.String(), Filename: d.Filename, SourceLen: d.SourceLen, CreatedAt: d.CreatedAt})
	}
	return out, nil
}

// sanitizeFilename keeps only the base name and forces a .md extension.
func sanitizeFilename(name, fallback string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	name = strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 {
			return -1
		}
		return r
	}, name)
	if name == "" {
		return fallback
	}
	if !strings.HasSuffix(strings.ToLower(name), ".md") {
		name += ".md"
	}
	return name
}
