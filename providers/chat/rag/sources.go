package rag

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/leofalp/chatmux/internal/utils"
	"github.com/leofalp/chatmux/providers/chat"
)

// PreviewURL resolves an openable link for a source file. Relative links from
// the service are resolved against the configured base URL.
func (p *RAGProvider) PreviewURL(ctx context.Context, fileID int64) (string, string, error) {
	endpoint := p.endpoints.Resolve("")

	requestURL := utils.JoinURL(endpoint.BaseURL, filesEndpoint+"/"+strconv.FormatInt(fileID, 10)+"/open-url")
	_, response, err := utils.DoJSON[openURLResponse](ctx, p.client, http.MethodGet, requestURL, endpoint.APIKey, nil)
	if err != nil {
		return "", "", fmt.Errorf("preview url for file %d: %w", fileID, translateError(ctx, err))
	}

	absolute, err := resolveURL(endpoint.BaseURL, response.URL)
	if err != nil {
		return "", "", fmt.Errorf("preview url for file %d: %w", fileID, err)
	}
	return absolute, response.Filename, nil
}

func resolveURL(baseURL, link string) (string, error) {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link, nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	reference, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse link: %w", err)
	}
	return base.ResolveReference(reference).String(), nil
}

// EnrichSources implements [chat.SourceEnricher]. Sources are resolved one
// after another; a failed lookup leaves that source without a URL.
func (p *RAGProvider) EnrichSources(ctx context.Context, sources []chat.Source) []chat.Source {
	enriched := make([]chat.Source, len(sources))
	for index, source := range sources {
		enriched[index] = source
		if source.FileID == nil || source.URL != "" {
			continue
		}
		link, filename, err := p.PreviewURL(ctx, *source.FileID)
		if err != nil {
			slog.Warn("failed to resolve source preview url", "file_id", *source.FileID, "error", err.Error())
			continue
		}
		enriched[index].URL = link
		if enriched[index].Filename == "" {
			enriched[index].Filename = filename
		}
	}
	return enriched
}

// normalizeSources converts HTML snippets to Markdown so every source renders
// the same way regardless of how the document was parsed.
func normalizeSources(sources []chat.Source) []chat.Source {
	for index := range sources {
		sources[index].Snippet = normalizeSnippet(sources[index].Snippet)
	}
	return sources
}

func normalizeSnippet(snippet string) string {
	if !looksLikeHTML(snippet) {
		return strings.TrimSpace(snippet)
	}
	markdown, err := htmltomarkdown.ConvertString(snippet)
	if err != nil {
		return strings.TrimSpace(snippet)
	}
	return strings.TrimSpace(markdown)
}

func looksLikeHTML(text string) bool {
	open := strings.IndexByte(text, '<')
	return open >= 0 && strings.IndexByte(text[open:], '>') > 0 && strings.Contains(text, "</")
}
