package kobo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/tracing"
)

// ValidateAccess checks the token and the existence of a form. It is used by
// the project connectivity check before the configuration is saved.
func (c *Client) ValidateAccess(ctx context.Context, formID string) error {
	ctx, span := tracing.StartSpan(ctx, "kobo.Client.ValidateAccess")
	defer span.End()

	resp, err := c.Get(ctx, fmt.Sprintf("/api/v2/assets/%s/", url.PathEscape(formID)))
	if err != nil {
		return err
	}
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return fmt.Errorf("authentication failed: invalid token or URL (status %d)", resp.StatusCode)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("form %s not found (status %d)", formID, resp.StatusCode)
	}
	return nil
}

// CreateSubmission creates a new submission on a form.
func (c *Client) CreateSubmission(ctx context.Context, formID string, payload map[string]any) error {
	ctx, span := tracing.StartSpan(ctx, "kobo.Client.CreateSubmission")
	defer span.End()

	resp, err := c.PostJSON(ctx, fmt.Sprintf("/api/v2/assets/%s/data/", url.PathEscape(formID)), payload)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("create submission failed with status %d: %s", resp.StatusCode, truncate(resp.Body, 200))
	}
	return nil
}

// UpdateSubmission updates an existing submission by id.
func (c *Client) UpdateSubmission(ctx context.Context, formID, submissionID string, payload map[string]any) error {
	ctx, span := tracing.StartSpan(ctx, "kobo.Client.UpdateSubmission")
	defer span.End()

	resp, err := c.PatchJSON(ctx,
		fmt.Sprintf("/api/v2/assets/%s/data/%s/", url.PathEscape(formID), url.PathEscape(submissionID)), payload)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("update submission failed with status %d: %s", resp.StatusCode, truncate(resp.Body, 200))
	}
	return nil
}

type mediaFile struct {
	UID      string `json:"uid"`
	FileType string `json:"file_type"`
	Filename string `json:"filename"`
	Metadata struct {
		Filename string `json:"filename"`
	} `json:"metadata"`
}

type mediaListing struct {
	Results []mediaFile `json:"results"`
}

// UploadFormMedia uploads a file as form media, replacing any existing media
// file with the same name first so the form always references one current
// copy.
func (c *Client) UploadFormMedia(ctx context.Context, formID, fileName string, content []byte, description string) error {
	ctx, span := tracing.StartSpan(ctx, "kobo.Client.UploadFormMedia")
	defer span.End()

	if err := c.deleteFormMedia(ctx, formID, fileName); err != nil {
		return err
	}

	metadata, _ := json.Marshal(map[string]string{"filename": fileName})
	resp, err := c.PostMultipart(ctx,
		fmt.Sprintf("/api/v2/assets/%s/files.json", url.PathEscape(formID)),
		"content", fileName, content,
		map[string]string{
			"file_type":   "form_media",
			"description": description,
			"metadata":    string(metadata),
		})
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("media upload failed with status %d: %s", resp.StatusCode, truncate(resp.Body, 200))
	}
	return nil
}

func (c *Client) deleteFormMedia(ctx context.Context, formID, fileName string) error {
	resp, err := c.Get(ctx, fmt.Sprintf("/api/v2/assets/%s/files.json", url.PathEscape(formID)))
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		// Listing failures are not fatal for the upload; the worst case is a
		// duplicate media entry.
		return nil
	}

	var listing mediaListing
	if err := json.Unmarshal(resp.Body, &listing); err != nil {
		return nil
	}

	target := strings.ToLower(strings.TrimSpace(fileName))
	for _, item := range listing.Results {
		if item.FileType != "form_media" {
			continue
		}
		names := []string{item.Filename, item.Metadata.Filename}
		for _, name := range names {
			if strings.ToLower(strings.TrimSpace(name)) == target && item.UID != "" {
				_, _ = c.Delete(ctx, fmt.Sprintf("/api/v2/assets/%s/files/%s.json",
					url.PathEscape(formID), url.PathEscape(item.UID)))
				break
			}
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
