// internal/runtime/googleapi.go — adapts *gmail.Service to our small interface
package runtime

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/api/gmail/v1"

	gc "github.com/joshsymonds/mailrake/internal/gmail"
)

type googleClient struct{ svc *gmail.Service }

func NewGoogleAPIClient(svc *gmail.Service) *googleClient { return &googleClient{svc} }

func (g *googleClient) List(ctx context.Context, q gc.Query, pageToken string, pageSize int) (gc.ListPage, error) {
	call := g.svc.Users.Messages.List("me").Q(q.Raw).MaxResults(int64(pageSize))
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return gc.ListPage{}, err
	}
	var ids []gc.MessageID
	for _, m := range res.Messages {
		ids = append(ids, gc.MessageID(m.Id))
	}
	return gc.ListPage{IDs: ids, NextPageToken: res.NextPageToken}, nil
}

func (g *googleClient) GetFull(ctx context.Context, id gc.MessageID) (gc.FullMessage, error) {
	msg, err := g.svc.Users.Messages.Get("me", string(id)).Format("full").Context(ctx).Do()
	if err != nil {
		return gc.FullMessage{}, err
	}
	out := gc.FullMessage{
		ID:       id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Headers:  map[string]string{},
		Labels:   toLabelIDs(msg.LabelIds),
	}
	if msg.Payload != nil {
		for _, hd := range msg.Payload.Headers {
			out.Headers[hd.Name] = hd.Value
		}
		out.BodyText, out.BodyHTML = extractBodies(msg.Payload)
	}
	return out, nil
}

// extractBodies pulls the decoded text/plain and text/html bodies out of a
// full-format payload. Single-part messages carry the data on the payload
// itself; multipart messages carry it one level down. Nested multiparts are
// walked recursively, first part of each type wins.
func extractBodies(p *gmail.MessagePart) (text, html string) {
	if p == nil {
		return "", ""
	}
	if len(p.Parts) == 0 {
		if p.Body == nil || p.Body.Data == "" {
			return "", ""
		}
		decoded := decodeBody(p.Body.Data)
		switch p.MimeType {
		case "text/plain":
			return decoded, ""
		case "text/html":
			return "", decoded
		}
		return "", ""
	}
	for _, part := range p.Parts {
		t, h := extractBodies(part)
		if text == "" {
			text = t
		}
		if html == "" {
			html = h
		}
	}
	return text, html
}

func decodeBody(data string) string {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(b)
}

func (g *googleClient) Modify(ctx context.Context, id gc.MessageID, ops gc.ModifyOps) error {
	req := &gmail.ModifyMessageRequest{}
	if len(ops.AddLabels) > 0 {
		req.AddLabelIds = toStrings(ops.AddLabels)
	}
	if len(ops.RemoveLabels) > 0 {
		req.RemoveLabelIds = toStrings(ops.RemoveLabels)
	}
	_, err := g.svc.Users.Messages.Modify("me", string(id), req).Context(ctx).Do()
	return err
}

func (g *googleClient) ListLabels(ctx context.Context) (map[string]gc.LabelID, map[gc.LabelID]string, error) {
	lr, err := g.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, nil, err
	}
	byName := map[string]gc.LabelID{}
	byID := map[gc.LabelID]string{}
	for _, l := range lr.Labels {
		byName[l.Name] = gc.LabelID(l.Id)
		byID[gc.LabelID(l.Id)] = l.Name
	}
	return byName, byID, nil
}

func (g *googleClient) EnsureLabel(ctx context.Context, name string) (gc.LabelID, error) {
	byName, _, err := g.ListLabels(ctx)
	if err != nil {
		return "", err
	}
	// Gmail label names are case-insensitive for matching purposes here.
	for existing, id := range byName {
		if strings.EqualFold(existing, name) {
			return id, nil
		}
	}
	created, err := g.svc.Users.Labels.Create("me", &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	return gc.LabelID(created.Id), nil
}

func toStrings(ids []gc.LabelID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func toLabelIDs(ids []string) []gc.LabelID {
	out := make([]gc.LabelID, len(ids))
	for i, id := range ids {
		out[i] = gc.LabelID(id)
	}
	return out
}
