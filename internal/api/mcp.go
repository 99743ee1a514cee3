package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/provform/internal/catalog"
	"github.com/kalambet/provform/internal/profile"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Profile  *profile.Manager
	Notifier profile.Notifier // optional
	Catalog  catalog.Catalog
}

// mcpForm is the single form session shared by all tool calls of one MCP
// server. It is restored from the stored draft on first use.
type mcpForm struct {
	deps MCPDeps

	mu      sync.Mutex
	session *profile.Session
}

func (f *mcpForm) with(ctx context.Context, fn func(s *profile.Session) *mcp.CallToolResult) *mcp.CallToolResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session == nil {
		var opts []profile.SessionOption
		if f.deps.Notifier != nil {
			opts = append(opts, profile.WithNotifier(f.deps.Notifier))
		}
		s, err := f.deps.Profile.Restore(ctx, opts...)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to restore draft: %v", err))
		}
		f.session = s
	}
	return fn(f.session)
}

// NewMCPServer creates an MCP server exposing the profile form as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"provform",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("provform: fill in a provider profile step by step. Set fields, then call profile_next; submit from the last step."),
		server.WithRecovery(),
	)
	form := &mcpForm{deps: deps}

	s.AddTool(
		mcp.NewTool("profile_state",
			mcp.WithDescription("Show the current step, its title, progress, the draft and any validation errors."),
		),
		mcpState(form),
	)

	s.AddTool(
		mcp.NewTool("profile_set_field",
			mcp.WithDescription("Set one field of the draft. List fields (specializations, services, workingHours) take values, a JSON array or a comma-separated value."),
			mcp.WithString("field", mcp.Description("Field name, e.g. name, bio, email, workingHours"), mcp.Required()),
			mcp.WithString("value", mcp.Description("New value for a text field")),
			mcp.WithArray("values", mcp.Description("New values for a list field")),
		),
		mcpSetField(form),
	)

	s.AddTool(
		mcp.NewTool("profile_next",
			mcp.WithDescription("Validate the current step and move to the next one if it passes."),
		),
		mcpNext(form),
	)

	s.AddTool(
		mcp.NewTool("profile_previous",
			mcp.WithDescription("Go back one step without validating."),
		),
		mcpPrevious(form),
	)

	s.AddTool(
		mcp.NewTool("profile_submit",
			mcp.WithDescription("Validate the last step and save the profile."),
		),
		mcpSubmit(form),
	)

	s.AddResource(
		mcp.NewResource(
			"provider://draft",
			"Profile Draft",
			mcp.WithResourceDescription("The stored in-progress profile draft as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceDraft(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"provider://profiles",
			"Saved Profiles",
			mcp.WithResourceDescription("Summaries of all submitted profiles"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfiles(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"provider://catalog",
			"Option Catalog",
			mcp.WithResourceDescription("Allowed specializations, services and weekdays"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCatalog(deps),
	)

	return s
}

func mcpState(form *mcpForm) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return form.with(ctx, func(s *profile.Session) *mcp.CallToolResult {
			return mcpJSON(s.State())
		}), nil
	}
}

func mcpSetField(form *mcpForm) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		field, err := req.RequireString("field")
		if err != nil {
			return mcpError("field is required"), nil
		}

		value, err := fieldArgument(field, req)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		return form.with(ctx, func(s *profile.Session) *mcp.CallToolResult {
			if err := applyFields(s, map[string]any{field: value}); err != nil {
				return mcpError(err.Error())
			}
			if err := form.deps.Profile.SaveDraft(ctx, s.Record()); err != nil {
				return mcpError(fmt.Sprintf("failed to save draft: %v", err))
			}
			res := mcpJSON(s.State())
			if unlisted := unlistedOptions(form.deps.Catalog, field, value); len(unlisted) > 0 {
				res.Content = append(res.Content, mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf("warning: %s not in the catalog: %s", field, strings.Join(unlisted, ", ")),
				})
			}
			return res
		}), nil
	}
}

// unlistedOptions returns the values of a catalog-backed list field that the
// catalog does not offer. Such values are still stored.
func unlistedOptions(cat catalog.Catalog, field string, value any) []string {
	var has func(string) bool
	switch field {
	case profile.FieldSpecializations:
		has = cat.HasSpecialization
	case profile.FieldServices:
		has = cat.HasService
	default:
		return nil
	}
	list, _ := value.([]string)
	var out []string
	for _, v := range list {
		if !has(v) {
			out = append(out, v)
		}
	}
	return out
}

// fieldArgument turns the tool arguments into a value Record.Set accepts.
func fieldArgument(field string, req mcp.CallToolRequest) (any, error) {
	switch field {
	case profile.FieldSpecializations, profile.FieldServices, profile.FieldWorkingHours:
		if values := req.GetStringSlice("values", nil); values != nil {
			return values, nil
		}
		raw, err := stringValue(field, req)
		if err != nil {
			return nil, err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return []string{}, nil
		}
		if strings.HasPrefix(raw, "[") {
			var list []string
			if err := json.Unmarshal([]byte(raw), &list); err != nil {
				return nil, fmt.Errorf("value for %s is not a JSON array of strings: %v", field, err)
			}
			return list, nil
		}
		parts := strings.Split(raw, ",")
		list := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		return list, nil
	case profile.FieldProfilePicture:
		v, err := stringValue(field, req)
		if err != nil || v == "" {
			return nil, err
		}
		return v, nil
	default:
		return stringValue(field, req)
	}
}

// stringValue returns the "value" argument. A missing value is empty; any
// other non-string type is rejected rather than read as "".
func stringValue(field string, req mcp.CallToolRequest) (string, error) {
	raw, ok := req.GetArguments()["value"]
	if !ok || raw == nil {
		return "", nil
	}
	v, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value for %s must be a string, got %T", field, raw)
	}
	return v, nil
}

func mcpNext(form *mcpForm) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return form.with(ctx, func(s *profile.Session) *mcp.CallToolResult {
			moved, err := s.Next()
			if err != nil {
				return mcpError(err.Error())
			}
			if !moved {
				res := mcpJSON(s.State())
				res.IsError = true
				return res
			}
			return mcpJSON(s.State())
		}), nil
	}
}

func mcpPrevious(form *mcpForm) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return form.with(ctx, func(s *profile.Session) *mcp.CallToolResult {
			if !s.Previous() {
				return mcpError("already on the first step")
			}
			return mcpJSON(s.State())
		}), nil
	}
}

func mcpSubmit(form *mcpForm) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return form.with(ctx, func(s *profile.Session) *mcp.CallToolResult {
			saved, ok, err := s.Submit(ctx)
			if err != nil {
				return mcpError(err.Error())
			}
			if !ok {
				res := mcpJSON(s.State())
				res.IsError = true
				return res
			}
			return mcpText(fmt.Sprintf("Saved profile %s: %s", saved.ID, profile.Summarize(saved.Record)))
		}), nil
	}
}

func mcpResourceDraft(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		draft, _, err := deps.Profile.LoadDraft(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load draft: %w", err)
		}
		return jsonResource(req.Params.URI, draft)
	}
}

func mcpResourceProfiles(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		list, err := deps.Profile.ListSaved(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list profiles: %w", err)
		}
		out := make([]ProfileSummary, len(list))
		for i, p := range list {
			out[i] = summarizeSaved(p)
		}
		return jsonResource(req.Params.URI, out)
	}
}

func mcpResourceCatalog(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonResource(req.Params.URI, deps.Catalog)
	}
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func mcpJSON(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
