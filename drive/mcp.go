package drive

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hazyhaar/pilote/kit"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers all pilote tools on an MCP server.
func (svc *Service) RegisterMCP(srv *mcp.Server) {
	svc.registerSessionOpen(srv)
	svc.registerSessionClose(srv)
	svc.registerSessionList(srv)
	svc.registerNavigate(srv)
	svc.registerNavigateBack(srv)
	svc.registerNavigateForward(srv)
	svc.registerReload(srv)
	svc.registerClick(srv)
	svc.registerType(srv)
	svc.registerPressKey(srv)
	svc.registerHover(srv)
	svc.registerSelectOption(srv)
	svc.registerScroll(srv)
	svc.registerWait(srv)
	svc.registerSnapshot(srv)
	svc.registerObserveMode(srv)
	svc.registerObserveReset(srv)
	svc.registerSnapshotSearch(srv)
	svc.registerHandleDialog(srv)
	svc.registerFileUpload(srv)
	svc.registerHandlePermission(srv)
	svc.registerDismissNotification(srv)
	svc.registerReadPage(srv)
	svc.registerScreenshot(srv)
	svc.registerPDF(srv)
	svc.registerConsoleRead(srv)
	svc.registerJournalRecent(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// wrap composes the metrics and journal middleware around a tool endpoint.
func (svc *Service) wrap(tool string, endpoint kit.Endpoint) kit.Endpoint {
	return kit.Chain(withMetrics(tool), svc.withJournal(tool))(endpoint)
}

// sessionCtx tags the request context with the session a tool call targets.
func sessionCtx(id string) func(context.Context) context.Context {
	return func(ctx context.Context) context.Context { return kit.WithSessionID(ctx, id) }
}

// --- Sessions ---

func (svc *Service) registerSessionOpen(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "session_open",
		Description: "Open a new browser session and return its ID",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		return svc.OpenSession(ctx)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if len(r.Params.Arguments) > 0 {
			if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerSessionClose(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
	}

	tool := &mcp.Tool{
		Name:        "session_close",
		Description: "Close a browser session and discard its observation state",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
		}, []string{"session"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		if err := svc.CloseSession(p.Session); err != nil {
			return nil, err
		}
		return map[string]string{"status": "closed"}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerSessionList(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "session_list",
		Description: "List open browser sessions with their current page and pending interrupts",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		return svc.ListSessions(), nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if len(r.Params.Arguments) > 0 {
			if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

// --- Navigation ---

func (svc *Service) registerNavigate(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
		URL     string `json:"url"`
	}

	tool := &mcp.Tool{
		Name:        "browser_navigate",
		Description: "Navigate a session to a URL and report what changed on the surface",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
			"url":     map[string]any{"type": "string", "description": "Destination URL"},
		}, []string{"session", "url"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.Navigate(ctx, p.Session, p.URL)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerNavigateBack(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
	}

	tool := &mcp.Tool{
		Name:        "browser_navigate_back",
		Description: "Go back in session history and report what changed",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
		}, []string{"session"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.NavigateBack(ctx, p.Session)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerNavigateForward(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
	}

	tool := &mcp.Tool{
		Name:        "browser_navigate_forward",
		Description: "Go forward in session history and report what changed",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
		}, []string{"session"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.NavigateForward(ctx, p.Session)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerReload(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
	}

	tool := &mcp.Tool{
		Name:        "browser_reload",
		Description: "Reload the current page and report what changed",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
		}, []string{"session"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.Reload(ctx, p.Session)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

// --- Interaction ---

func (svc *Service) registerClick(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
		Ref     string `json:"ref"`
	}

	tool := &mcp.Tool{
		Name:        "browser_click",
		Description: "Click an element by its ref from the last snapshot and report what changed",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
			"ref":     map[string]any{"type": "string", "description": "Element ref, e.g. e12"},
		}, []string{"session", "ref"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.Click(ctx, p.Session, p.Ref)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerType(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
		Ref     string `json:"ref"`
		Text    string `json:"text"`
		Submit  bool   `json:"submit"`
	}

	tool := &mcp.Tool{
		Name:        "browser_type",
		Description: "Type text into an element and report what changed",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
			"ref":     map[string]any{"type": "string", "description": "Element ref"},
			"text":    map[string]any{"type": "string", "description": "Text to type"},
			"submit":  map[string]any{"type": "boolean", "description": "Press Enter after typing"},
		}, []string{"session", "ref", "text"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.TypeText(ctx, p.Session, p.Ref, p.Text, p.Submit)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerPressKey(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
		Key     string `json:"key"`
	}

	tool := &mcp.Tool{
		Name:        "browser_press_key",
		Description: "Press a keyboard key (Enter, Tab, ArrowDown, a single character) and report what changed",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
			"key":     map[string]any{"type": "string", "description": "Key name"},
		}, []string{"session", "key"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.PressKey(ctx, p.Session, p.Key)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerHover(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
		Ref     string `json:"ref"`
	}

	tool := &mcp.Tool{
		Name:        "browser_hover",
		Description: "Hover over an element and report what changed",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
			"ref":     map[string]any{"type": "string", "description": "Element ref"},
		}, []string{"session", "ref"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.Hover(ctx, p.Session, p.Ref)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerSelectOption(srv *mcp.Server) {
	type req struct {
		Session string   `json:"session"`
		Ref     string   `json:"ref"`
		Values  []string `json:"values"`
	}

	tool := &mcp.Tool{
		Name:        "browser_select_option",
		Description: "Select options in a dropdown by value or label and report what changed",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
			"ref":     map[string]any{"type": "string", "description": "Element ref"},
			"values":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Option values or labels"},
		}, []string{"session", "ref", "values"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.SelectOption(ctx, p.Session, p.Ref, p.Values)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerScroll(srv *mcp.Server) {
	type req struct {
		Session string  `json:"session"`
		DX      float64 `json:"dx"`
		DY      float64 `json:"dy"`
	}

	tool := &mcp.Tool{
		Name:        "browser_scroll",
		Description: "Scroll the page by a pixel offset and report what changed",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
			"dx":      map[string]any{"type": "number", "description": "Horizontal offset in px"},
			"dy":      map[string]any{"type": "number", "description": "Vertical offset in px"},
		}, []string{"session"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.Scroll(ctx, p.Session, p.DX, p.DY)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerWait(srv *mcp.Server) {
	type req struct {
		Session string  `json:"session"`
		Seconds float64 `json:"seconds"`
	}

	tool := &mcp.Tool{
		Name:        "browser_wait",
		Description: "Wait for the page to settle and report what changed",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
			"seconds": map[string]any{"type": "number", "description": "Seconds to wait, default 1, max 30"},
		}, []string{"session"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.Wait(ctx, p.Session, time.Duration(p.Seconds*float64(time.Second)))
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

// --- Observation ---

func (svc *Service) registerSnapshot(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
	}

	tool := &mcp.Tool{
		Name:        "browser_snapshot",
		Description: "Capture a full structural snapshot of the page, resetting the change baseline",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
		}, []string{"session"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.Snapshot(ctx, p.Session)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerObserveMode(srv *mcp.Server) {
	type req struct {
		Session      string `json:"session"`
		Differential *bool  `json:"differential"`
		Granularity  string `json:"granularity"`
	}

	tool := &mcp.Tool{
		Name:        "observe_mode",
		Description: "Switch a session between differential and full reporting, or change diff granularity",
		InputSchema: inputSchema(map[string]any{
			"session":      map[string]any{"type": "string", "description": "Session ID"},
			"differential": map[string]any{"type": "boolean", "description": "Report diffs instead of full snapshots"},
			"granularity":  map[string]any{"type": "string", "description": "Diff granularity: tree, raw, both"},
		}, []string{"session"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.SetObserveMode(p.Session, p.Differential, p.Granularity)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerObserveReset(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
	}

	tool := &mcp.Tool{
		Name:        "observe_reset",
		Description: "Discard the observation baseline so the next report is a full snapshot",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
		}, []string{"session"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.ResetObservation(p.Session)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerSnapshotSearch(srv *mcp.Server) {
	type req struct {
		Session       string   `json:"session"`
		Pattern       string   `json:"pattern"`
		Scope         string   `json:"scope"`
		Fields        []string `json:"fields"`
		CaseSensitive bool     `json:"case_sensitive"`
		WholeWord     bool     `json:"whole_word"`
		Invert        bool     `json:"invert"`
		Context       int      `json:"context"`
		MaxMatches    int      `json:"max_matches"`
	}

	tool := &mcp.Tool{
		Name:        "snapshot_search",
		Description: "Filter the last change report, the full tree, or the console through a pattern",
		InputSchema: inputSchema(map[string]any{
			"session":        map[string]any{"type": "string", "description": "Session ID"},
			"pattern":        map[string]any{"type": "string", "description": "Regex or literal pattern"},
			"scope":          map[string]any{"type": "string", "description": "What to search: last_diff, tree, console"},
			"fields":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Restrict matching to these fields"},
			"case_sensitive": map[string]any{"type": "boolean"},
			"whole_word":     map[string]any{"type": "boolean"},
			"invert":         map[string]any{"type": "boolean", "description": "Return non-matching entries"},
			"context":        map[string]any{"type": "integer", "description": "Entries of context around each match"},
			"max_matches":    map[string]any{"type": "integer"},
		}, []string{"session", "pattern"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.SearchReport(ctx, p.Session, SearchQuery{
			Scope:         p.Scope,
			Pattern:       p.Pattern,
			Fields:        p.Fields,
			CaseSensitive: p.CaseSensitive,
			WholeWord:     p.WholeWord,
			Invert:        p.Invert,
			Context:       p.Context,
			MaxMatches:    p.MaxMatches,
		})
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

// --- Interrupts ---

func (svc *Service) registerHandleDialog(srv *mcp.Server) {
	type req struct {
		Session    string `json:"session"`
		Accept     bool   `json:"accept"`
		PromptText string `json:"prompt_text"`
		Tag        string `json:"tag"`
	}

	tool := &mcp.Tool{
		Name:        "browser_handle_dialog",
		Description: "Accept or dismiss a pending JavaScript dialog",
		InputSchema: inputSchema(map[string]any{
			"session":     map[string]any{"type": "string", "description": "Session ID"},
			"accept":      map[string]any{"type": "boolean", "description": "Accept instead of dismiss"},
			"prompt_text": map[string]any{"type": "string", "description": "Text for prompt dialogs"},
			"tag":         map[string]any{"type": "string", "description": "Interrupt tag from the report, defaults to the oldest"},
		}, []string{"session", "accept"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.HandleDialog(ctx, p.Session, p.Tag, p.Accept, p.PromptText)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerFileUpload(srv *mcp.Server) {
	type req struct {
		Session string   `json:"session"`
		Paths   []string `json:"paths"`
		Tag     string   `json:"tag"`
	}

	tool := &mcp.Tool{
		Name:        "browser_file_upload",
		Description: "Answer a pending file chooser with local file paths",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
			"paths":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Absolute file paths"},
			"tag":     map[string]any{"type": "string", "description": "Interrupt tag from the report, defaults to the oldest"},
		}, []string{"session", "paths"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.FileUpload(ctx, p.Session, p.Tag, p.Paths)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerHandlePermission(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
		Grant   bool   `json:"grant"`
		Tag     string `json:"tag"`
	}

	tool := &mcp.Tool{
		Name:        "browser_handle_permission",
		Description: "Grant or deny a pending browser permission request",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
			"grant":   map[string]any{"type": "boolean", "description": "Grant instead of deny"},
			"tag":     map[string]any{"type": "string", "description": "Interrupt tag from the report, defaults to the oldest"},
		}, []string{"session", "grant"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.HandlePermission(ctx, p.Session, p.Tag, p.Grant)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerDismissNotification(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
		Tag     string `json:"tag"`
	}

	tool := &mcp.Tool{
		Name:        "browser_dismiss_notification",
		Description: "Dismiss a pending page notification interrupt",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
			"tag":     map[string]any{"type": "string", "description": "Interrupt tag from the report, defaults to the oldest"},
		}, []string{"session"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.DismissNotification(ctx, p.Session, p.Tag)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

// --- Content ---

func (svc *Service) registerReadPage(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
		Format  string `json:"format"`
	}

	tool := &mcp.Tool{
		Name:        "browser_read_page",
		Description: "Read the sanitized page content as markdown or plain text",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
			"format":  map[string]any{"type": "string", "description": "markdown (default) or text"},
		}, []string{"session"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.ReadPage(ctx, p.Session, p.Format)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerScreenshot(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
		Full    bool   `json:"full"`
	}

	tool := &mcp.Tool{
		Name:        "browser_screenshot",
		Description: "Capture the viewport or full page as a PNG image",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
			"full":    map[string]any{"type": "boolean", "description": "Capture the full page instead of the viewport"},
		}, []string{"session"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.Screenshot(ctx, p.Session, p.Full)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerPDF(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
	}

	tool := &mcp.Tool{
		Name:        "browser_pdf",
		Description: "Print the current page to a validated PDF document",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
		}, []string{"session"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.ExportPDF(ctx, p.Session)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

func (svc *Service) registerConsoleRead(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
		Limit   int    `json:"limit"`
		Clear   bool   `json:"clear"`
	}

	tool := &mcp.Tool{
		Name:        "console_read",
		Description: "Read buffered console messages and page errors for a session",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Session ID"},
			"limit":   map[string]any{"type": "integer", "description": "Max entries, newest first"},
			"clear":   map[string]any{"type": "boolean", "description": "Clear the buffer after reading"},
		}, []string{"session"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.ReadConsole(ctx, p.Session, p.Limit, p.Clear)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: sessionCtx(p.Session)}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}

// --- Journal ---

func (svc *Service) registerJournalRecent(srv *mcp.Server) {
	type req struct {
		Session string `json:"session"`
		Limit   int    `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "journal_recent",
		Description: "List recent tool calls from the journal, optionally for one session",
		InputSchema: inputSchema(map[string]any{
			"session": map[string]any{"type": "string", "description": "Restrict to this session"},
			"limit":   map[string]any{"type": "integer", "description": "Max entries, default 50"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.JournalRecent(ctx, p.Session, p.Limit)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if len(r.Params.Arguments) > 0 {
			if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.wrap(tool.Name, endpoint), decode)
}
