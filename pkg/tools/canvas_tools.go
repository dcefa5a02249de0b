package tools

// The MCP tool catalogue gives AI agents the same write surface the REST API
// exposes, through the same SceneManager and the same element tables. Every
// tool accepts an optional session_id; when absent the binder resolves the
// session bound to this server instance, creating one on first use. Errors
// never propagate as hard failures: each handler downgrades them to an
// isError text result.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/0xArtex/excalidraw-mcp/pkg/service"
)

/*
sessionBinder tracks the session an MCP server instance is working in. It is
owned by the tool set and scoped to one server instance, never a process
global, so concurrent connections cannot bleed session ids into each other.
*/
type sessionBinder struct {
	mu     sync.Mutex
	scenes *service.SceneManager
	bound  string
}

// resolve returns the explicit id when given, otherwise the bound session,
// creating and binding one on first use.
func (b *sessionBinder) resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bound == "" {
		b.bound = b.scenes.CreateSession("").ID
	}
	return b.bound
}

func (b *sessionBinder) bind(id string) {
	b.mu.Lock()
	b.bound = id
	b.mu.Unlock()
}

// RegisterCanvasTools installs the diagram tools onto the given MCP server.
func RegisterCanvasTools(srv *server.MCPServer, scenes *service.SceneManager) {
	binder := &sessionBinder{scenes: scenes}

	srv.AddTool(mcp.NewTool(
		"start_session",
		mcp.WithDescription("Starts (or re-joins) a diagram session and returns its shareable canvas link. Subsequent tools default to this session."),
		mcp.WithString("session_id",
			mcp.Description("Optional id of an existing session to re-join"),
		),
	), makeStartSessionHandler(scenes, binder))

	srv.AddTool(mcp.NewTool(
		"create_element",
		mcp.WithDescription("Creates a single element on the canvas. Requires a shape type and x/y coordinates; size, colors and text are optional."),
		mcp.WithString("type",
			mcp.Description("Element type, e.g. rectangle, ellipse, diamond, arrow, line, text"),
			mcp.Required(),
		),
		mcp.WithNumber("x", mcp.Description("Horizontal position"), mcp.Required()),
		mcp.WithNumber("y", mcp.Description("Vertical position"), mcp.Required()),
		mcp.WithNumber("width", mcp.Description("Element width")),
		mcp.WithNumber("height", mcp.Description("Element height")),
		mcp.WithString("text", mcp.Description("Text content for text elements or labels")),
		mcp.WithString("strokeColor", mcp.Description("Stroke color, e.g. #1e1e1e")),
		mcp.WithString("backgroundColor", mcp.Description("Fill color")),
		mcp.WithNumber("fontSize", mcp.Description("Font size for text elements")),
		mcp.WithString("id", mcp.Description("Optional explicit element id")),
		mcp.WithString("session_id", mcp.Description("Session to draw into; defaults to the bound session")),
	), makeCreateElementHandler(scenes, binder))

	srv.AddTool(mcp.NewTool(
		"update_element",
		mcp.WithDescription("Updates fields of an existing element. Only the provided fields change; the element's version increments."),
		mcp.WithString("element_id", mcp.Description("Id of the element to update"), mcp.Required()),
		mcp.WithNumber("x", mcp.Description("New horizontal position")),
		mcp.WithNumber("y", mcp.Description("New vertical position")),
		mcp.WithNumber("width", mcp.Description("New width")),
		mcp.WithNumber("height", mcp.Description("New height")),
		mcp.WithString("text", mcp.Description("New text content")),
		mcp.WithString("strokeColor", mcp.Description("New stroke color")),
		mcp.WithString("backgroundColor", mcp.Description("New fill color")),
		mcp.WithString("session_id", mcp.Description("Session holding the element; defaults to the bound session")),
	), makeUpdateElementHandler(scenes, binder))

	srv.AddTool(mcp.NewTool(
		"batch_create_elements",
		mcp.WithDescription("Creates several elements at once. Every element is validated before any is created; one batch event is broadcast."),
		mcp.WithArray("elements",
			mcp.Description("Array of element objects, each with type/x/y plus optional fields"),
			mcp.Required(),
		),
		mcp.WithString("session_id", mcp.Description("Session to draw into; defaults to the bound session")),
	), makeBatchCreateHandler(scenes, binder))

	srv.AddTool(mcp.NewTool(
		"delete_element",
		mcp.WithDescription("Deletes one element from the canvas."),
		mcp.WithString("element_id", mcp.Description("Id of the element to delete"), mcp.Required()),
		mcp.WithString("session_id", mcp.Description("Session holding the element; defaults to the bound session")),
	), makeDeleteElementHandler(scenes, binder))

	srv.AddTool(mcp.NewTool(
		"list_elements",
		mcp.WithDescription("Lists every element currently in the session as formatted JSON."),
		mcp.WithString("session_id", mcp.Description("Session to inspect; defaults to the bound session")),
	), makeListElementsHandler(scenes, binder))

	srv.AddTool(mcp.NewTool(
		"mermaid_to_excalidraw",
		mcp.WithDescription("Sends mermaid diagram text to the connected canvas for conversion into shapes. An open canvas browser is required."),
		mcp.WithString("diagram", mcp.Description("Mermaid diagram source text"), mcp.Required()),
		mcp.WithString("session_id", mcp.Description("Session to convert into; defaults to the bound session")),
	), makeMermaidHandler(scenes, binder))

	srv.AddTool(mcp.NewTool(
		"finish_diagram",
		mcp.WithDescription("Finalizes the diagram: captures a rendered image and returns the shareable canvas link plus the image URL."),
		mcp.WithString("title", mcp.Description("Optional title to record on the session")),
		mcp.WithString("session_id", mcp.Description("Session to finalize; defaults to the bound session")),
	), makeFinishDiagramHandler(scenes, binder))
}

func makeStartSessionHandler(scenes *service.SceneManager, binder *sessionBinder) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		explicit, _ := args["session_id"].(string)

		session := scenes.CreateSession(explicit)
		binder.bind(session.ID)

		return mcp.NewToolResultText(fmt.Sprintf(
			"Started session %s. Open the canvas at %s to watch the diagram live.",
			session.ID, scenes.CanvasURL(session.ID),
		)), nil
	}
}

func makeCreateElementHandler(scenes *service.SceneManager, binder *sessionBinder) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		sessionID := binder.resolve(popString(args, "session_id"))

		body, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		el, err := scenes.CreateElement(sessionID, body)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf(
			"Created %s %s at (%g, %g) in session %s.",
			el.Type, el.ID, el.X, el.Y, sessionID,
		)), nil
	}
}

func makeUpdateElementHandler(scenes *service.SceneManager, binder *sessionBinder) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		sessionID := binder.resolve(popString(args, "session_id"))
		elementID := popString(args, "element_id")

		body, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		el, err := scenes.UpdateElement(sessionID, elementID, body)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf(
			"Updated %s %s to version %d.", el.Type, el.ID, el.Version,
		)), nil
	}
}

func makeBatchCreateHandler(scenes *service.SceneManager, binder *sessionBinder) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		sessionID := binder.resolve(popString(args, "session_id"))

		items, ok := args["elements"].([]any)
		if !ok || len(items) == 0 {
			return mcp.NewToolResultError("elements must be a non-empty array"), nil
		}

		body, err := json.Marshal(items)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		created, err := scenes.BatchCreate(sessionID, body)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		kinds := make([]string, 0, len(created))
		for _, el := range created {
			kinds = append(kinds, string(el.Type))
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"Created %d elements (%s) in session %s.",
			len(created), strings.Join(kinds, ", "), sessionID,
		)), nil
	}
}

func makeDeleteElementHandler(scenes *service.SceneManager, binder *sessionBinder) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		sessionID := binder.resolve(popString(args, "session_id"))
		elementID, _ := args["element_id"].(string)

		if err := scenes.DeleteElement(sessionID, elementID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf(
			"Deleted element %s from session %s.", elementID, sessionID,
		)), nil
	}
}

func makeListElementsHandler(scenes *service.SceneManager, binder *sessionBinder) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		sessionID := binder.resolve(popString(args, "session_id"))

		session, err := scenes.Session(sessionID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		out, err := json.MarshalIndent(session.Snapshot(), "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

func makeMermaidHandler(scenes *service.SceneManager, binder *sessionBinder) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		sessionID := binder.resolve(popString(args, "session_id"))
		diagram, _ := args["diagram"].(string)

		if err := scenes.ConvertMermaid(sessionID, diagram, nil); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		observers := scenes.Bus().SessionObserverCount(sessionID)
		if observers == 0 {
			return mcp.NewToolResultText(fmt.Sprintf(
				"Conversion requested but no canvas is open for session %s. Open %s, then retry.",
				sessionID, scenes.CanvasURL(sessionID),
			)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"Sent mermaid diagram to %d connected canvas(es) in session %s for conversion.",
			observers, sessionID,
		)), nil
	}
}

func makeFinishDiagramHandler(scenes *service.SceneManager, binder *sessionBinder) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		sessionID := binder.resolve(popString(args, "session_id"))
		title, _ := args["title"].(string)

		canvasURL, imageURL, err := scenes.FinishDiagram(ctx, sessionID, title)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		msg := fmt.Sprintf("Diagram finished. Share it at %s", canvasURL)
		if imageURL != "" {
			msg += fmt.Sprintf(". Rendered image: %s", imageURL)
		}
		return mcp.NewToolResultText(msg), nil
	}
}

// popString removes a routing argument from the map so the remainder can be
// marshaled straight into an element payload.
func popString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	delete(args, key)
	return v
}
