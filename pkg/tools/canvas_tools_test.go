package tools

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/smartystreets/goconvey/convey"

	"github.com/0xArtex/excalidraw-mcp/pkg/broadcast"
	"github.com/0xArtex/excalidraw-mcp/pkg/canvas"
	"github.com/0xArtex/excalidraw-mcp/pkg/idgen"
	"github.com/0xArtex/excalidraw-mcp/pkg/service"
	"github.com/0xArtex/excalidraw-mcp/pkg/stores"
)

type fakeExporter struct{}

func (fakeExporter) Export(_ context.Context, sessionID string) (string, error) {
	return "http://localhost:3031/exports/" + sessionID + ".png", nil
}

func newToolTestManager() *service.SceneManager {
	return service.NewSceneManager(
		stores.NewRegistry(idgen.New()),
		broadcast.NewBus(),
		canvas.NewTypeSet(nil),
		fakeExporter{},
		"http://localhost:3031",
	)
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if textContent, ok := result.Content[0].(mcp.TextContent); ok {
		return textContent.Text
	}
	return ""
}

func TestStartSessionTool(t *testing.T) {
	convey.Convey("Given the session tool and a fresh binder", t, func() {
		scenes := newToolTestManager()
		binder := &sessionBinder{scenes: scenes}
		handler := makeStartSessionHandler(scenes, binder)
		ctx := context.Background()

		convey.Convey("When invoked without a session id", func() {
			result, err := handler(ctx, callRequest("start_session", map[string]any{}))

			convey.So(err, convey.ShouldBeNil)
			convey.So(result.IsError, convey.ShouldBeFalse)
			convey.So(resultText(result), convey.ShouldContainSubstring, "sessionId=")

			convey.Convey("Subsequent tools default to the new session", func() {
				convey.So(binder.resolve(""), convey.ShouldNotBeEmpty)
				convey.So(scenes.Registry().Count(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When invoked with an explicit session id", func() {
			result, err := handler(ctx, callRequest("start_session", map[string]any{
				"session_id": "pinned",
			}))

			convey.So(err, convey.ShouldBeNil)
			convey.So(resultText(result), convey.ShouldContainSubstring, "pinned")
			convey.So(binder.resolve(""), convey.ShouldEqual, "pinned")
		})
	})
}

func TestCreateElementTool(t *testing.T) {
	convey.Convey("Given the create tool", t, func() {
		scenes := newToolTestManager()
		binder := &sessionBinder{scenes: scenes}
		handler := makeCreateElementHandler(scenes, binder)
		ctx := context.Background()

		convey.Convey("When creating a valid element", func() {
			result, err := handler(ctx, callRequest("create_element", map[string]any{
				"type": "rectangle", "x": 10.0, "y": 20.0, "session_id": "s1",
			}))

			convey.So(err, convey.ShouldBeNil)
			convey.So(result.IsError, convey.ShouldBeFalse)
			convey.So(resultText(result), convey.ShouldContainSubstring, "rectangle")
			convey.So(resultText(result), convey.ShouldContainSubstring, "(10, 20)")

			session, lookupErr := scenes.Session("s1")
			convey.So(lookupErr, convey.ShouldBeNil)
			convey.So(session.Count(), convey.ShouldEqual, 1)
		})

		convey.Convey("When the element type is unknown", func() {
			result, err := handler(ctx, callRequest("create_element", map[string]any{
				"type": "hexagon", "x": 0.0, "y": 0.0, "session_id": "s1",
			}))

			convey.Convey("The failure is a downgraded isError result, never a hard error", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(result.IsError, convey.ShouldBeTrue)
				convey.So(resultText(result), convey.ShouldContainSubstring, "hexagon")
			})
		})

		convey.Convey("When no session id is given", func() {
			result, err := handler(ctx, callRequest("create_element", map[string]any{
				"type": "ellipse", "x": 1.0, "y": 2.0,
			}))

			convey.Convey("A session is created and bound on first use", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(result.IsError, convey.ShouldBeFalse)
				convey.So(scenes.Registry().Count(), convey.ShouldEqual, 1)
			})
		})
	})
}

func TestUpdateAndDeleteElementTools(t *testing.T) {
	convey.Convey("Given a session holding one element", t, func() {
		scenes := newToolTestManager()
		binder := &sessionBinder{scenes: scenes}
		ctx := context.Background()

		created, err := scenes.CreateElement("s1", []byte(`{"id":"el1","type":"rectangle","x":0,"y":0}`))
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("The update tool bumps the version", func() {
			handler := makeUpdateElementHandler(scenes, binder)
			result, handleErr := handler(ctx, callRequest("update_element", map[string]any{
				"element_id": created.ID, "x": 50.0, "session_id": "s1",
			}))

			convey.So(handleErr, convey.ShouldBeNil)
			convey.So(result.IsError, convey.ShouldBeFalse)
			convey.So(resultText(result), convey.ShouldContainSubstring, "version 2")
		})

		convey.Convey("Updating a missing element is an isError result", func() {
			handler := makeUpdateElementHandler(scenes, binder)
			result, handleErr := handler(ctx, callRequest("update_element", map[string]any{
				"element_id": "ghost", "x": 1.0, "session_id": "s1",
			}))

			convey.So(handleErr, convey.ShouldBeNil)
			convey.So(result.IsError, convey.ShouldBeTrue)
		})

		convey.Convey("The delete tool removes the element", func() {
			handler := makeDeleteElementHandler(scenes, binder)
			result, handleErr := handler(ctx, callRequest("delete_element", map[string]any{
				"element_id": created.ID, "session_id": "s1",
			}))

			convey.So(handleErr, convey.ShouldBeNil)
			convey.So(result.IsError, convey.ShouldBeFalse)

			session, lookupErr := scenes.Session("s1")
			convey.So(lookupErr, convey.ShouldBeNil)
			convey.So(session.Count(), convey.ShouldEqual, 0)
		})
	})
}

func TestBatchCreateTool(t *testing.T) {
	convey.Convey("Given the batch tool", t, func() {
		scenes := newToolTestManager()
		binder := &sessionBinder{scenes: scenes}
		handler := makeBatchCreateHandler(scenes, binder)
		ctx := context.Background()

		convey.Convey("When creating a valid batch", func() {
			result, err := handler(ctx, callRequest("batch_create_elements", map[string]any{
				"session_id": "s1",
				"elements": []any{
					map[string]any{"type": "rectangle", "x": 0.0, "y": 0.0},
					map[string]any{"type": "arrow", "x": 5.0, "y": 5.0},
				},
			}))

			convey.So(err, convey.ShouldBeNil)
			convey.So(result.IsError, convey.ShouldBeFalse)
			convey.So(resultText(result), convey.ShouldContainSubstring, "2 elements")

			session, lookupErr := scenes.Session("s1")
			convey.So(lookupErr, convey.ShouldBeNil)
			convey.So(session.Count(), convey.ShouldEqual, 2)
		})

		convey.Convey("When the elements argument is missing", func() {
			result, err := handler(ctx, callRequest("batch_create_elements", map[string]any{
				"session_id": "s1",
			}))

			convey.Convey("The call is an isError result and no event fires", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(result.IsError, convey.ShouldBeTrue)
				convey.So(resultText(result), convey.ShouldContainSubstring, "non-empty array")
				convey.So(scenes.Registry().Count(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the elements array is empty", func() {
			result, err := handler(ctx, callRequest("batch_create_elements", map[string]any{
				"session_id": "s1",
				"elements":   []any{},
			}))

			convey.So(err, convey.ShouldBeNil)
			convey.So(result.IsError, convey.ShouldBeTrue)
		})

		convey.Convey("When one item is invalid, nothing is created", func() {
			result, err := handler(ctx, callRequest("batch_create_elements", map[string]any{
				"session_id": "s1",
				"elements": []any{
					map[string]any{"type": "rectangle", "x": 0.0, "y": 0.0},
					map[string]any{"type": "hexagon", "x": 1.0, "y": 1.0},
				},
			}))

			convey.So(err, convey.ShouldBeNil)
			convey.So(result.IsError, convey.ShouldBeTrue)

			session, lookupErr := scenes.Session("s1")
			convey.So(lookupErr, convey.ShouldBeNil)
			convey.So(session.Count(), convey.ShouldEqual, 0)
		})
	})
}

func TestListElementsTool(t *testing.T) {
	convey.Convey("Given a session with elements", t, func() {
		scenes := newToolTestManager()
		binder := &sessionBinder{scenes: scenes}
		handler := makeListElementsHandler(scenes, binder)
		ctx := context.Background()

		_, err := scenes.CreateElement("s1", []byte(`{"id":"el1","type":"rectangle","x":0,"y":0}`))
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Listing returns the snapshot as formatted JSON", func() {
			result, handleErr := handler(ctx, callRequest("list_elements", map[string]any{
				"session_id": "s1",
			}))

			convey.So(handleErr, convey.ShouldBeNil)
			convey.So(result.IsError, convey.ShouldBeFalse)
			convey.So(resultText(result), convey.ShouldContainSubstring, `"id": "el1"`)
			convey.So(resultText(result), convey.ShouldContainSubstring, `"version": 1`)
		})
	})
}

func TestMermaidTool(t *testing.T) {
	convey.Convey("Given the mermaid tool", t, func() {
		scenes := newToolTestManager()
		binder := &sessionBinder{scenes: scenes}
		handler := makeMermaidHandler(scenes, binder)
		ctx := context.Background()

		convey.Convey("With no open canvas, the result warns about observers", func() {
			result, err := handler(ctx, callRequest("mermaid_to_excalidraw", map[string]any{
				"diagram": "graph TD; A-->B", "session_id": "s1",
			}))

			convey.So(err, convey.ShouldBeNil)
			convey.So(result.IsError, convey.ShouldBeFalse)
			convey.So(resultText(result), convey.ShouldContainSubstring, "no canvas is open")
		})

		convey.Convey("An empty diagram is an isError result", func() {
			result, err := handler(ctx, callRequest("mermaid_to_excalidraw", map[string]any{
				"diagram": "  ", "session_id": "s1",
			}))

			convey.So(err, convey.ShouldBeNil)
			convey.So(result.IsError, convey.ShouldBeTrue)
		})
	})
}

func TestFinishDiagramTool(t *testing.T) {
	convey.Convey("Given the finish tool", t, func() {
		scenes := newToolTestManager()
		binder := &sessionBinder{scenes: scenes}
		handler := makeFinishDiagramHandler(scenes, binder)
		ctx := context.Background()

		convey.Convey("When finishing a session", func() {
			result, err := handler(ctx, callRequest("finish_diagram", map[string]any{
				"session_id": "s1", "title": "final",
			}))

			convey.So(err, convey.ShouldBeNil)
			convey.So(result.IsError, convey.ShouldBeFalse)
			convey.So(resultText(result), convey.ShouldContainSubstring, "sessionId=s1")
			convey.So(resultText(result), convey.ShouldContainSubstring, "/exports/s1.png")

			session, lookupErr := scenes.Session("s1")
			convey.So(lookupErr, convey.ShouldBeNil)
			convey.So(session.IsFinalized(), convey.ShouldBeTrue)
			convey.So(session.Title(), convey.ShouldEqual, "final")
		})
	})
}
