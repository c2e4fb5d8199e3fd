// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the open outline to LLM tools via stdio transport.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/outline"
	"github.com/starford/outliner/internal/session"
)

// FormatURI identifies the outline format contract resource.
const FormatURI = "outliner://format"

// Server wraps the MCP server with outline tools.
type Server struct {
	mcp  *server.MCPServer
	sess *session.Session
}

// New creates a new MCP server with all outline tools registered.
func New(sess *session.Session) *Server {
	s := &Server{sess: sess}

	s.mcp = server.NewMCPServer(
		"Outliner",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("outline_read",
		mcp.WithDescription("Read the open outline as a JSON tree with its title, save state and selection."),
	), s.readOutline)

	s.mcp.AddTool(mcp.NewTool("outline_edit",
		mcp.WithDescription("Apply one editing command to the open outline. "+
			"Structural commands that are not possible (indenting a first child, moving a "+
			"node into itself) are rejected with applied=false and leave the outline unchanged."),
		mcp.WithString("op", mcp.Required(), mcp.Description("Command name"),
			mcp.Enum(
				session.CmdCreate, session.CmdAppend, session.CmdDelete,
				session.CmdIndent, session.CmdOutdent, session.CmdMoveUp, session.CmdMoveDown,
				session.CmdMove, session.CmdKind, session.CmdDone, session.CmdFold,
				session.CmdBody, session.CmdSelect, session.CmdTitle,
			)),
		mcp.WithString("id", mcp.Description("Node the command applies to")),
		mcp.WithString("target", mcp.Description("Reference node for move")),
		mcp.WithString("position", mcp.Description("Placement for move relative to target"),
			mcp.Enum("before", "after", "inside")),
		mcp.WithString("kind", mcp.Description("Node kind for create, append and kind"),
			mcp.Enum(kindNames()...)),
		mcp.WithString("body", mcp.Description("Inline XHTML body for the body command, or the new name for title")),
		mcp.WithBoolean("value", mcp.Description("Flag value for done and fold")),
	), s.editOutline)

	s.mcp.AddTool(mcp.NewTool("outline_save",
		mcp.WithDescription("Save the outline to its current target. Unsaved new documents go to the owned store."),
	), s.saveOutline)

	s.mcp.AddTool(mcp.NewTool("outline_export",
		mcp.WithDescription("Render the outline in the canonical file format without saving it."),
	), s.exportOutline)

	s.mcp.AddTool(mcp.NewTool("outline_open_url",
		mcp.WithDescription("Download an outline file from an http(s) or data: URL and open it as a copy. "+
			"Saving it afterwards writes to the owned store. Read the format contract first via "+
			"the get_format_contract tool or the "+FormatURI+" resource."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or base64 data URI")),
		mcp.WithBoolean("force", mcp.Description("Drop unsaved changes in the open outline")),
	), s.openURL)

	s.mcp.AddTool(mcp.NewTool("get_format_contract",
		mcp.WithDescription("Returns the outline file format contract. "+
			"Call this before composing outline files or node bodies."),
	), s.getFormatContract)

	// Resource: outline format contract.
	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Outline Format Contract",
			mcp.WithResourceDescription("XHTML outline file format read and written by the editor."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func kindNames() []string {
	names := make([]string, 0, int(outline.KindLatex)+1)
	for k := outline.KindPlain; k <= outline.KindLatex; k++ {
		names = append(names, k.String())
	}
	return names
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) readOutline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.sess.View()), nil
}

func (s *Server) editOutline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	op, err := req.RequireString("op")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cmd := session.Command{
		Op:       op,
		ID:       outline.NodeID(req.GetString("id", "")),
		Target:   outline.NodeID(req.GetString("target", "")),
		Position: req.GetString("position", ""),
		Kind:     req.GetString("kind", ""),
		Body:     req.GetString("body", ""),
		Value:    req.GetBool("value", false),
	}
	res, err := s.sess.Apply(ctx, cmd)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) saveOutline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coord := s.sess.Coordinator()
	if err := coord.Save(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", err)), nil
	}
	return jsonResult(coord.State()), nil
}

func (s *Server) exportOutline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exp, err := s.sess.Coordinator().Export()
	if errors.Is(err, apperr.ErrEmptyDocument) {
		return mcp.NewToolResultError("nothing to export: the outline is empty"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", exp.Name, exp.Content)), nil
}

func (s *Server) getFormatContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FormatContract), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     FormatContract,
		},
	}, nil
}
