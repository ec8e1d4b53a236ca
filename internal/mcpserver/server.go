// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the catalog index for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/indexservice"
	"github.com/starford/arbor/internal/replication"
)

const contractURI = "arbor://path-contract"

// Index is the replica the tools operate on.
type Index interface {
	Resolve(ctx context.Context, path index.Path, kind index.Kind, record int) (indexservice.NodeInfo, error)
	Children(ctx context.Context, fam index.Family, path index.Path, kind index.Kind, record int) ([]index.View, error)
	Tree(ctx context.Context, fam index.Family, depth int) (index.View, error)
	Mutate(ctx context.Context, d replication.Delta) (indexservice.Result, error)
}

// Server wraps the MCP server with the index tools.
type Server struct {
	mcp *server.MCPServer
	idx Index
}

// New creates a new MCP server with all index tools registered.
func New(idx Index, version string) *Server {
	s := &Server{idx: idx}

	s.mcp = server.NewMCPServer(
		"Arbor",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Snapshot one family tree as JSON."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("family", mcp.Required(), mcp.Description("libraries, collections, keywords or search")),
		mcp.WithNumber("depth", mcp.Description("Levels below the root (default: whole tree)")),
	), s.getTree)

	s.mcp.AddTool(mcp.NewTool("list_children",
		mcp.WithDescription("List the direct children of a node. An empty path lists the family root."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("family", mcp.Required(), mcp.Description("libraries, collections, keywords or search")),
		mcp.WithString("path", mcp.Description("Slash-separated display names below the root")),
		mcp.WithString("kind", mcp.Description("Kind of the last path segment; required with a path")),
		mcp.WithNumber("record", mcp.Description("Record of the last segment when names collide")),
	), s.listChildren)

	s.mcp.AddTool(mcp.NewTool("resolve_node",
		mcp.WithDescription("Resolve a path to its node."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("path", mcp.Required(), mcp.Description("Slash-separated display names below the root")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Kind of the last path segment")),
		mcp.WithNumber("record", mcp.Description("Record of the last segment when names collide")),
	), s.resolveNode)

	s.mcp.AddTool(mcp.NewTool("insert_node",
		mcp.WithDescription("Insert a node. Read the path contract first via "+
			"the get_path_contract tool or the "+contractURI+" resource."),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("path", mcp.Required(), mcp.Description("Slash-separated path ending with the new name")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Kind of the new node")),
		mcp.WithNumber("record", mcp.Description("Catalog record (default: allocated)")),
		mcp.WithNumber("parent_record", mcp.Description("Record of the parent (default: taken from the parent node)")),
		mcp.WithNumber("sort_order", mcp.Description("Position of an ordered item (default: appended)")),
	), s.insertNode)

	s.mcp.AddTool(mcp.NewTool("rename_node",
		mcp.WithDescription("Change a node's display name."),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("path", mcp.Required(), mcp.Description("Slash-separated path of the node")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Kind of the node")),
		mcp.WithNumber("record", mcp.Description("Record of the node when names collide")),
		mcp.WithString("new_name", mcp.Required(), mcp.Description("New display name")),
	), s.renameNode)

	s.mcp.AddTool(mcp.NewTool("delete_node",
		mcp.WithDescription("Delete a node, its subtree, and every keyword example and search entry mirroring it."),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("path", mcp.Required(), mcp.Description("Slash-separated path of the node")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Kind of the node")),
		mcp.WithNumber("record", mcp.Description("Record of the node when names collide")),
	), s.deleteNode)

	s.mcp.AddTool(mcp.NewTool("move_node",
		mcp.WithDescription("Move or copy a subtree under another node of the same family."),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("source", mcp.Required(), mcp.Description("Slash-separated path of the subtree")),
		mcp.WithString("source_kind", mcp.Required(), mcp.Description("Kind of the subtree root")),
		mcp.WithNumber("source_record", mcp.Description("Record of the subtree root when names collide")),
		mcp.WithString("dest", mcp.Description("Slash-separated path of the new parent; empty for the family root")),
		mcp.WithString("dest_kind", mcp.Required(), mcp.Description("Kind of the new parent")),
		mcp.WithBoolean("copy", mcp.Description("Keep the source (default: false)")),
	), s.moveNode)

	s.mcp.AddTool(mcp.NewTool("reorder_node",
		mcp.WithDescription("Set the sort order of a quote, clip or snapshot."),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("path", mcp.Required(), mcp.Description("Slash-separated path of the item")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("quote, clip or snapshot")),
		mcp.WithNumber("record", mcp.Description("Record of the item when names collide")),
		mcp.WithNumber("sort_order", mcp.Required(), mcp.Description("New sort order")),
	), s.reorderNode)

	s.mcp.AddTool(mcp.NewTool("get_path_contract",
		mcp.WithDescription("Returns the path addressing rules and the legal parent of every kind. "+
			"Call this before inserting or moving nodes."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.getPathContract)

	// Resource: path contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Path Contract",
			mcp.WithResourceDescription("How index paths and kinds are addressed."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func stringArg(req mcp.CallToolRequest, key string) string {
	v, _ := req.GetArguments()[key].(string)
	return v
}

func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func optIntArg(req mcp.CallToolRequest, key string) *int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return nil
	}
	n := int(v)
	return &n
}

func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// splitPath turns "A/B/C" into a path. Empty segments are dropped.
func splitPath(s string) index.Path {
	var out index.Path
	for _, seg := range strings.Split(s, "/") {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func kindArg(req mcp.CallToolRequest, key string) (index.Kind, error) {
	s, err := req.RequireString(key)
	if err != nil {
		return index.KindInvalid, err
	}
	return index.ParseKind(s)
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) getTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("family")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fam, err := index.ParseFamily(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.idx.Tree(ctx, fam, intArg(req, "depth", -1))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(v), nil
}

func (s *Server) listChildren(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("family")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fam, err := index.ParseFamily(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path := splitPath(stringArg(req, "path"))
	var kind index.Kind
	if len(path) > 0 {
		if kind, err = kindArg(req, "kind"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	kids, err := s.idx.Children(ctx, fam, path, kind, intArg(req, "record", index.AnyRecord))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(kids) == 0 {
		return mcp.NewToolResultText("no children"), nil
	}
	lines := make([]string, len(kids))
	for i, k := range kids {
		lines[i] = fmt.Sprintf("%s (%s)", k.Name, k.Kind)
		if k.Record != 0 {
			lines[i] += fmt.Sprintf(" #%d", k.Record)
		}
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) resolveNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := kindArg(req, "kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := s.idx.Resolve(ctx, splitPath(path), kind, intArg(req, "record", index.AnyRecord))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(info), nil
}

// mutate runs d and reports the broadcast delta line.
func (s *Server) mutate(ctx context.Context, d replication.Delta) (*mcp.CallToolResult, error) {
	res, err := s.idx.Mutate(ctx, d)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) insertNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := kindArg(req, "kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.mutate(ctx, replication.Insert(splitPath(path), kind,
		intArg(req, "record", 0), intArg(req, "parent_record", 0), optIntArg(req, "sort_order")))
}

func (s *Server) renameNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := kindArg(req, "kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newName, err := req.RequireString("new_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.mutate(ctx, replication.Rename(splitPath(path), kind, intArg(req, "record", 0), newName))
}

func (s *Server) deleteNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := kindArg(req, "kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.mutate(ctx, replication.Delete(splitPath(path), kind, intArg(req, "record", 0)))
}

func (s *Server) moveNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	srcKind, err := kindArg(req, "source_kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dstKind, err := kindArg(req, "dest_kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	deleteSource := !boolArg(req, "copy", false)
	d := replication.MoveOrCopy(splitPath(src), srcKind, splitPath(stringArg(req, "dest")), dstKind, deleteSource)
	d.Record = intArg(req, "source_record", 0)
	return s.mutate(ctx, d)
}

func (s *Server) reorderNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := kindArg(req, "kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	order := optIntArg(req, "sort_order")
	if order == nil {
		return mcp.NewToolResultError("sort_order is required"), nil
	}
	return s.mutate(ctx, replication.Reorder(splitPath(path), kind, intArg(req, "record", 0), *order))
}

func (s *Server) getPathContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(KindContract()), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     KindContract(),
		},
	}, nil
}
