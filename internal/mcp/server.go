// Package mcp implements the MCP (Model Context Protocol) server for passlocal.
// Agents can browse folders and secret metadata, and check a secret's shape
// through a masked value, but never receive plaintext.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/forest6511/passlocal/internal/session"
	"github.com/forest6511/passlocal/pkg/audit"
)

// Version is reported in the MCP handshake.
const Version = "1.0.0"

// ErrNoPassword is returned when the server cannot unlock the vault.
var ErrNoPassword = errors.New("no password provided: set PASSLOCAL_PASSWORD environment variable")

// Server exposes an unlocked vault over MCP.
type Server struct {
	server  *mcp.Server
	session *session.Session
	log     zerolog.Logger
}

// ServerOptions contains configuration options for the MCP server.
type ServerOptions struct {
	// Store is the vault file to serve.
	Store session.Store

	// Password is the master password for the vault.
	Password string

	// Audit receives one event per tool call when set.
	Audit *audit.Logger

	// AllowTool filters which tools are registered. nil allows all.
	AllowTool func(name string) bool

	Logger zerolog.Logger
}

// NewServer unlocks the vault and registers the tools.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("mcp: store is required")
	}
	if opts.Password == "" {
		return nil, ErrNoPassword
	}

	sessOpts := []session.Option{session.WithLogger(opts.Logger)}
	if opts.Audit != nil {
		sessOpts = append(sessOpts, session.WithAudit(opts.Audit, audit.SourceMCP))
	}
	sess := session.New(opts.Store, sessOpts...)
	if _, err := sess.Unlock(opts.Password); err != nil {
		return nil, fmt.Errorf("failed to unlock vault: %w", err)
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "passlocal",
			Version: Version,
		}, nil),
		session: sess,
		log:     opts.Logger,
	}
	s.registerTools(opts.AllowTool)
	return s, nil
}

func (s *Server) registerTools(allow func(string) bool) {
	if allow == nil {
		allow = func(string) bool { return true }
	}

	if allow("folder_list") {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "folder_list",
			Description: "List vault folders in display order with the number of secrets in each.",
		}, s.handleFolderList)
	}
	if allow("secret_list") {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "secret_list",
			Description: "List secrets with metadata: id, name, key, folder, timestamps and whether notes exist. Optional folder (id or name) and name pattern (glob) filters. Does NOT return secret values.",
		}, s.handleSecretList)
	}
	if allow("secret_exists") {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "secret_exists",
			Description: "Check whether a secret exists by id or name and return its metadata. Does NOT return the secret value.",
		}, s.handleSecretExists)
	}
	if allow("secret_get_masked") {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "secret_get_masked",
			Description: "Get a masked version of a secret value (e.g., '****WXYZ'). Useful for verifying secret format without exposing the actual value.",
		}, s.handleSecretGetMasked)
	}
}

// Run serves over stdio until ctx is done, then locks the vault.
func (s *Server) Run(ctx context.Context) error {
	defer s.session.Lock()
	s.log.Info().Msg("mcp server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close locks the vault.
func (s *Server) Close() error {
	s.session.Lock()
	return nil
}
