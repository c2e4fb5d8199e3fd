package internal

import (
	"io"

	"github.com/starford/outliner/internal/storage"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	prompt    storage.Prompter
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the JSON log. The MCP command needs this because
// stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithPrompter decides write permission for the configured external file.
// Without one every request is granted.
func WithPrompter(p storage.Prompter) Option {
	return func(a *application) {
		a.prompt = p
	}
}
