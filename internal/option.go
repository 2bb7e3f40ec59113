package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	version   string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput sets where logs go when no log file is configured.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, errConfigRequired
	}
	return app, nil
}
