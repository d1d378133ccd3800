// Package api provides interfaces for dependency injection
package api

import "github.com/ssargent/niflheim/pkg/toaster"

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer starts the API server with the given configuration
	StartServer(formats []toaster.Format, port int, apiKey string) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
