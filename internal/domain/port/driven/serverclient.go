package driven

import (
	"context"

	"github.com/parlorchat/loginflow/internal/domain/model"
)

// ServerClient defines the driven port for talking to the remote server
// outside the embedded browser surface. Status is the only call the login
// core needs; the login page itself is fetched by the session adapter.
type ServerClient interface {
	// Status fetches the server's status document.
	Status(ctx context.Context) (model.ServerStatus, error)
}
