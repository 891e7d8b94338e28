package repomanager

import (
	"context"

	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/events"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/files"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/folders"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/sharelinks"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/users"
)

// Repositories vends one repository per table, all bound to the same
// connection or transaction.
type Repositories interface {
	Users() users.Repository
	Folders() folders.Repository
	Files() files.Repository
	ShareLinks() sharelinks.Repository
	Events() events.Repository
}

// RepositoryManager is the metadata store as seen by the services.
type RepositoryManager interface {
	Repositories
	RunMigrations(ctx context.Context) error
	// WithTx runs fn against repositories bound to a single transaction and
	// commits when fn returns nil. Calls made inside fn on the outer manager
	// are not part of the transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Ping(ctx context.Context) error
}
