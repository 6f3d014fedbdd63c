// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/ciaranj/piglet/internal/app/system/sitefs"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and storage dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// FS is the on-disk content store rooted at the configured data dir.
	FS *sitefs.Store
}
