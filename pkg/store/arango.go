package store

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/user/scanforge/pkg/config"
	"github.com/user/scanforge/pkg/logging"
	"github.com/user/scanforge/pkg/model"
)

var logger = logging.New()

const databaseName = "scanforge"

var collectionNames = []string{"targets", "sessions", "findings", "inventory", "audit", "actions"}

// ArangoStore is the production backend.
type ArangoStore struct {
	db          arangodb.Database
	collections map[string]arangodb.Collection
}

func arangoConnectionConfig(endpoint connection.Endpoint, dbuser, dbpass string) connection.HttpConfiguration {
	return connection.HttpConfiguration{
		Authentication: connection.NewBasicAuth(dbuser, dbpass),
		Endpoint:       endpoint,
		ContentType:    connection.ApplicationJSON,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402
			},
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 90 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// NewArangoStore connects to ArangoDB with exponential backoff and
// bootstraps the database and collections.
func NewArangoStore(ctx context.Context) (*ArangoStore, error) {
	dbhost := config.GetEnvDefault("ARANGO_HOST", "localhost")
	dbport := config.GetEnvDefault("ARANGO_PORT", "8529")
	dbuser := config.GetEnvDefault("ARANGO_USER", "root")
	dbpass := config.GetEnvDefault("ARANGO_PASS", "")
	dburl := config.GetEnvDefault("ARANGO_URL", "http://"+dbhost+":"+dbport)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Second
	bo.MaxInterval = 1 * time.Minute
	bo.MaxElapsedTime = 5 * time.Minute

	var client arangodb.Client
	err := backoff.RetryNotify(func() error {
		endpoint := connection.NewRoundRobinEndpoints([]string{dburl})
		conn := connection.NewHttpConnection(arangoConnectionConfig(endpoint, dbuser, dbpass))
		client = arangodb.NewClient(conn)

		versionInfo, err := client.Version(ctx)
		if err != nil {
			return err
		}
		logger.Info("connected to ArangoDB", zap.String("version", string(versionInfo.Version)))
		return nil
	}, bo, func(err error, _ time.Duration) {
		logger.Warn("retrying connection to ArangoDB", zap.Error(err))
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to ArangoDB: %w", err)
	}

	var db arangodb.Database
	exists := false
	dblist, _ := client.Databases(ctx)
	for _, dbinfo := range dblist {
		if dbinfo.Name() == databaseName {
			exists = true
			break
		}
	}
	if exists {
		var options arangodb.GetDatabaseOptions
		if db, err = client.GetDatabase(ctx, databaseName, &options); err != nil {
			return nil, fmt.Errorf("getting database: %w", err)
		}
	} else {
		if db, err = client.CreateDatabase(ctx, databaseName, nil); err != nil {
			return nil, fmt.Errorf("creating database: %w", err)
		}
	}

	collections := make(map[string]arangodb.Collection)
	for _, name := range collectionNames {
		var col arangodb.Collection
		colExists, _ := db.CollectionExists(ctx, name)
		if colExists {
			var options arangodb.GetCollectionOptions
			if col, err = db.GetCollection(ctx, name, &options); err != nil {
				return nil, fmt.Errorf("using collection %s: %w", name, err)
			}
		} else {
			if col, err = db.CreateCollection(ctx, name, nil); err != nil {
				return nil, fmt.Errorf("creating collection %s: %w", name, err)
			}
		}
		collections[name] = col
	}

	return &ArangoStore{db: db, collections: collections}, nil
}

// sanitizeKey makes a value usable as an ArangoDB _key.
func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	replacer := strings.NewReplacer(" ", "-", "/", "-", "[", "", "]", "", "(", "", ")", "")
	return replacer.Replace(key)
}

func (s *ArangoStore) upsert(ctx context.Context, collection, key string, doc any) error {
	query := fmt.Sprintf(`
		UPSERT { _key: @key }
		INSERT MERGE({ _key: @key }, @doc)
		UPDATE @doc
		IN %s
	`, collection)
	_, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"key": key, "doc": doc},
	})
	return err
}

func (s *ArangoStore) readOne(ctx context.Context, collection, key string, out any) error {
	query := fmt.Sprintf(`FOR d IN %s FILTER d._key == @key RETURN d`, collection)
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"key": key},
	})
	if err != nil {
		return err
	}
	defer cursor.Close()
	if !cursor.HasMore() {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, key)
	}
	_, err = cursor.ReadDocument(ctx, out)
	return err
}

func readAll[T any](ctx context.Context, s *ArangoStore, query string, bindVars map[string]interface{}) ([]T, error) {
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var out []T
	for cursor.HasMore() {
		var doc T
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *ArangoStore) PutTarget(ctx context.Context, t *model.Target) error {
	return s.upsert(ctx, "targets", sanitizeKey(t.ID), t)
}

func (s *ArangoStore) GetTarget(ctx context.Context, id string) (*model.Target, error) {
	var t model.Target
	if err := s.readOne(ctx, "targets", sanitizeKey(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *ArangoStore) ListTargets(ctx context.Context) ([]model.Target, error) {
	return readAll[model.Target](ctx, s, `FOR t IN targets SORT t.created_at RETURN t`, nil)
}

func (s *ArangoStore) PutSession(ctx context.Context, sess *model.Session) error {
	return s.upsert(ctx, "sessions", sanitizeKey(sess.ID), sess)
}

func (s *ArangoStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	if err := s.readOne(ctx, "sessions", sanitizeKey(id), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *ArangoStore) ListSessions(ctx context.Context) ([]model.Session, error) {
	return readAll[model.Session](ctx, s, `FOR s IN sessions SORT s.created_at RETURN s`, nil)
}

func (s *ArangoStore) AppendFinding(ctx context.Context, f *model.Finding) error {
	return s.upsert(ctx, "findings", sanitizeKey(f.ID), f)
}

func (s *ArangoStore) UpdateFinding(ctx context.Context, f *model.Finding) error {
	return s.upsert(ctx, "findings", sanitizeKey(f.ID), f)
}

func (s *ArangoStore) FindingsBySession(ctx context.Context, sessionID string) ([]model.Finding, error) {
	return readAll[model.Finding](ctx, s,
		`FOR f IN findings FILTER f.session_id == @sid SORT f.created_at RETURN f`,
		map[string]interface{}{"sid": sessionID})
}

func (s *ArangoStore) OpenFindingsByHost(ctx context.Context, host string) ([]model.Finding, error) {
	return readAll[model.Finding](ctx, s,
		`FOR f IN findings FILTER f.host == @host AND f.status == @status SORT f.created_at RETURN f`,
		map[string]interface{}{"host": host, "status": string(model.FindingOpen)})
}

func (s *ArangoStore) UpsertAsset(ctx context.Context, a *model.InventoryAsset) error {
	stored := *a
	stored.OpenPorts = model.SortPorts(a.OpenPorts)
	// first_seen of an existing record wins; the UPSERT runs atomically
	// server-side, which gives the per-address serialization the
	// inventory contract requires.
	query := `
		UPSERT { _key: @key }
		INSERT MERGE({ _key: @key }, @doc)
		UPDATE MERGE(@doc, { first_seen: OLD.first_seen })
		IN inventory
	`
	_, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"key": sanitizeKey(a.Address), "doc": stored},
	})
	return err
}

func (s *ArangoStore) GetAsset(ctx context.Context, address string) (*model.InventoryAsset, error) {
	var a model.InventoryAsset
	if err := s.readOne(ctx, "inventory", sanitizeKey(address), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *ArangoStore) ListAssets(ctx context.Context) ([]model.InventoryAsset, error) {
	return readAll[model.InventoryAsset](ctx, s, `FOR a IN inventory SORT a.address RETURN a`, nil)
}

func (s *ArangoStore) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	_, err := s.collections["audit"].CreateDocument(ctx, e)
	return err
}

func (s *ArangoStore) AuditBySession(ctx context.Context, sessionID string) ([]model.AuditEntry, error) {
	return readAll[model.AuditEntry](ctx, s,
		`FOR e IN audit FILTER e.session_id == @sid SORT e.created_at RETURN e`,
		map[string]interface{}{"sid": sessionID})
}

func (s *ArangoStore) AppendAction(ctx context.Context, a *model.ActionItem) error {
	return s.upsert(ctx, "actions", sanitizeKey(a.ID), a)
}

func (s *ArangoStore) OpenActions(ctx context.Context) ([]model.ActionItem, error) {
	return readAll[model.ActionItem](ctx, s,
		`FOR a IN actions FILTER a.status == @status SORT a.created_at RETURN a`,
		map[string]interface{}{"status": string(model.ActionOpen)})
}
