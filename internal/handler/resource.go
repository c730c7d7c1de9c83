// Package handler exposes the entity collections over HTTP. One generic
// Resource drives every collection; the per-entity files configure its
// duplicate probe and relationship links.
package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"commerce-api/internal/model"
	"commerce-api/internal/odata"
	"commerce-api/internal/ref"
	"commerce-api/internal/store"
	"commerce-api/internal/telemetry"
	"commerce-api/pkg/config"
	"commerce-api/pkg/database"
	"commerce-api/pkg/logger"
	"commerce-api/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Entity is what every persisted model gives the generic resource: a
// primary key and access to its audit block.
type Entity interface {
	GetID() uint
	SetID(uint)
	AuditRef() *model.Audit
}

// EntityPtr constrains the pointer side of a model type.
type EntityPtr[T any] interface {
	*T
	Entity
}

// Relation wires one navigable association of an entity. A nil Unlink (or a
// relation absent from the map) makes the corresponding $ref operation
// respond 501, matching collections that only support linking.
type Relation[T any] struct {
	Link   func(db *gorm.DB, owner *T, key uint) error
	Unlink func(db *gorm.DB, owner *T, relatedKey uint) error
}

// Deps carries the request-independent collaborators shared by all
// resources.
type Deps struct {
	Config   *config.Config
	Tracker  *telemetry.Tracker
	Events   *telemetry.Publisher
	Resolver *ref.Resolver
}

// Resource serves the full operation set for one entity collection.
type Resource[T any, PT EntityPtr[T]] struct {
	// Name is the collection segment in the route, e.g. "customers".
	Name string

	// Duplicate probes for an existing row that would collide with the
	// candidate on its natural key, for a friendly 409 before the insert.
	Duplicate func(db *gorm.DB, candidate *T) *gorm.DB
	// DuplicateMessage is the conflict body text.
	DuplicateMessage string

	// Relations maps relation route segments to their link behavior.
	Relations map[string]Relation[T]

	schema *odata.EntitySchema
	deps   *Deps
}

// NewResource registers the entity's query schema and returns a resource
// bound to the shared dependencies.
func NewResource[T any, PT EntityPtr[T]](name string, deps *Deps) *Resource[T, PT] {
	return &Resource[T, PT]{
		Name:   name,
		schema: odata.Register(new(T)),
		deps:   deps,
	}
}

// Register mounts the collection's routes on the group. MERGE is accepted
// as an alias for PATCH.
func (r *Resource[T, PT]) Register(g *echo.Group) {
	g.GET("/"+r.Name, r.List)
	g.POST("/"+r.Name, r.Create)
	g.GET("/"+r.Name+"/:id", r.Get)
	g.PATCH("/"+r.Name+"/:id", r.Patch)
	g.Add("MERGE", "/"+r.Name+"/:id", r.Patch)
	g.PUT("/"+r.Name+"/:id", r.Put)
	g.DELETE("/"+r.Name+"/:id", r.Delete)
	g.POST("/"+r.Name+"/:id/$ref", r.CreateRef)
	g.PUT("/"+r.Name+"/:id/$ref", r.CreateRef)
	g.DELETE("/"+r.Name+"/:id/$ref", r.DeleteRef)
	// Canonical-URI spelling, e.g. /customers(1)/addresses(3)/$ref after
	// the pre-routing rewrite
	g.POST("/"+r.Name+"/:id/:relation/$ref", r.CreateRef)
	g.PUT("/"+r.Name+"/:id/:relation/$ref", r.CreateRef)
	g.DELETE("/"+r.Name+"/:id/:relation/:relatedId/$ref", r.DeleteRef)
}

// relationName accepts the relation either as a path segment or as the
// relation query parameter.
func (r *Resource[T, PT]) relationName(c echo.Context) string {
	if rel := c.Param("relation"); rel != "" {
		return rel
	}
	return c.QueryParam("relation")
}

func (r *Resource[T, PT]) limits() odata.Limits {
	return odata.Limits{
		MaxExpansionDepth: r.deps.Config.Query.MaxExpansionDepth,
		DefaultTop:        r.deps.Config.Query.DefaultTop,
	}
}

func (r *Resource[T, PT]) repo() *store.Repository[T] {
	return store.NewRepository[T](database.GetDB())
}

// identity returns who to stamp on audit columns: the authenticated caller
// when the auth middleware set one, the service identity otherwise.
func (r *Resource[T, PT]) identity(c echo.Context) string {
	if id, ok := c.Get("identity").(string); ok && id != "" {
		return id
	}
	return r.deps.Config.Audit.SystemIdentity
}

func paramID(c echo.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid key %q", raw)
	}
	return uint(id), nil
}

// fail records an unexpected error and responds 500.
func (r *Resource[T, PT]) fail(c echo.Context, operation string, err error) error {
	r.deps.Tracker.TrackException(r.Name+"."+operation, err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
}

// List retrieves the collection, honoring the query options. An empty
// result set is a 404, not an empty array.
func (r *Resource[T, PT]) List(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation(r.Name, "list")

	opts, err := odata.ParseOptions(c.QueryParams(), r.schema, r.limits())
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	defer prometheus.TrackDBOperation("select")(time.Now())
	repo := r.repo()
	items, err := repo.List(c.Request().Context(), opts)
	if err != nil {
		return r.fail(c, "list", err)
	}
	if len(items) == 0 {
		log.Info("No entities matched the query", zap.String("entity", r.Name))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "No " + r.Name + " found"})
	}

	if opts.Count {
		total, err := repo.Count(c.Request().Context(), opts)
		if err != nil {
			return r.fail(c, "list", err)
		}
		return c.JSON(http.StatusOK, echo.Map{"count": total, "value": items})
	}
	return c.JSON(http.StatusOK, items)
}

// Get retrieves one entity by key, honoring $select and $expand.
func (r *Resource[T, PT]) Get(c echo.Context) error {
	prometheus.RecordEntityOperation(r.Name, "get")

	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	opts, err := odata.ParseOptions(c.QueryParams(), r.schema, r.limits())
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	defer prometheus.TrackDBOperation("select")(time.Now())
	entity, err := r.repo().Get(c.Request().Context(), id, opts)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": r.Name + " not found"})
		}
		return r.fail(c, "get", err)
	}
	return c.JSON(http.StatusOK, entity)
}

// Create inserts a new entity. Keys and audit columns in the body are
// ignored; the service assigns both.
func (r *Resource[T, PT]) Create(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation(r.Name, "create")

	entity := new(T)
	if err := c.Bind(entity); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(entity); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	repo := r.repo()
	if r.Duplicate != nil {
		exists, err := repo.Any(c.Request().Context(), func(db *gorm.DB) *gorm.DB {
			return r.Duplicate(db, entity)
		})
		if err != nil {
			return r.fail(c, "create", err)
		}
		if exists {
			return c.JSON(http.StatusConflict, echo.Map{"error": r.DuplicateMessage})
		}
	}

	p := PT(entity)
	// Keys come from the store, never from the body
	p.SetID(0)
	p.AuditRef().StampCreate(r.identity(c), time.Now().UTC())

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := repo.Create(c.Request().Context(), entity); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return c.JSON(http.StatusConflict, echo.Map{"error": r.DuplicateMessage})
		}
		return r.fail(c, "create", err)
	}

	log.Info("Entity created",
		zap.String("entity", r.Name),
		zap.Uint("id", p.GetID()))
	r.deps.Events.Publish(r.Name, "created", p.GetID(), entity)
	return c.JSON(http.StatusCreated, entity)
}

// Patch applies a partial update. Only writable scalar fields may appear in
// the delta; an empty delta still advances the last-updated stamp.
func (r *Resource[T, PT]) Patch(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation(r.Name, "patch")

	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}

	repo := r.repo()
	entity, err := repo.Get(c.Request().Context(), id, nil)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": r.Name + " not found"})
		}
		return r.fail(c, "patch", err)
	}

	if err := applyDelta(entity, body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := c.Validate(entity); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	p := PT(entity)
	loadedStamp := p.AuditRef().LastUpdatedDatetime
	p.AuditRef().StampUpdate(r.identity(c), time.Now().UTC())

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := repo.Update(c.Request().Context(), id, loadedStamp, entity); err != nil {
		return r.writeFailure(c, "patch", id, err)
	}

	log.Info("Entity updated",
		zap.String("entity", r.Name),
		zap.Uint("id", id))
	r.deps.Events.Publish(r.Name, "updated", id, entity)
	return c.JSON(http.StatusOK, entity)
}

// Put replaces the entity. The inserted audit pair survives the replace;
// everything else comes from the body.
func (r *Resource[T, PT]) Put(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation(r.Name, "put")

	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	entity := new(T)
	if err := c.Bind(entity); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(entity); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	repo := r.repo()
	existing, err := repo.Get(c.Request().Context(), id, nil)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": r.Name + " not found"})
		}
		return r.fail(c, "put", err)
	}

	prev := PT(existing).AuditRef()
	aud := PT(entity).AuditRef()
	aud.InsertedBy = prev.InsertedBy
	aud.InsertedDatetime = prev.InsertedDatetime
	aud.StampUpdate(r.identity(c), time.Now().UTC())

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := repo.Update(c.Request().Context(), id, prev.LastUpdatedDatetime, entity); err != nil {
		return r.writeFailure(c, "put", id, err)
	}

	updated, err := repo.Get(c.Request().Context(), id, nil)
	if err != nil {
		return r.fail(c, "put", err)
	}

	log.Info("Entity replaced",
		zap.String("entity", r.Name),
		zap.Uint("id", id))
	r.deps.Events.Publish(r.Name, "updated", id, updated)
	return c.JSON(http.StatusOK, updated)
}

// writeFailure maps update failures: a stale stamp is a 404 when the row is
// gone and a 409 when it was modified underneath the caller.
func (r *Resource[T, PT]) writeFailure(c echo.Context, operation string, id uint, err error) error {
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return c.JSON(http.StatusConflict, echo.Map{"error": r.DuplicateMessage})
	case errors.Is(err, store.ErrStale):
		exists, checkErr := r.repo().Exists(c.Request().Context(), id)
		if checkErr != nil {
			return r.fail(c, operation, checkErr)
		}
		if !exists {
			return c.JSON(http.StatusNotFound, echo.Map{"error": r.Name + " not found"})
		}
		return c.JSON(http.StatusConflict, echo.Map{"error": "Entity was modified concurrently"})
	default:
		return r.fail(c, operation, err)
	}
}

// Delete removes the entity.
func (r *Resource[T, PT]) Delete(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation(r.Name, "delete")

	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	repo := r.repo()
	entity, err := repo.Get(c.Request().Context(), id, nil)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": r.Name + " not found"})
		}
		return r.fail(c, "delete", err)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := repo.Delete(c.Request().Context(), entity); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": r.Name + " not found"})
		}
		return r.fail(c, "delete", err)
	}

	log.Info("Entity deleted",
		zap.String("entity", r.Name),
		zap.Uint("id", id))
	r.deps.Events.Publish(r.Name, "deleted", id, nil)
	return c.NoContent(http.StatusNoContent)
}

// refBody is the payload of a link request.
type refBody struct {
	ODataID string `json:"@odata.id"`
}

// CreateRef links an existing related entity to the owner. The related
// entity is identified by its canonical URI in the body.
func (r *Resource[T, PT]) CreateRef(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation(r.Name, "link")

	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	relation := r.relationName(c)
	rel, ok := r.Relations[relation]
	if !ok || rel.Link == nil {
		return c.JSON(http.StatusNotImplemented,
			echo.Map{"error": "Linking " + relation + " is not supported"})
	}

	owner, err := r.repo().Get(c.Request().Context(), id, nil)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": r.Name + " not found"})
		}
		return r.fail(c, "link", err)
	}

	var body refBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	_, key, err := r.deps.Resolver.KeyFromURI(body.ODataID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	if err := rel.Link(database.GetDB(), owner, key); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": relation + " target not found"})
		}
		return r.fail(c, "link", err)
	}

	log.Info("Entities linked",
		zap.String("entity", r.Name),
		zap.Uint("id", id),
		zap.String("relation", relation),
		zap.Uint("related_id", key))
	r.deps.Events.Publish(r.Name, "linked", id, echo.Map{"relation": relation, "related_id": key})
	return c.NoContent(http.StatusNoContent)
}

// DeleteRef removes a relationship link. Collections without unlink support
// respond 501.
func (r *Resource[T, PT]) DeleteRef(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation(r.Name, "unlink")

	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	relation := r.relationName(c)
	rel, ok := r.Relations[relation]
	if !ok || rel.Unlink == nil {
		return c.JSON(http.StatusNotImplemented,
			echo.Map{"error": "Unlinking " + relation + " is not supported"})
	}
	rawRelated := c.Param("relatedId")
	if rawRelated == "" {
		rawRelated = c.QueryParam("relatedKey")
	}
	related, err := strconv.ParseUint(rawRelated, 10, 32)
	if err != nil || related == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": fmt.Sprintf("invalid key %q", rawRelated)})
	}
	relatedID := uint(related)

	owner, err := r.repo().Get(c.Request().Context(), id, nil)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": r.Name + " not found"})
		}
		return r.fail(c, "unlink", err)
	}

	if err := rel.Unlink(database.GetDB(), owner, relatedID); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": relation + " target not found"})
		}
		return r.fail(c, "unlink", err)
	}

	log.Info("Entities unlinked",
		zap.String("entity", r.Name),
		zap.Uint("id", id),
		zap.String("relation", relation),
		zap.Uint("related_id", relatedID))
	r.deps.Events.Publish(r.Name, "unlinked", id, echo.Map{"relation": relation, "related_id": relatedID})
	return c.NoContent(http.StatusNoContent)
}
