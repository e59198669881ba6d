package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/deppfellow/crudrouter/internal/errs"
	"github.com/deppfellow/crudrouter/internal/repository"
	"github.com/deppfellow/crudrouter/internal/resource"
	"github.com/deppfellow/crudrouter/internal/schema"
	"github.com/labstack/echo/v4"
)

// TotalCountHeader carries the number of records matching a listing.
const TotalCountHeader = "X-Total-Count"

// Route is one synthesized endpoint.
type Route struct {
	Name    string
	Method  string
	Path    string
	Handler echo.HandlerFunc
}

// RouteSet holds the routes of one resource.
type RouteSet struct {
	Resource string
	Prefix   string
	Routes   []Route
}

// ListResponse is the body of a listing.
type ListResponse struct {
	Items    []map[string]any `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

type resourceHandler struct {
	Handler
	desc    *resource.Descriptor
	adapter repository.Adapter
	strict  bool
}

// Synthesize builds the LIST, GET, CREATE, UPDATE and DELETE routes of desc,
// persisting through adapter. Nothing is attached to a router here.
func Synthesize(h Handler, desc *resource.Descriptor, adapter repository.Adapter) RouteSet {
	rh := &resourceHandler{
		Handler: h,
		desc:    desc,
		adapter: adapter,
		strict:  desc.IsStrict(h.resources().StrictFields),
	}

	item := desc.Prefix + "/:id"
	paging := h.resources()
	newList := func() *listRequest {
		return &listRequest{desc: desc, defaultSize: paging.DefaultPageSize, maxSize: paging.MaxPageSize}
	}
	newID := func() *idRequest { return &idRequest{} }
	newCreate := func() *payloadRequest {
		return &payloadRequest{shape: desc.Create, opts: schema.Options{Strict: rh.strict}}
	}
	newUpdate := func() *payloadRequest {
		return &payloadRequest{withID: true, shape: desc.Update, opts: schema.Options{Partial: true, Strict: rh.strict}}
	}

	update := Handle(h, rh.update, http.StatusOK, newUpdate)
	return RouteSet{
		Resource: desc.Name,
		Prefix:   desc.Prefix,
		Routes: []Route{
			{Name: "list", Method: http.MethodGet, Path: desc.Prefix, Handler: Handle(h, rh.list, http.StatusOK, newList)},
			{Name: "create", Method: http.MethodPost, Path: desc.Prefix, Handler: Handle(h, rh.create, http.StatusCreated, newCreate)},
			{Name: "get", Method: http.MethodGet, Path: item, Handler: Handle(h, rh.get, http.StatusOK, newID)},
			{Name: "update", Method: http.MethodPut, Path: item, Handler: update},
			{Name: "patch", Method: http.MethodPatch, Path: item, Handler: update},
			{Name: "delete", Method: http.MethodDelete, Path: item, Handler: HandleNoContent(h, rh.delete, http.StatusNoContent, newID)},
		},
	}
}

// withSession runs fn inside a freshly acquired session and releases it on
// every exit path.
func withSession[T any](c echo.Context, adapter repository.Adapter, fn func(ctx context.Context, sess repository.Session) (T, error)) (T, error) {
	ctx := c.Request().Context()
	sess, err := adapter.Acquire(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	defer sess.Release()
	return fn(ctx, sess)
}

func (rh *resourceHandler) notFound(id int64, err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return errs.NewNotFoundError(fmt.Sprintf("%s %d not found", rh.desc.Name, id), true, nil)
	}
	return err
}

func (rh *resourceHandler) list(c echo.Context, req *listRequest) (*ListResponse, error) {
	page := repository.Page{Number: req.page, Size: req.pageSize}

	resp, err := withSession(c, rh.adapter, func(ctx context.Context, sess repository.Session) (*ListResponse, error) {
		total, err := rh.adapter.Count(ctx, sess, req.filter)
		if err != nil {
			return nil, err
		}
		recs, err := repository.Collect(rh.adapter.List(ctx, sess, req.filter, page))
		if err != nil {
			return nil, err
		}

		items := make([]map[string]any, len(recs))
		for i, rec := range recs {
			items[i] = rh.desc.Read.Project(rec)
		}
		return &ListResponse{Items: items, Total: total, Page: page.Number, PageSize: page.Size}, nil
	})
	if err != nil {
		return nil, err
	}

	c.Response().Header().Set(TotalCountHeader, strconv.FormatInt(resp.Total, 10))
	return resp, nil
}

func (rh *resourceHandler) get(c echo.Context, req *idRequest) (map[string]any, error) {
	rec, err := withSession(c, rh.adapter, func(ctx context.Context, sess repository.Session) (repository.Record, error) {
		return rh.adapter.Get(ctx, sess, req.id)
	})
	if err != nil {
		return nil, rh.notFound(req.id, err)
	}
	return rh.desc.Read.Project(rec), nil
}

func (rh *resourceHandler) create(c echo.Context, req *payloadRequest) (map[string]any, error) {
	rec, err := withSession(c, rh.adapter, func(ctx context.Context, sess repository.Session) (repository.Record, error) {
		id, err := rh.adapter.Create(ctx, sess, req.record)
		if err != nil {
			return nil, err
		}
		return rh.adapter.Get(ctx, sess, id)
	})
	if err != nil {
		return nil, err
	}
	return rh.desc.Read.Project(rec), nil
}

func (rh *resourceHandler) update(c echo.Context, req *payloadRequest) (map[string]any, error) {
	rec, err := withSession(c, rh.adapter, func(ctx context.Context, sess repository.Session) (repository.Record, error) {
		return rh.adapter.Update(ctx, sess, req.id, req.record)
	})
	if err != nil {
		return nil, rh.notFound(req.id, err)
	}
	return rh.desc.Read.Project(rec), nil
}

func (rh *resourceHandler) delete(c echo.Context, req *idRequest) error {
	existed, err := withSession(c, rh.adapter, func(ctx context.Context, sess repository.Session) (bool, error) {
		return rh.adapter.Delete(ctx, sess, req.id)
	})
	if err != nil {
		return err
	}
	if !existed {
		return rh.notFound(req.id, errs.ErrNotFound)
	}
	return nil
}

// idRequest carries the :id path parameter.
type idRequest struct {
	id int64
}

func (r *idRequest) Bind(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return schema.Errors{{Field: schema.IDField, Reason: "must be a positive integer"}}
	}
	r.id = id
	return nil
}

func (r *idRequest) Validate() error { return nil }

// payloadRequest carries a JSON object body, and the :id parameter when
// withID is set. Validate leaves the normalized payload in record.
type payloadRequest struct {
	idRequest
	withID bool
	shape  schema.Schema
	opts   schema.Options
	raw    map[string]any
	record repository.Record
}

func (r *payloadRequest) Bind(c echo.Context) error {
	if r.withID {
		if err := r.idRequest.Bind(c); err != nil {
			return err
		}
	}

	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()

	var body map[string]any
	switch err := dec.Decode(&body); {
	case errors.Is(err, io.EOF):
	case err != nil:
		return schema.Errors{{Field: "body", Reason: "must be a JSON object"}}
	case dec.More():
		return schema.Errors{{Field: "body", Reason: "must contain a single JSON object"}}
	}
	if body == nil {
		body = map[string]any{}
	}
	r.raw = body
	return nil
}

func (r *payloadRequest) Validate() error {
	out, err := schema.Validate(r.raw, r.shape, r.opts)
	if err != nil {
		return err
	}
	r.record = out
	return nil
}

// listRequest carries pagination and equality filters from the query string.
// Query parameters that name no Read field are ignored; page and page_size
// are reserved (see resource.ReservedNames).
type listRequest struct {
	desc        *resource.Descriptor
	defaultSize int
	maxSize     int
	page        int
	pageSize    int
	filter      repository.Filter
	violations  schema.Errors
}

func (r *listRequest) Bind(c echo.Context) error {
	maxSize := r.maxSize
	r.page, r.pageSize = 1, r.defaultSize

	for name, values := range c.QueryParams() {
		if len(values) == 0 {
			continue
		}
		raw := values[0]

		switch name {
		case "page":
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				r.violations = append(r.violations, schema.Violation{Field: name, Reason: "must be an integer of at least 1"})
				continue
			}
			r.page = n
		case "page_size":
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxSize {
				r.violations = append(r.violations, schema.Violation{Field: name, Reason: fmt.Sprintf("must be an integer between 1 and %d", maxSize)})
				continue
			}
			r.pageSize = n
		default:
			f, ok := r.desc.Read.Field(name)
			if !ok {
				continue
			}
			v, err := f.ParseQuery(raw)
			if err != nil {
				r.violations = append(r.violations, schema.Violation{Field: name, Reason: err.Error()})
				continue
			}
			if r.filter == nil {
				r.filter = repository.Filter{}
			}
			r.filter[name] = v
		}
	}
	return nil
}

func (r *listRequest) Validate() error {
	if r.page > 1 && r.pageSize > 0 && r.page-1 > math.MaxInt/r.pageSize {
		r.violations = append(r.violations, schema.Violation{Field: "page", Reason: "is too large for the page size"})
	}
	if len(r.violations) == 0 {
		return nil
	}
	r.violations.Sort()
	return r.violations
}
