package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cloudkeep/poolkeeper/pkg/poolerr"
	"github.com/cloudkeep/poolkeeper/pkg/types"
)

// resourceEnvelope is the request/response wrapper all resource endpoints
// use: a single `resource` object keyed by its attribute names.
type resourceEnvelope struct {
	Resource map[string]interface{} `json:"resource"`
}

// updateRequest is the PUT body. Only `allocated` drives a transition;
// every other field is server-owned and ignored.
type updateRequest struct {
	Resource struct {
		Allocated *bool `json:"allocated"`
	} `json:"resource"`
}

func (s *Server) listVersions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"versions": []string{"v1"}})
}

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"collections": []string{"drivers", "resources"}})
}

func (s *Server) listDrivers(w http.ResponseWriter, r *http.Request) {
	names := s.manager.DriverNames()
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]interface{}{"drivers": names})
}

func (s *Server) showDriver(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	schema, err := s.manager.Schema(name)
	if err != nil {
		writeError(w, err)
		return
	}
	schema.Driver = name
	writeJSON(w, http.StatusOK, map[string]interface{}{"driver": schema})
}

func (s *Server) listResources(w http.ResponseWriter, r *http.Request) {
	search, err := searchFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	resources, err := s.manager.List(search)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resources": resources})
}

func (s *Server) createResource(w http.ResponseWriter, r *http.Request) {
	var body resourceEnvelope
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, poolerr.InvalidInput("invalid request body: %s", err.Error()))
		return
	}
	if body.Resource == nil {
		writeError(w, poolerr.InvalidInput("request body must contain a resource object"))
		return
	}
	driverName, _ := body.Resource["driver"].(string)
	if driverName == "" {
		writeError(w, poolerr.InvalidInput("resource.driver is required"))
		return
	}
	values := make(map[string]interface{}, len(body.Resource))
	for k, v := range body.Resource {
		if k == "driver" {
			continue
		}
		values[k] = v
	}
	resource, err := s.manager.Add(driverName, values)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resource": resource})
}

func (s *Server) showResource(w http.ResponseWriter, r *http.Request) {
	resource, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resource": resource})
}

func (s *Server) updateResource(w http.ResponseWriter, r *http.Request) {
	var body updateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, poolerr.InvalidInput("invalid request body: %s", err.Error()))
		return
	}
	if body.Resource.Allocated == nil {
		writeError(w, poolerr.InvalidInput("resource.allocated is required"))
		return
	}

	id := chi.URLParam(r, "id")
	var resource *types.Resource
	var err error
	if *body.Resource.Allocated {
		resource, err = s.manager.Allocate(id)
	} else {
		resource, err = s.manager.Deallocate(id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resource": resource})
}

func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request) {
	force := strings.EqualFold(r.URL.Query().Get("force"), "true")
	if err := s.manager.Delete(chi.URLParam(r, "id"), force); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// searchFromQuery translates list query parameters into a Search, keeping
// limit/offset out of the filter predicates.
func searchFromQuery(r *http.Request) (types.Search, error) {
	q := r.URL.Query()
	search := types.Search{}
	search.Filter.Driver = q.Get("driver")
	search.Filter.Class = q.Get("class")

	for _, s := range q["status"] {
		search.Filter.Statuses = append(search.Filter.Statuses, types.Status(strings.ToUpper(s)))
	}
	if pool := q.Get("pool"); pool != "" {
		search.Filter.Pool = types.StringPtr(pool)
	}

	boolFields := map[string]**bool{
		"unused":     &search.Filter.Unused,
		"allocated":  &search.Filter.Allocated,
		"processing": &search.Filter.Processing,
	}
	for name, dst := range boolFields {
		if raw := q.Get(name); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return search, poolerr.InvalidInput("%s must be a boolean, got %q", name, raw)
			}
			*dst = types.BoolPtr(v)
		}
	}

	intFields := map[string]*int{"limit": &search.Limit, "offset": &search.Offset}
	for name, dst := range intFields {
		if raw := q.Get(name); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 0 {
				return search, poolerr.InvalidInput("%s must be a non-negative integer, got %q", name, raw)
			}
			*dst = v
		}
	}
	return search, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP status codes: NotFound to
// 404, InvalidInput to 400, Conflict to 409, anything else to 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var notFound *poolerr.NotFoundError
	var invalid *poolerr.InvalidInputError
	var conflict *poolerr.ConflictError
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &invalid):
		status = http.StatusBadRequest
	case errors.As(err, &conflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}
