package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/signalsfoundry/impact-globe/internal/hazardmap"
	"github.com/signalsfoundry/impact-globe/internal/logging"
	"github.com/signalsfoundry/impact-globe/internal/session"
	"github.com/signalsfoundry/impact-globe/model"
)

const maxBodyBytes = 1 << 20

// sceneAPI exposes the host inputs of a session over HTTP.
type sceneAPI struct {
	sess *session.Session
	log  logging.Logger
}

type healthResponse struct {
	Status   string `json:"status"`
	Session  string `json:"session"`
	Tier     string `json:"tier"`
	Degraded bool   `json:"degraded"`
	Frames   uint64 `json:"frames"`
}

type ticketResponse struct {
	Generation uint64 `json:"generation"`
}

type pickRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type pickResponse struct {
	Hit        bool                 `json:"hit"`
	Coordinate *model.GeoCoordinate `json:"coordinate,omitempty"`
}

// mapPickRequest is a click on the flat hazard map. Apply moves the
// impact site to the clicked coordinate.
type mapPickRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Apply  bool    `json:"apply"`
}

type mapPickResponse struct {
	Coordinate  model.GeoCoordinate `json:"coordinate"`
	Zone        string              `json:"zone,omitempty"`
	DistanceKm  *float64            `json:"distance_km,omitempty"`
	ImpactPixel *[2]float64         `json:"impact_pixel,omitempty"`
}

func (a *sceneAPI) health(w http.ResponseWriter, r *http.Request) {
	code := http.StatusOK
	st := a.sess.Status()
	if st != session.StatusRunning {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{
		Status:   st.String(),
		Session:  a.sess.ID(),
		Tier:     string(a.sess.Profile().Tier),
		Degraded: a.sess.Degraded(),
		Frames:   a.sess.Frames(),
	})
}

func (a *sceneAPI) putImpact(w http.ResponseWriter, r *http.Request) {
	var c model.GeoCoordinate
	if !a.decode(w, r, &c) {
		return
	}
	a.respond(w, r, a.sess.SetImpactLocation(&c))
}

func (a *sceneAPI) deleteImpact(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, a.sess.SetImpactLocation(nil))
}

func (a *sceneAPI) putObject(w http.ResponseWriter, r *http.Request) {
	var o model.SelectedObject
	if !a.decode(w, r, &o) {
		return
	}
	a.respond(w, r, a.sess.SetSelectedObject(&o))
}

func (a *sceneAPI) deleteObject(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, a.sess.SetSelectedObject(nil))
}

func (a *sceneAPI) beginSimulation(w http.ResponseWriter, r *http.Request) {
	t := a.sess.BeginSimulation()
	writeJSON(w, http.StatusCreated, ticketResponse{Generation: t.Generation()})
}

func (a *sceneAPI) deliverSimulation(w http.ResponseWriter, r *http.Request) {
	gen, err := strconv.ParseUint(mux.Vars(r)["generation"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "generation must be an unsigned integer")
		return
	}
	var res model.SimulationResult
	if !a.decode(w, r, &res) {
		return
	}
	a.respond(w, r, a.sess.DeliverSimulationResult(session.TicketFor(gen), &res))
}

func (a *sceneAPI) hazard(w http.ResponseWriter, r *http.Request) {
	overlay, err := a.sess.HazardOverlay()
	if err != nil {
		a.respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overlay)
}

func (a *sceneAPI) pick(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if !a.decode(w, r, &req) {
		return
	}
	c, hit, err := a.sess.PickPixel(req.X, req.Y)
	if err != nil {
		a.respond(w, r, err)
		return
	}
	resp := pickResponse{Hit: hit}
	if hit {
		resp.Coordinate = &c
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *sceneAPI) mapPick(w http.ResponseWriter, r *http.Request) {
	var req mapPickRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		writeError(w, http.StatusBadRequest, "width and height must be positive")
		return
	}
	proj := hazardmap.Projection{Width: req.Width, Height: req.Height}
	c := proj.ToGeo(req.X, req.Y)
	if req.Apply {
		if err := a.sess.SetImpactLocation(&c); err != nil {
			a.respond(w, r, err)
			return
		}
	}

	resp := mapPickResponse{Coordinate: c}
	overlay, err := a.sess.HazardOverlay()
	switch {
	case errors.Is(err, hazardmap.ErrNoResult):
	case err != nil:
		a.respond(w, r, err)
		return
	default:
		d := hazardmap.DistanceKm(overlay.Center, c)
		resp.DistanceKm = &d
		if zone, ok := overlay.Classify(c); ok {
			resp.Zone = zone.Kind.String()
		}
		x, y := proj.ToPixel(overlay.Center)
		resp.ImpactPixel = &[2]float64{x, y}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *sceneAPI) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// respond maps session errors onto HTTP status codes.
func (a *sceneAPI) respond(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, model.ErrInvalidCoordinate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, hazardmap.ErrNoResult):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrStaleResult), errors.Is(err, session.ErrProfileLocked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrClosed), errors.Is(err, session.ErrContextUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		a.log.Error(r.Context(), "request failed", logging.String("path", r.URL.Path), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
