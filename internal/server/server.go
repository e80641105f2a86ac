// Package server exposes a types.Backend over HTTP: JSON endpoints for
// reads and writes, a websocket endpoint streaming listener snapshots, and
// the demo bootstrap snapshot.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/access"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

const (
	maxBodyBytes     = 1 << 20
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	pingInterval     = 30 * time.Second
	frameBuffer      = 16
)

// Server serves one backend.
type Server struct {
	backend       types.Backend
	bootstrapFile string
	upgrader      websocket.Upgrader
	router        chi.Router
}

// New returns a Server for backend. bootstrapFile, when set, is served at
// BootstrapPath as the demo snapshot.
func New(backend types.Backend, bootstrapFile string) *Server {
	s := &Server{
		backend:       backend,
		bootstrapFile: bootstrapFile,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)

	r.Get(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get(BootstrapPath, s.bootstrap)
	r.Get(WatchPath, s.watch)
	r.Post(QueryPath, s.query)
	r.Route(strings.TrimSuffix(DocsPrefix, "/"), func(r chi.Router) {
		r.Get("/*", s.getDoc)
		r.Put("/*", s.setDoc)
		r.Patch("/*", s.updateDoc)
		r.Delete("/*", s.deleteDoc)
	})
	r.Post(CollectionsPrefix+"*", s.create)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		glog.V(1).Infof("%s %s %d %s [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.V(1).Infof("writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, ae *types.AccessError) {
	writeJSON(w, StatusFor(ae.Code), ErrorResponse{Error: ErrorBody{Code: ae.Code, Message: ae.Message}})
}

func docLocator(r *http.Request) (types.Locator, error) {
	return types.Doc(wildcard(r))
}

func wildcard(r *http.Request) string {
	p := chi.URLParam(r, "*")
	if u, err := url.PathUnescape(p); err == nil {
		return u
	}
	return p
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxBodyBytes {
		return nil, errors.New("request body too large")
	}
	return data, nil
}

func (s *Server) getDoc(w http.ResponseWriter, r *http.Request) {
	loc, err := docLocator(r)
	if err != nil {
		writeError(w, access.Classify(types.OpGet, loc, err))
		return
	}
	snap, err := s.backend.GetDoc(r.Context(), loc)
	if err != nil {
		writeError(w, access.Classify(types.OpGet, loc, err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) setDoc(w http.ResponseWriter, r *http.Request) {
	loc, err := docLocator(r)
	if err == nil {
		var body []byte
		if body, err = readBody(r); err == nil {
			err = s.backend.Set(r.Context(), loc, body)
		}
	}
	if err != nil {
		writeError(w, access.Classify(types.OpUpdate, loc, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateDoc(w http.ResponseWriter, r *http.Request) {
	loc, err := docLocator(r)
	if err == nil {
		var body []byte
		if body, err = readBody(r); err == nil {
			var fields map[string]any
			if err = json.Unmarshal(body, &fields); err == nil {
				err = s.backend.Update(r.Context(), loc, fields)
			}
		}
	}
	if err != nil {
		writeError(w, access.Classify(types.OpUpdate, loc, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteDoc(w http.ResponseWriter, r *http.Request) {
	loc, err := docLocator(r)
	if err == nil {
		err = s.backend.Delete(r.Context(), loc)
	}
	if err != nil {
		writeError(w, access.Classify(types.OpDelete, loc, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	loc, err := types.Collection(wildcard(r))
	var id string
	if err == nil {
		var body []byte
		if body, err = readBody(r); err == nil {
			id, err = s.backend.Create(r.Context(), loc, body)
		}
	}
	if err != nil {
		writeError(w, access.Classify(types.OpCreate, loc, err))
		return
	}
	writeJSON(w, http.StatusCreated, CreateResponse{ID: id})
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var loc types.Locator
	body, err := readBody(r)
	if err == nil {
		err = json.Unmarshal(body, &loc)
	}
	if err == nil && loc.IsDoc() {
		err = types.ErrNotCollection
	}
	if err != nil {
		writeError(w, access.Classify(types.OpList, loc, err))
		return
	}
	snap, err := s.backend.GetQuery(r.Context(), loc)
	if err != nil {
		writeError(w, access.Classify(types.OpList, loc, err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) bootstrap(w http.ResponseWriter, r *http.Request) {
	notFound := func(msg string) {
		writeError(w, &types.AccessError{Op: types.OpGet, Path: BootstrapPath, Code: types.CodeNotFound, Message: msg})
	}
	if s.bootstrapFile == "" {
		notFound("no demo snapshot configured")
		return
	}
	if _, err := os.Stat(s.bootstrapFile); err != nil {
		glog.Warningf("demo snapshot: %v", err)
		notFound("demo snapshot unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, s.bootstrapFile)
}

// watch streams snapshots for the locator the client sends as its first
// message. The stream ends after an error frame or when either side closes.
func (s *Server) watch(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.V(1).Infof("watch upgrade: %v", err)
		return
	}
	defer ws.Close()

	var loc types.Locator
	ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
	if err := ws.ReadJSON(&loc); err != nil {
		ae := access.Classify(types.OpGet, loc, err)
		ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		ws.WriteJSON(Frame{Error: &ErrorBody{Code: types.CodeInvalidData, Message: ae.Message}})
		return
	}
	ws.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames := make(chan Frame, frameBuffer)
	push := func(f Frame) {
		select {
		case frames <- f:
		case <-ctx.Done():
		}
	}

	op := types.OpList
	var stop func()
	if loc.IsDoc() {
		op = types.OpGet
		stop = s.backend.WatchDoc(loc, func(d types.DocSnapshot) {
			push(Frame{Doc: &d})
		}, func(err error) {
			ae := access.Classify(op, loc, err)
			push(Frame{Error: &ErrorBody{Code: ae.Code, Message: ae.Message}})
		})
	} else {
		stop = s.backend.WatchQuery(loc, func(q types.QuerySnapshot) {
			push(Frame{Query: &q})
		}, func(err error) {
			ae := access.Classify(op, loc, err)
			push(Frame{Error: &ErrorBody{Code: ae.Code, Message: ae.Message}})
		})
	}
	defer stop()
	glog.V(1).Infof("watch %s started", loc)

	// The client sends nothing after the locator; reading only detects close.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			glog.V(1).Infof("watch %s closed", loc)
			return
		case f := <-frames:
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(f); err != nil {
				glog.V(1).Infof("watch %s write: %v", loc, err)
				return
			}
			if f.Error != nil {
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
