// Package http is the intra-cluster control-plane transport: a concrete
// transport.Messenger whose listener accepts HTTP/2 cleartext (h2c),
// grounded in the teacher's netServer/h2c wiring (ais/httpcommon.go).
/*
 * Copyright (c) 2026, crmjoind contributors. All rights reserved.
 */
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/nrwahl2/crmjoind/cluster"
	"github.com/nrwahl2/crmjoind/cmn"
	"github.com/nrwahl2/crmjoind/transport"
)

const (
	pathOffer   = "/v1/join/offer"
	pathRequest = "/v1/join/request"
	pathAckNak  = "/v1/join/acknak"
	pathConfirm = "/v1/join/confirm"
)

// netServer pairs an http.Server with the gorilla router that backs it,
// same split as the teacher's netServer/mux.ServeMux pair.
type netServer struct {
	s   *http.Server
	mux *mux.Router
}

func (n *netServer) listenAndServe(addr string) error {
	n.s = &http.Server{Addr: addr, Handler: h2c.NewHandler(n.mux, &http2.Server{})}
	if err := n.s.ListenAndServe(); err != nil {
		if err != http.ErrServerClosed {
			glog.Errorf("transport/http: server on %s terminated, err: %v", addr, err)
			return err
		}
	}
	return nil
}

func (n *netServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.s.Shutdown(ctx); err != nil {
		glog.Infof("transport/http: stopped server, err: %v", err)
	}
}

// Transport is the control-plane listener + outbound client that
// implements transport.Messenger. The listener serves HTTP/2 cleartext
// (h2c) as well as HTTP/1.1; outbound messages go through a default
// net/http client, which posts to http:// addresses over HTTP/1.1, not
// h2c. It also hosts the
// rungroup-compatible lifecycle (cmn.Runner) so cmd/crmjoind can start
// it alongside the join coordinator's own event loop.
type Transport struct {
	cmn.Named

	addr     string
	server   *netServer
	client   *http.Client
	resolver func(cluster.NodeName) (addr string, ok bool)

	onRequest func(transport.JoinRequest)
	onConfirm func(transport.JoinConfirm)
}

// New constructs a Transport listening on addr; resolver maps a peer
// name to its control-plane address (the cluster-membership layer's
// concern, out of scope here).
func New(addr string, resolver func(cluster.NodeName) (string, bool)) *Transport {
	t := &Transport{
		addr:     addr,
		resolver: resolver,
		client:   &http.Client{Timeout: cmn.GCO.Get().Timeout.CplaneOperation},
	}
	r := mux.NewRouter()
	r.HandleFunc(pathRequest, t.handleRequest).Methods(http.MethodPost)
	r.HandleFunc(pathConfirm, t.handleConfirm).Methods(http.MethodPost)
	t.server = &netServer{mux: r}
	return t
}

func (t *Transport) OnRequest(fn func(transport.JoinRequest)) { t.onRequest = fn }
func (t *Transport) OnConfirm(fn func(transport.JoinConfirm)) { t.onConfirm = fn }

func (t *Transport) Run() error {
	glog.Infof("transport/http: listening on %s", t.addr)
	return t.server.listenAndServe(t.addr)
}

func (t *Transport) Stop(err error) {
	glog.Infof("transport/http: stopping, err: %v", err)
	t.server.shutdown()
}

func (t *Transport) handleRequest(w http.ResponseWriter, r *http.Request) {
	var msg transport.JoinRequest
	if !decodeJSON(w, r, &msg) {
		return
	}
	if t.onRequest != nil {
		t.onRequest(msg)
	}
	w.WriteHeader(http.StatusOK)
}

func (t *Transport) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var msg transport.JoinConfirm
	if !decodeJSON(w, r, &msg) {
		return
	}
	if t.onConfirm != nil {
		t.onConfirm(msg)
	}
	w.WriteHeader(http.StatusOK)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := jsonAPI.NewDecoder(r.Body).Decode(v); err != nil {
		glog.Errorf("transport/http: failed to decode request from %s, err: %v", r.RemoteAddr, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
