// Command crmjoind runs the Designated-Coordinator join protocol as a
// standalone daemon, the way ais/daemon.go's aisinit/Run pair host a
// proxy or target: parse flags, load config, assemble the rungroup,
// run until a runner exits or a signal arrives.
/*
 * Copyright (c) 2026, crmjoind contributors. All rights reserved.
 */
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"
	jsoniter "github.com/json-iterator/go"

	"github.com/nrwahl2/crmjoind/alerts"
	"github.com/nrwahl2/crmjoind/cib"
	"github.com/nrwahl2/crmjoind/cluster"
	"github.com/nrwahl2/crmjoind/cmn"
	"github.com/nrwahl2/crmjoind/fsm"
	"github.com/nrwahl2/crmjoind/join"
	httptransport "github.com/nrwahl2/crmjoind/transport/http"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	rJoin      = "join"
	rTransport = "transport"
	rSignal    = "signal"
)

type cliVars struct {
	name     string
	addr     string
	peers    string // comma-separated name=addr pairs, static seed membership
	config   cmn.ConfigCLI
	confjson string
	persist  bool
}

var clivars = &cliVars{}

func init() {
	flag.StringVar(&clivars.name, "name", "", "this node's cluster name")
	flag.StringVar(&clivars.addr, "addr", ":9191", "control-plane listen address")
	flag.StringVar(&clivars.peers, "peers", "", "comma-separated name=host:port seed membership")

	flag.StringVar(&clivars.config.ConfFile, "config", "", "config filename: local file that stores this daemon's configuration")
	flag.StringVar(&clivars.config.LogLevel, "loglevel", "", "log verbosity level (2 - minimal, 3 - default, 4 - super-verbose)")
	flag.StringVar(&clivars.config.FeatureSet, "featureset", "", "override this daemon's advertised feature-set version")
	flag.StringVar(&clivars.confjson, "confjson", "", `JSON formatted "{name: value, ...}" string to override selected knob(s)`)
	flag.BoolVar(&clivars.persist, "persist", false, "make config overrides permanent")
}

func main() {
	flag.Parse()
	cmn.AssertMsg(clivars.name != "", "Invalid flag: name must be set")

	changed := cmn.LoadConfig(&clivars.config)
	if clivars.confjson != "" {
		var nvmap cmn.SimpleKVs
		if err := jsonAPI.Unmarshal([]byte(clivars.confjson), &nvmap); err != nil {
			glog.Errorf("Failed to unmarshal JSON [%s], err: %v", clivars.confjson, err)
			os.Exit(1)
		}
		if v, ok := nvmap["feature_set"]; ok {
			config := cmn.GCO.BeginUpdate()
			config.Join.FeatureSet = v
			cmn.GCO.CommitUpdate(config)
			changed = true
		}
	}
	if changed && clivars.persist && clivars.config.ConfFile != "" {
		if err := cmn.LocalSave(clivars.config.ConfFile, cmn.GCO.Get()); err != nil {
			glog.Errorf("Failed to persist config, err: %v", err)
		}
	}

	local := cluster.NodeName(clivars.name)
	cache := cluster.NewPeerCache()
	cache.Put(&cluster.Peer{Name: local, IsActive: true, Expected: cluster.ExpectedMember})

	addrs := map[cluster.NodeName]string{local: clivars.addr}
	for _, pair := range strings.Split(clivars.peers, ",") {
		if pair == "" {
			continue
		}
		name, addr, ok := strings.Cut(pair, "=")
		if !ok {
			glog.Warningf("ignoring malformed -peers entry %q", pair)
			continue
		}
		n := cluster.NodeName(name)
		addrs[n] = addr
		if n != local {
			cache.Put(&cluster.Peer{Name: n, IsActive: true, Expected: cluster.ExpectedMember})
		}
	}
	resolver := func(n cluster.NodeName) (string, bool) {
		addr, ok := addrs[n]
		return addr, ok
	}

	tr := httptransport.New(clivars.addr, resolver)
	hosting := fsm.NewMemFSM(fsm.SIntegration)
	coord := join.NewCoordinator(join.Config{
		LocalName: local,
		Cache:     cache,
		CibClient: cib.NewMemClient(),
		Messenger: tr,
		Hosting:   hosting,
		AlertSink: alerts.GlogSink{},
	})
	svc := join.NewService(coord)

	rg := cmn.NewRunGroup()
	rg.Add(tr, rTransport)
	rg.Add(svc, rJoin)
	rg.Add(cmn.NewSigRunner(), rSignal)

	glog.Infof("crmjoind: %s listening on %s", local, clivars.addr)
	if err := rg.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "crmjoind: exited, err: %v\n", err)
		glog.Flush()
		os.Exit(1)
	}
}
