package http

import (
	"bytes"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/nrwahl2/crmjoind/cluster"
	"github.com/nrwahl2/crmjoind/transport"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func (t *Transport) SendOffer(to cluster.NodeName, msg transport.JoinOffer) error {
	return t.post(to, pathOffer, msg)
}

func (t *Transport) SendAckNak(to cluster.NodeName, msg transport.JoinAckNak) error {
	return t.post(to, pathAckNak, msg)
}

func (t *Transport) post(to cluster.NodeName, path string, msg interface{}) error {
	addr, ok := t.resolver(to)
	if !ok {
		return fmt.Errorf("transport/http: no address for %s", to)
	}
	body, err := jsonAPI.Marshal(msg)
	if err != nil {
		return err
	}
	resp, err := t.client.Post("http://"+addr+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var errBody struct{ Error string }
		_ = jsonAPI.NewDecoder(resp.Body).Decode(&errBody)
		return fmt.Errorf("transport/http: %s responded %d: %s", to, resp.StatusCode, errBody.Error)
	}
	return nil
}
