/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package inspectorws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
)

// targetInfo is one entry of the DevTools discovery document served at
// /json/list. Field names and casing follow the format DevTools-compatible
// front-ends expect.
type targetInfo struct {
	Description          string `json:"description"`
	DevtoolsFrontendURL  string `json:"devtoolsFrontendUrl"`
	ID                   string `json:"id"`
	Title                string `json:"title"`
	Type                 string `json:"type"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

type versionInfo struct {
	Browser         string `json:"Browser"`
	ProtocolVersion string `json:"Protocol-Version"`
}

func (s *Server) handleJSONList(w http.ResponseWriter, r *http.Request) {
	targets := make([]targetInfo, 0, 1)
	for _, id := range s.delegate.GetTargetIds() {
		wsURL := fmt.Sprintf("ws://%s/%s", r.Host, id)
		targets = append(targets, targetInfo{
			Description:          "inspectorbridge instance",
			DevtoolsFrontendURL:  fmt.Sprintf("devtools://devtools/bundled/js_app.html?experiments=true&v8only=true&ws=%s/%s", r.Host, id),
			ID:                   id,
			Title:                s.delegate.GetTargetTitle(id),
			Type:                 "node",
			URL:                  s.delegate.GetTargetUrl(id),
			WebSocketDebuggerURL: wsURL,
		})
	}
	writeJSON(w, targets)
}

func (s *Server) handleJSONVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, versionInfo{
		Browser:         "inspectorbridge/" + runtime.Version(),
		ProtocolVersion: "1.1",
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}
