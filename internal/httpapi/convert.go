package httpapi

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/stockguard/server/internal/guard"
	"github.com/stockguard/server/internal/guard/store"
	"github.com/stockguard/server/internal/guard/types"
)

// Principal identity headers, set by the upstream auth proxy after token
// verification. This subsystem never sees raw tokens.
const (
	headerPrincipalID   = "X-Principal-Id"
	headerPrincipalRole = "X-Principal-Role"
)

func principalFrom(r *http.Request) (guard.Principal, bool) {
	id := strings.TrimSpace(r.Header.Get(headerPrincipalID))
	role := guard.Role(strings.TrimSpace(strings.ToLower(r.Header.Get(headerPrincipalRole))))

	if id == "" || (role != guard.RoleInitiator && role != guard.RoleAuthorizer) {
		return guard.Principal{}, false
	}
	return guard.Principal{ID: id, Role: role, SourceAddr: r.RemoteAddr}, true
}

// clearRequestView exposes artifact references as bare filenames: the
// snapshot ref doubles as a restore identifier and absolute server paths
// stay server-side.
func clearRequestView(rec store.ClearRequestRecord) types.ClearRequestView {
	v := types.ClearRequestView{
		ID:                      rec.ID,
		InitiatorID:             rec.InitiatorID,
		Status:                  string(rec.Status),
		InitiatorConfirmations:  rec.InitiatorConfirmations,
		AuthorizerConfirmations: rec.AuthorizerConfirmations,
		SnapshotRef:             filepath.Base(rec.SnapshotPath),
		ReportRef:               filepath.Base(rec.ReportPath),
		CreatedAt:               rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:               rec.UpdatedAt.Format(time.RFC3339),
	}
	if rec.CompletedAt != nil {
		v.CompletedAt = rec.CompletedAt.Format(time.RFC3339)
	}
	return v
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}
