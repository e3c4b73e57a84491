package handlers

import (
	"bufio"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apierrors "github.com/vitaliisemenov/msg-store/internal/api/errors"
	"github.com/vitaliisemenov/msg-store/internal/core"
)

// msgResponse is the insert/delete acknowledgement.
type msgResponse struct {
	UUID string `json:"uuid"`
}

// AddMsg handles POST /api/msg. The body is a header string, a literal
// '?', then the payload bytes: "priority=1?hello". Streamed uploads add
// saveToFile=true and bytesizeOverride to the header string; their bytes
// go to the blob store without buffering.
func (h *Handlers) AddMsg(w http.ResponseWriter, r *http.Request) {
	body := bufio.NewReader(r.Body)
	header, err := body.ReadString('?')
	if err != nil || !strings.HasSuffix(header, "?") {
		apierrors.WriteError(w, apierrors.ValidationError("body must be '<headers>?<payload>'"))
		return
	}
	values, err := url.ParseQuery(strings.TrimSuffix(header, "?"))
	if err != nil {
		apierrors.WriteError(w, apierrors.ValidationError("malformed header string"))
		return
	}

	rawPriority := values.Get("priority")
	if rawPriority == "" {
		apierrors.WriteError(w, apierrors.ValidationError("priority is required"))
		return
	}
	p, err := strconv.ParseUint(rawPriority, 10, 32)
	if err != nil || uint32(p) > core.MaxPriority {
		apierrors.WriteError(w, apierrors.ValidationError("priority must be an integer in [0, 2147483647]"))
		return
	}
	priority := uint32(p)

	var id core.ID
	if values.Get("saveToFile") == "true" {
		rawSize := values.Get("bytesizeOverride")
		if rawSize == "" {
			apierrors.WriteError(w, apierrors.ValidationError("bytesizeOverride is required with saveToFile"))
			return
		}
		declared, err := strconv.ParseUint(rawSize, 10, 64)
		if err != nil {
			apierrors.WriteError(w, apierrors.ValidationError("bytesizeOverride must be a non-negative integer"))
			return
		}
		id, err = h.store.AddStream(r.Context(), priority, declared, values.Get("fileName"), body)
		if err != nil {
			apierrors.WriteError(w, apierrors.FromStoreError(err))
			return
		}
	} else {
		payload, err := io.ReadAll(body)
		if err != nil {
			apierrors.WriteError(w, apierrors.ValidationError("failed to read payload"))
			return
		}
		id, err = h.store.Add(r.Context(), priority, payload)
		if err != nil {
			apierrors.WriteError(w, apierrors.FromStoreError(err))
			return
		}
	}

	writeJSON(w, msgResponse{UUID: id.String()})
}

// GetMsg handles GET /api/msg. Query parameters uuid, priority and
// reverse are all optional. The response body is the header string, a
// literal '?', then the payload; an empty body means no match.
func (h *Handlers) GetMsg(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var idPtr *core.ID
	if raw := q.Get("uuid"); raw != "" {
		id, err := core.ParseID(raw)
		if err != nil {
			apierrors.WriteError(w, apierrors.ValidationError("malformed uuid"))
			return
		}
		idPtr = &id
	}
	var priorityPtr *uint32
	if raw := q.Get("priority"); raw != "" {
		p, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || uint32(p) > core.MaxPriority {
			apierrors.WriteError(w, apierrors.ValidationError("priority must be an integer in [0, 2147483647]"))
			return
		}
		pp := uint32(p)
		priorityPtr = &pp
	}
	reverse := q.Get("reverse") == "true"

	msg, err := h.store.Get(r.Context(), priorityPtr, idPtr, reverse)
	if err != nil {
		if errors.Is(err, core.ErrMsgNotFound) {
			// A message can vanish between the index probe and the
			// payload fetch (concurrent delete or eviction).
			w.WriteHeader(http.StatusOK)
			return
		}
		apierrors.WriteError(w, apierrors.FromStoreError(err))
		return
	}
	if msg == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	headers := url.Values{}
	headers.Set("uuid", msg.ID.String())
	if msg.Blob {
		headers.Set("saveToFile", "true")
		headers.Set("bytesizeOverride", strconv.FormatUint(msg.Size, 10))
		if msg.FileName != "" {
			headers.Set("fileName", msg.FileName)
		}
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.WriteString(w, headers.Encode()+"?"); err != nil {
		return
	}
	if msg.Blob {
		blob, err := h.store.OpenBlob(r.Context(), msg.ID)
		if err != nil {
			h.logger.Warn("blob open failed mid-response", "uuid", msg.ID.String(), "error", err)
			return
		}
		defer blob.Close()
		if _, err := io.Copy(w, blob); err != nil {
			h.logger.Warn("blob stream interrupted", "uuid", msg.ID.String(), "error", err)
		}
		return
	}
	_, _ = w.Write(msg.Payload)
}

// DeleteMsg handles DELETE /api/msg?uuid=. Deleting an absent id is
// still a 200: the end state is the same.
func (h *Handlers) DeleteMsg(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("uuid")
	if raw == "" {
		apierrors.WriteError(w, apierrors.ValidationError("uuid is required"))
		return
	}
	id, err := core.ParseID(raw)
	if err != nil {
		apierrors.WriteError(w, apierrors.ValidationError("malformed uuid"))
		return
	}

	if err := h.store.Del(r.Context(), id); err != nil && !errors.Is(err, core.ErrMsgNotFound) {
		apierrors.WriteError(w, apierrors.FromStoreError(err))
		return
	}
	writeJSON(w, msgResponse{UUID: id.String()})
}
