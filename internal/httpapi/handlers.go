package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tagsrv/internal/hub"
	"github.com/DoyleJ11/tagsrv/internal/room"
	"github.com/DoyleJ11/tagsrv/internal/store"
)

const codeLen = 6

// GenerateCode returns a short upper-case room code.
func GenerateCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:codeLen])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func lookup(h *hub.Hub, code string) *room.Room {
	reply := make(chan *room.Room, 1)
	h.Inbox() <- hub.GetRoom{Code: code, Reply: reply}
	return <-reply
}

func CreateRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		var code string
		for {
			c := GenerateCode()
			if lookup(h, c) == nil {
				code = c
				break
			}
			log.Debug("collision on code, regenerating", zap.String("code", c))
		}

		reply := make(chan hub.CreateResult, 1)
		h.Inbox() <- hub.CreateRoom{Code: code, Mode: body.Mode, Reply: reply}
		res := <-reply
		if errors.Is(res.Err, room.ErrUnknownMode) {
			http.Error(w, res.Err.Error(), http.StatusBadRequest)
			return
		}
		if res.Err != nil || res.Room == nil {
			log.Error("create room", zap.Error(res.Err))
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			Code string `json:"code"`
			Mode string `json:"mode"`
		}{Code: code, Mode: res.Room.Mode()})
	}
}

func GetRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm := lookup(h, chi.URLParam(r, "code"))
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		reply := make(chan room.View, 1)
		select {
		case rm.Inbox() <- room.GetState{Reply: reply}:
		case <-rm.Done():
			http.Error(w, "room closed", http.StatusGone)
			return
		}
		select {
		case v := <-reply:
			writeJSON(w, http.StatusOK, v)
		case <-time.After(2 * time.Second):
			http.Error(w, "room busy", http.StatusServiceUnavailable)
		}
	}
}

func RecentRounds(rec store.Recorder, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		rounds, err := rec.RecentRounds(r.Context(), chi.URLParam(r, "code"), limit)
		if err != nil {
			log.Error("recent rounds", zap.Error(err))
			http.Error(w, "failed to load rounds", http.StatusInternalServerError)
			return
		}
		if rounds == nil {
			rounds = []store.Round{}
		}
		writeJSON(w, http.StatusOK, rounds)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
