// Package httpapi serves a backing store to remote peers. It is a thin
// record gateway: all game interpretation stays client-side.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mpetrov/armada/internal/game"
	"github.com/mpetrov/armada/internal/store"
	"github.com/mpetrov/armada/pkg/types"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, store.ErrCodeTaken), errors.Is(err, store.ErrSlotTaken):
		code = http.StatusConflict
	}
	writeJSON(w, code, types.ErrorBody{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, types.ErrorBody{Error: "bad json"})
		return false
	}
	return true
}

func CreateSession(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sess game.Session
		if !decode(w, r, &sess) {
			return
		}
		if sess.ID == "" || sess.Code == "" ||
			sess.PlayerCapacity < game.MinCapacity || sess.PlayerCapacity > game.MaxCapacity {
			writeJSON(w, http.StatusBadRequest, types.ErrorBody{Error: "invalid session record"})
			return
		}
		if err := st.CreateSession(r.Context(), sess); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	}
}

func SessionByCode(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := st.SessionByCode(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func GetSession(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := st.Session(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func UpdateSession(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sess game.Session
		if !decode(w, r, &sess) {
			return
		}
		sess.ID = chi.URLParam(r, "id")
		if err := st.UpdateSession(r.Context(), sess); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func CreatePlayer(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p game.Player
		if !decode(w, r, &p) {
			return
		}
		p.SessionID = chi.URLParam(r, "id")
		if err := st.CreatePlayer(r.Context(), p); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func UpdatePlayer(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p game.Player
		if !decode(w, r, &p) {
			return
		}
		p.SessionID = chi.URLParam(r, "id")
		if err := st.UpdatePlayer(r.Context(), p); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func ListPlayers(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		players, err := st.Players(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, players)
	}
}

func DeletePlayers(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.DeletePlayers(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func AppendShot(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var s game.Shot
		if !decode(w, r, &s) {
			return
		}
		s.SessionID = chi.URLParam(r, "id")
		if err := st.AppendShot(r.Context(), s); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, s)
	}
}

func ListShots(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shots, err := st.Shots(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, shots)
	}
}

func DeleteShots(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.DeleteShots(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func PublishPresence(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p store.Presence
		if !decode(w, r, &p) {
			return
		}
		p.SessionID = chi.URLParam(r, "id")
		if err := st.PublishPresence(r.Context(), p); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func GetSnapshot(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := st.Snapshot(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
