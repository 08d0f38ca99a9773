package service

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kvcluster/raftkv/pkg/raftkverrors"
)

// NewRouter builds the HTTP+JSON transport over svc. healthMux supplies
// /healthz and /metrics; the caller wires it in since those are
// pkg/metrics's concern, not the KV operation set's.
func NewRouter(svc *Service, healthMux http.Handler) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/v1/kv/{key}", svc.handleSet).Methods(http.MethodPost)
	router.HandleFunc("/v1/kv/{key}", svc.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/v1/cluster/init", svc.handleInit).Methods(http.MethodPost)
	router.HandleFunc("/v1/cluster/learners", svc.handleAddLearner).Methods(http.MethodPost)
	router.HandleFunc("/v1/cluster/membership", svc.handleChangeMembership).Methods(http.MethodPost)
	router.HandleFunc("/v1/cluster/metrics", svc.handleMetrics).Methods(http.MethodGet)

	if healthMux != nil {
		router.PathPrefix("/").Handler(healthMux)
	}
	return router
}

type setRequestBody struct {
	Value string `json:"value"`
}

type setResponseBody struct {
	Value string `json:"value"`
}

func (s *Service) handleSet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var body setRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.Set(key, body.Value)
	if err != nil {
		writeError(w, err)
		return
	}

	var value string
	if resp.Value != nil {
		value = *resp.Value
	}
	writeJSON(w, http.StatusOK, setResponseBody{Value: value})
}

type getResponseBody struct {
	Value string `json:"value"`
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	value, err := s.Get(key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, getResponseBody{Value: value})
}

type initRequestBody struct {
	Peers map[string]string `json:"peers"`
}

func (s *Service) handleInit(w http.ResponseWriter, r *http.Request) {
	var body initRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Init(body.Peers); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addLearnerRequestBody struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

func (s *Service) handleAddLearner(w http.ResponseWriter, r *http.Request) {
	var body addLearnerRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.AddLearner(body.ID, body.Address); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changeMembershipRequestBody struct {
	Members map[string]string `json:"members"`
	Retain  bool              `json:"retain"`
}

func (s *Service) handleChangeMembership(w http.ResponseWriter, r *http.Request) {
	var body changeMembershipRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.ChangeMembership(body.Members, body.Retain); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.Metrics()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError maps a raftkverrors.Kind onto the HTTP status code the
// transport should return for it; an error of any other shape is treated
// as an unexpected internal failure.
func writeError(w http.ResponseWriter, err error) {
	kind, ok := raftkverrors.KindOf(err)
	if !ok {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	switch kind {
	case raftkverrors.NotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case raftkverrors.InvalidArgument:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case raftkverrors.NotLeader:
		http.Error(w, err.Error(), http.StatusMisdirectedRequest)
	case raftkverrors.Unavailable:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
