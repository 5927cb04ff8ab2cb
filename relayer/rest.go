package relayer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forkedfinance/relayer/lib/store"
)

const (
	outcomesLimit    = 20
	outcomesLimitMax = 1000
)

// Errors returned to client requests.
var (
	ErrNoStore  = errors.New("outcomes are not stored: no database configured")
	ErrBadAddr  = errors.New("invalid address")
	ErrBadLimit = errors.New("invalid limit")
)

// Response defines the data structure returned to the client making the http request.
type Response struct {
	Body  interface{} `json:"body"`
	Error string      `json:"error,omitempty"`
}

// Health is the body replied by the health endpoint.
type Health struct {
	Listening bool `json:"listening"`
	Queue     int  `json:"queue"`
}

// router returns the routes of the status API.
func (r *Relayer) router() *mux.Router {
	m := mux.NewRouter()
	m.HandleFunc("/", r.homeHandler).Methods("GET")                          // liveness
	m.HandleFunc("/health", r.healthHandler).Methods("GET")                  // listener and queue status
	m.HandleFunc("/outcomes/{address}", r.outcomesHandler).Methods("GET")    // last outcomes of an address
	m.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})) // Prometheus

	return m
}

func reply(rw http.ResponseWriter, code int, res Response) {
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	rw.WriteHeader(code)

	if err := json.NewEncoder(rw).Encode(res); err != nil {
		log.Printf("[rest] Error encoding response: %v", err)
	}
}

// homeHandler replies the liveness message.
func (r *Relayer) homeHandler(rw http.ResponseWriter, req *http.Request) {
	reply(rw, http.StatusOK, Response{Body: "Oracle relayer running!"})
}

// healthHandler replies 200 when all the events are listened to and 503 otherwise.
func (r *Relayer) healthHandler(rw http.ResponseWriter, req *http.Request) {
	h := Health{Listening: r.ls.Listening(), Queue: r.q.Len()}

	code := http.StatusOK
	if !h.Listening {
		code = http.StatusServiceUnavailable
	}

	reply(rw, code, Response{Body: h})
}

// outcomesHandler replies the last outcomes of an address, newest first. Query ?limit=n sets how many.
func (r *Relayer) outcomesHandler(rw http.ResponseWriter, req *http.Request) {
	log.Printf("[rest] httpreq from %v %s", req.RemoteAddr, req.RequestURI)

	if r.rec.db == nil {
		reply(rw, http.StatusNotFound, Response{Error: ErrNoStore.Error()})

		return
	}

	addr := mux.Vars(req)["address"]
	if !common.IsHexAddress(addr) {
		reply(rw, http.StatusBadRequest, Response{Error: fmt.Sprintf("%s: %s", ErrBadAddr, addr)})

		return
	}

	limit := outcomesLimit

	if l := req.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 || n > outcomesLimitMax {
			reply(rw, http.StatusBadRequest, Response{Error: fmt.Sprintf("%s: %s", ErrBadLimit, l)})

			return
		}

		limit = n
	}

	outs, err := r.rec.db.GetOutcomes(common.HexToAddress(addr).Hex(), limit)

	switch {
	case errors.Is(err, store.ErrDataNotFound):
		reply(rw, http.StatusNotFound, Response{Error: err.Error()})
	case err != nil:
		reply(rw, http.StatusInternalServerError, Response{Error: err.Error()})
	default:
		reply(rw, http.StatusOK, Response{Body: outs})
	}
}
