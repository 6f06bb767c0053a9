package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/tasks"
	"dwellers.ai/internal/sim/world"
)

// taskBody is the JSON accepted by POST /v1/tasks.
type taskBody struct {
	Kind      tasks.Kind         `json:"kind"`
	Priority  int                `json:"priority"`
	Targets   [][2]int           `json:"targets"`
	Materials []string           `json:"materials,omitempty"`
	Result    *tasks.BuildResult `json:"result,omitempty"`
	Mob       string             `json:"mob,omitempty"`
}

func (b taskBody) task() (*tasks.Task, error) {
	var target grid.Cell
	if len(b.Targets) > 0 {
		target = grid.Cell{X: b.Targets[0][0], Y: b.Targets[0][1]}
	} else if b.Kind != tasks.KindHarvest {
		return nil, fmt.Errorf("%s needs a target", b.Kind)
	}
	var t *tasks.Task
	switch b.Kind {
	case tasks.KindWalk:
		t = tasks.NewWalk(target, b.Priority)
	case tasks.KindDig:
		t = tasks.NewDig(target, b.Priority)
	case tasks.KindChop:
		t = tasks.NewChop(target, b.Priority)
	case tasks.KindBuild:
		var res tasks.BuildResult
		if b.Result != nil {
			res = *b.Result
		}
		t = tasks.NewBuild(target, b.Priority, res, b.Materials...)
	case tasks.KindPickup:
		t = tasks.NewPickup(target, b.Priority)
	case tasks.KindStockpile:
		t = tasks.NewStockpile(target, b.Priority)
	case tasks.KindHarvest:
		if b.Mob == "" {
			return nil, fmt.Errorf("HARVEST needs a mob")
		}
		// The world retargets harvests to the mob's cell.
		t = tasks.NewHarvest(tasks.AgentID(b.Mob), target, b.Priority)
	default:
		return nil, fmt.Errorf("unknown task kind %q", b.Kind)
	}
	for _, c := range b.Targets[min(1, len(b.Targets)):] {
		t.Targets = append(t.Targets, grid.Cell{X: c[0], Y: c[1]})
	}
	return t, nil
}

type taskAPI struct {
	submit      chan<- world.TaskRequest
	allowRemote bool
	timeout     time.Duration
}

func (a *taskAPI) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !a.allowRemote && !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	var body taskBody
	dec := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(rw, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	t, err := body.task()
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}

	idCh := make(chan string, 1)
	timer := time.NewTimer(a.timeout)
	defer timer.Stop()
	select {
	case a.submit <- world.TaskRequest{Task: t, ID: idCh}:
	case <-r.Context().Done():
		return
	case <-timer.C:
		http.Error(rw, "world busy", http.StatusServiceUnavailable)
		return
	}
	select {
	case id := <-idCh:
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(rw).Encode(map[string]string{"id": id, "kind": string(t.Kind)})
	case <-r.Context().Done():
	case <-timer.C:
		http.Error(rw, "world busy", http.StatusServiceUnavailable)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
