package relay

import (
	"net/http"
	"testing"

	"github.com/eneris/battlemap/internal/battlemap"
)

func gqlQuery(t *testing.T, srv *Server, query string) map[string]interface{} {
	t.Helper()
	rec := doRequest(t, srv, http.MethodPost, "/graphql", map[string]interface{}{"query": query})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if errs, ok := body["errors"]; ok {
		t.Fatalf("graphql errors: %v", errs)
	}
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("no data in response: %v", body)
	}
	return data
}

func TestGraphQL_Battles(t *testing.T) {
	ctrl := &fakeController{battles: []battlemap.Battle{
		{ID: 1, Finished: 0, OwnBase: "a"},
		{ID: 2, Finished: 1, OwnBase: "b"},
	}}
	srv := newTestServer(t, ctrl)

	data := gqlQuery(t, srv, `{ battles { id finished ownBase } }`)
	battles := data["battles"].([]interface{})
	if len(battles) != 2 {
		t.Fatalf("battles = %v", battles)
	}
	first := battles[0].(map[string]interface{})
	if first["id"] != float64(1) || first["ownBase"] != "a" {
		t.Errorf("first battle = %v", first)
	}
}

func TestGraphQL_BattleDetailOnlyWhileUnfinished(t *testing.T) {
	ctrl := &fakeController{battles: []battlemap.Battle{
		{ID: 1, Finished: 0},
		{ID: 2, Finished: 1},
	}}
	srv := newTestServer(t, ctrl)

	data := gqlQuery(t, srv, `{ battles { id detail { id } } }`)
	battles := data["battles"].([]interface{})

	unfinished := battles[0].(map[string]interface{})
	if unfinished["detail"] == nil {
		t.Error("unfinished battle missing detail")
	}
	finished := battles[1].(map[string]interface{})
	if finished["detail"] != nil {
		t.Errorf("finished battle resolved a detail: %v", finished["detail"])
	}
}

func TestGraphQL_BaseDetail(t *testing.T) {
	srv := newTestServer(t, &fakeController{})

	data := gqlQuery(t, srv, `{ baseDetail(id: 9) { bs_id nm } }`)
	detail := data["baseDetail"].(map[string]interface{})
	if detail["bs_id"] != float64(9) {
		t.Errorf("bs_id = %v", detail["bs_id"])
	}
}

func TestGraphQL_PlayerBaseNesting(t *testing.T) {
	srv := newTestServer(t, &fakeController{})

	data := gqlQuery(t, srv, `{ playerDetail(id: 3) { uname base { bs_hsid } base_unique_id } }`)
	player := data["playerDetail"].(map[string]interface{})
	if player["uname"] != "p" {
		t.Errorf("uname = %v", player["uname"])
	}
	base := player["base"].(map[string]interface{})
	if base["bs_hsid"] != "hs99" {
		t.Errorf("nested base = %v", base)
	}
	if player["base_unique_id"] != "hs99" {
		t.Errorf("base_unique_id = %v", player["base_unique_id"])
	}
}

func TestGraphQL_Search(t *testing.T) {
	srv := newTestServer(t, &fakeController{})

	data := gqlQuery(t, srv, `{ search(term: "neo") { id name } }`)
	results := data["search"].([]interface{})
	if len(results) != 1 {
		t.Fatalf("results = %v", results)
	}
	if results[0].(map[string]interface{})["name"] != "neo" {
		t.Errorf("result = %v", results[0])
	}
}

func TestGraphQL_RawRequestWithFilter(t *testing.T) {
	ctrl := &fakeController{apiData: map[string]interface{}{
		"dt": []interface{}{map[string]interface{}{"id": float64(7)}},
	}}
	srv := newTestServer(t, ctrl)

	data := gqlQuery(t, srv, `{ request(operation: "/bases", filter: ".dt[0].id") }`)
	if data["request"] != float64(7) {
		t.Errorf("request = %v", data["request"])
	}
	if ctrl.lastEndpoint != "/bases" {
		t.Errorf("endpoint = %q", ctrl.lastEndpoint)
	}
}

func TestGraphQL_SendMessageMutation(t *testing.T) {
	ctrl := &fakeController{}
	srv := newTestServer(t, ctrl)

	data := gqlQuery(t, srv, `mutation { sendMessage(message: "hello") }`)
	if data["sendMessage"] != true {
		t.Errorf("sendMessage = %v", data["sendMessage"])
	}
	if len(ctrl.sentMessages) != 1 || ctrl.sentMessages[0] != "hello" {
		t.Errorf("sentMessages = %v", ctrl.sentMessages)
	}
}

func TestGraphQL_RestartMutation(t *testing.T) {
	ctrl := &fakeController{}
	srv := newTestServer(t, ctrl)

	data := gqlQuery(t, srv, `mutation { restart }`)
	if data["restart"] != true {
		t.Errorf("restart = %v", data["restart"])
	}
	if ctrl.inits != 1 {
		t.Errorf("inits = %d, want 1", ctrl.inits)
	}
}
