package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"outlay/internal/core"
)

func createFoodCategory(t *testing.T, srv *Server) {
	t.Helper()
	rr := doRequest(t, srv, http.MethodPost, "/categories", `{"name":"Food"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("category create status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestExpenseCreate(t *testing.T) {
	srv := newTestServer(t)
	createFoodCategory(t, srv)

	rr := doRequest(t, srv, http.MethodPost, "/expenses",
		`{"amount":12.5,"description":"Lunch","categoryId":1,"date":"2024-01-01"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created core.Expense
	decodeBody(t, rr, &created)
	if created.ID == 0 || created.Amount != 12.5 || created.Description != "Lunch" {
		t.Fatalf("created = %+v", created)
	}
	if created.CategoryID != 1 {
		t.Fatalf("created categoryId = %d, want 1", created.CategoryID)
	}
	if created.Date.String() != "2024-01-01" {
		t.Fatalf("created date = %q", created.Date.String())
	}
}

func TestExpenseCreateUnknownCategory(t *testing.T) {
	srv := newTestServer(t)

	for _, body := range []string{
		`{"amount":1,"description":"x","categoryId":42}`,
		`{"amount":1,"description":"x"}`, // omitted categoryId never resolves
	} {
		rr := doRequest(t, srv, http.MethodPost, "/expenses", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("create %s status=%d, want 400", body, rr.Code)
			continue
		}
		if msg := errorMessage(t, rr); msg != "Category not found." {
			t.Errorf("create %s error=%q", body, msg)
		}
	}

	// Nothing was persisted.
	rr := doRequest(t, srv, http.MethodGet, "/expenses", "")
	var list []core.Expense
	decodeBody(t, rr, &list)
	if len(list) != 0 {
		t.Fatalf("expenses persisted despite rejected creates: %+v", list)
	}
}

func TestExpenseCreateDateHandling(t *testing.T) {
	srv := newTestServer(t)
	createFoodCategory(t, srv)

	rr := doRequest(t, srv, http.MethodPost, "/expenses",
		`{"amount":1,"description":"x","categoryId":1,"date":"not-a-date"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed date status=%d, want 400", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != "Invalid date format. Use YYYY-MM-DD." {
		t.Fatalf("malformed date error=%q", msg)
	}

	// Omitted date defaults to today.
	rr = doRequest(t, srv, http.MethodPost, "/expenses",
		`{"amount":1,"description":"x","categoryId":1}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("default date create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created core.Expense
	decodeBody(t, rr, &created)
	if today := time.Now().UTC().Format("2006-01-02"); created.Date.String() != today {
		t.Fatalf("default date = %q, want %q", created.Date.String(), today)
	}
}

func TestExpenseGetJoinsCategory(t *testing.T) {
	srv := newTestServer(t)
	createFoodCategory(t, srv)
	doRequest(t, srv, http.MethodPost, "/expenses",
		`{"amount":12.5,"description":"Lunch","categoryId":1,"date":"2024-01-01"}`)

	rr := doRequest(t, srv, http.MethodGet, "/expenses/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d body=%s", rr.Code, rr.Body.String())
	}
	var got core.Expense
	decodeBody(t, rr, &got)
	if got.Category == nil || got.Category.Name != "Food" {
		t.Fatalf("get did not join category: %+v", got)
	}

	rr = doRequest(t, srv, http.MethodGet, "/expenses", "")
	var list []core.Expense
	decodeBody(t, rr, &list)
	if len(list) != 1 || list[0].Category == nil || list[0].Category.Name != "Food" {
		t.Fatalf("list did not join category: %+v", list)
	}

	for _, path := range []string{"/expenses/99", "/expenses/abc"} {
		rr = doRequest(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusNotFound {
			t.Errorf("get %s status=%d, want 404", path, rr.Code)
		}
	}
}

func TestExpenseUpdateTruthyReplace(t *testing.T) {
	srv := newTestServer(t)
	createFoodCategory(t, srv)
	doRequest(t, srv, http.MethodPost, "/expenses",
		`{"amount":12.5,"description":"Lunch","categoryId":1,"date":"2024-01-01"}`)

	// A supplied zero amount and empty description keep the stored values.
	rr := doRequest(t, srv, http.MethodPut, "/expenses/1", `{"amount":0,"description":""}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	var updated core.Expense
	decodeBody(t, rr, &updated)
	if updated.Amount != 12.5 || updated.Description != "Lunch" {
		t.Fatalf("falsy fields overwrote stored values: %+v", updated)
	}

	// Non-zero fields replace.
	rr = doRequest(t, srv, http.MethodPut, "/expenses/1",
		`{"amount":20,"description":"Dinner","date":"2024-02-02"}`)
	decodeBody(t, rr, &updated)
	if updated.Amount != 20 || updated.Description != "Dinner" || updated.Date.String() != "2024-02-02" {
		t.Fatalf("update did not apply: %+v", updated)
	}
	if updated.Category == nil || updated.Category.Name != "Food" {
		t.Fatalf("update response lost the category join: %+v", updated)
	}
}

func TestExpenseUpdateCategoryChecks(t *testing.T) {
	srv := newTestServer(t)
	createFoodCategory(t, srv)
	doRequest(t, srv, http.MethodPost, "/categories", `{"name":"Travel"}`)
	doRequest(t, srv, http.MethodPost, "/expenses",
		`{"amount":12.5,"description":"Lunch","categoryId":1,"date":"2024-01-01"}`)

	// Omitted categoryId keeps the current category.
	rr := doRequest(t, srv, http.MethodPut, "/expenses/1", `{"amount":15}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update without categoryId status=%d body=%s", rr.Code, rr.Body.String())
	}
	var updated core.Expense
	decodeBody(t, rr, &updated)
	if updated.CategoryID != 1 {
		t.Fatalf("categoryId changed without being supplied: %+v", updated)
	}

	// Supplied but unknown categoryId is rejected.
	rr = doRequest(t, srv, http.MethodPut, "/expenses/1", `{"categoryId":42}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown categoryId status=%d, want 400", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != "Category not found." {
		t.Fatalf("unknown categoryId error=%q", msg)
	}

	// Supplied and valid categoryId moves the expense.
	rr = doRequest(t, srv, http.MethodPut, "/expenses/1", `{"categoryId":2}`)
	decodeBody(t, rr, &updated)
	if updated.CategoryID != 2 || updated.Category == nil || updated.Category.Name != "Travel" {
		t.Fatalf("category move failed: %+v", updated)
	}
}

func TestExpenseUpdateNotFound(t *testing.T) {
	srv := newTestServer(t)

	rr := doRequest(t, srv, http.MethodPut, "/expenses/7", `{"amount":1}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("update status=%d, want 404", rr.Code)
	}
}

func TestExpenseDelete(t *testing.T) {
	srv := newTestServer(t)
	createFoodCategory(t, srv)
	doRequest(t, srv, http.MethodPost, "/expenses",
		`{"amount":12.5,"description":"Lunch","categoryId":1,"date":"2024-01-01"}`)

	rr := doRequest(t, srv, http.MethodDelete, "/expenses/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}
	var body struct {
		Message string `json:"message"`
	}
	decodeBody(t, rr, &body)
	if body.Message != "Expense deleted successfully." {
		t.Fatalf("delete message=%q", body.Message)
	}

	rr = doRequest(t, srv, http.MethodDelete, "/expenses/1", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d, want 404", rr.Code)
	}
}

// recordingPublisher captures published expense ids.
type recordingPublisher struct {
	created []int64
	err     error
}

func (p *recordingPublisher) PublishExpenseCreated(_ context.Context, id int64) error {
	p.created = append(p.created, id)
	return p.err
}

func TestExpenseCreatePublishesEvent(t *testing.T) {
	repoSrv := newTestServer(t)
	pub := &recordingPublisher{}
	srv := NewServer(":0", repoSrv.store, pub)

	createFoodCategory(t, srv)
	rr := doRequest(t, srv, http.MethodPost, "/expenses",
		`{"amount":1,"description":"x","categoryId":1,"date":"2024-01-01"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}
	if len(pub.created) != 1 || pub.created[0] != 1 {
		t.Fatalf("published ids = %v, want [1]", pub.created)
	}

	// Rejected creates publish nothing.
	doRequest(t, srv, http.MethodPost, "/expenses", `{"amount":1,"categoryId":42}`)
	if len(pub.created) != 1 {
		t.Fatalf("published ids after rejected create = %v", pub.created)
	}
}

func TestExpenseCreatePublishFailureIsNotFatal(t *testing.T) {
	repoSrv := newTestServer(t)
	pub := &recordingPublisher{err: context.DeadlineExceeded}
	srv := NewServer(":0", repoSrv.store, pub)

	createFoodCategory(t, srv)
	rr := doRequest(t, srv, http.MethodPost, "/expenses",
		`{"amount":1,"description":"x","categoryId":1,"date":"2024-01-01"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d, publish failure must not fail the request", rr.Code)
	}
}
