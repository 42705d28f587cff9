package dependent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/AmalSalhi1/BeedicalApp/internal/platform/auth"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), svc, echo.New()
}

func newRequest(method, body, actor string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/", nil)
	} else {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req.WithContext(auth.WithActor(req.Context(), actor))
}

func TestHandler_Create(t *testing.T) {
	h, svc, e := newTestHandler()

	body := `{"first_name":"Yasmine","last_name":"Alaoui","birth_date":"2018-05-04","city":"Rabat"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, body, "user-1"), rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var got Dependent
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.BirthDate.String() != "2018-05-04" || got.City == nil || *got.City != "Rabat" {
		t.Errorf("unexpected dependent %+v", got)
	}
	if !strings.Contains(rec.Body.String(), `"birth_date":"2018-05-04"`) {
		t.Errorf("expected ISO birth date in body, got %s", rec.Body.String())
	}
	if ok, _ := svc.IsGuardianOf(context.Background(), "user-1", got.ID); !ok {
		t.Error("expected caller to become guardian")
	}
}

func TestHandler_Create_Errors(t *testing.T) {
	h, _, e := newTestHandler()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed date", `{"first_name":"A","last_name":"B","birth_date":"04/05/2018"}`, http.StatusBadRequest},
		{"future date", `{"first_name":"A","last_name":"B","birth_date":"2030-01-01"}`, http.StatusBadRequest},
		{"missing names", `{"birth_date":"2018-01-01"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.NewContext(newRequest(http.MethodPost, tt.body, "user-1"), httptest.NewRecorder())
			var he *echo.HTTPError
			if err := h.Create(c); !errors.As(err, &he) || he.Code != tt.want {
				t.Errorf("expected %d, got %v", tt.want, err)
			}
		})
	}
}

func TestHandler_GetAndDelete(t *testing.T) {
	h, svc, e := newTestHandler()
	d := newDependent("Yasmine", "Alaoui")
	if err := svc.Create(context.Background(), "user-1", d); err != nil {
		t.Fatal(err)
	}

	c := e.NewContext(newRequest(http.MethodGet, "", "stranger"), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	var he *echo.HTTPError
	if err := h.Get(c); !errors.As(err, &he) || he.Code != http.StatusForbidden {
		t.Errorf("expected 403 for stranger, got %v", err)
	}

	rec := httptest.NewRecorder()
	c = e.NewContext(newRequest(http.MethodDelete, "", "user-1"), rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	c = e.NewContext(newRequest(http.MethodGet, "", "user-1"), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.Get(c); !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %v", err)
	}
}

func TestHandler_List(t *testing.T) {
	h, svc, e := newTestHandler()

	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(newRequest(http.MethodGet, "", "user-1"), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}

	_ = svc.Create(context.Background(), "user-1", newDependent("Yasmine", "Alaoui"))
	rec = httptest.NewRecorder()
	if err := h.List(e.NewContext(newRequest(http.MethodGet, "", "user-1"), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []Dependent
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil || len(items) != 1 {
		t.Errorf("expected 1 dependent, got %s (%v)", rec.Body.String(), err)
	}
}

func TestHandler_AddGuardian(t *testing.T) {
	h, svc, e := newTestHandler()
	d := newDependent("Yasmine", "Alaoui")
	if err := svc.Create(context.Background(), "user-1", d); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, `{"user_id":"user-2","role":"Parent"}`, "user-1"), rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.AddGuardian(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if ok, _ := svc.IsGuardianOf(context.Background(), "user-2", d.ID); !ok {
		t.Error("expected user-2 to be a guardian")
	}
}

func TestHandler_BadID(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(newRequest(http.MethodGet, "", "user-1"), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")
	var he *echo.HTTPError
	if err := h.Get(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
