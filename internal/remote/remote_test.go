package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestKindOf(t *testing.T) {
	dup := &Error{Kind: KindDuplicate, Table: "cajas", Op: "insert", Err: fmt.Errorf("duplicate")}
	if KindOf(dup) != KindDuplicate {
		t.Errorf("KindOf(dup) = %v, want %v", KindOf(dup), KindDuplicate)
	}

	// Wrapping preserves classification.
	wrapped := fmt.Errorf("dispatch failed: %w", dup)
	if KindOf(wrapped) != KindDuplicate {
		t.Errorf("KindOf(wrapped) = %v, want %v", KindOf(wrapped), KindDuplicate)
	}

	if KindOf(nil) != KindUnknown {
		t.Errorf("KindOf(nil) = %v, want %v", KindOf(nil), KindUnknown)
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Errorf("plain errors should classify as unknown")
	}
}

func TestHTTPRemoteClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorKind
	}{
		{"conflict is duplicate", http.StatusConflict, KindDuplicate},
		{"unprocessable is foreign key", http.StatusUnprocessableEntity, KindForeignKeyViolation},
		{"server error is transient", http.StatusInternalServerError, KindTransient},
		{"rate limit is transient", http.StatusTooManyRequests, KindTransient},
		{"bad request is unknown", http.StatusBadRequest, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			rm, err := NewHTTP(HTTPConfig{BaseURL: srv.URL})
			if err != nil {
				t.Fatalf("failed to create remote: %v", err)
			}

			err = rm.Insert(context.Background(), "cajas", Record{"id": "box-a"})
			if KindOf(err) != tt.want {
				t.Errorf("status %d classified as %v, want %v", tt.status, KindOf(err), tt.want)
			}
		})
	}
}

func TestHTTPRemoteRequestShape(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	var gotBody Record

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	rm, err := NewHTTP(HTTPConfig{BaseURL: srv.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("failed to create remote: %v", err)
	}

	if err := rm.Insert(context.Background(), "transacciones", Record{"id": "tx1", "monto": "30000"}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/transacciones" {
		t.Errorf("insert sent %s %s, want POST /transacciones", gotMethod, gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("authorization = %q, want bearer token", gotAuth)
	}
	if gotBody["monto"] != "30000" {
		t.Errorf("body monto = %v, want \"30000\"", gotBody["monto"])
	}

	if err := rm.Update(context.Background(), "transacciones", "tx1", Record{"id": "tx1"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/transacciones/tx1" {
		t.Errorf("update sent %s %s, want PUT /transacciones/tx1", gotMethod, gotPath)
	}

	if err := rm.Delete(context.Background(), "transacciones", "tx1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("delete sent %s, want DELETE", gotMethod)
	}
}

func TestHTTPRemoteDeleteMissingIsNoOp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	rm, err := NewHTTP(HTTPConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("failed to create remote: %v", err)
	}
	if err := rm.Delete(context.Background(), "cajas", "gone"); err != nil {
		t.Errorf("deleting an absent row should succeed, got %v", err)
	}
}

func TestHTTPRemoteUnreachableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening anymore

	rm, err := NewHTTP(HTTPConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("failed to create remote: %v", err)
	}
	err = rm.Insert(context.Background(), "cajas", Record{"id": "box-a"})
	if KindOf(err) != KindTransient {
		t.Errorf("transport failure classified as %v, want %v", KindOf(err), KindTransient)
	}
}

func TestInMemoryRemoteFailureModes(t *testing.T) {
	rm := NewInMemory()
	ctx := context.Background()

	if err := rm.Insert(ctx, "cajas", Record{"id": "box-a"}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	err := rm.Insert(ctx, "cajas", Record{"id": "box-a"})
	if KindOf(err) != KindDuplicate {
		t.Errorf("re-insert classified as %v, want duplicate", KindOf(err))
	}

	rm.DeclareRelation("transacciones", Relation{Field: "caja_origen_id", Table: "cajas"})
	err = rm.Insert(ctx, "transacciones", Record{"id": "tx1", "caja_origen_id": "missing"})
	if KindOf(err) != KindForeignKeyViolation {
		t.Errorf("missing relation classified as %v, want foreign key violation", KindOf(err))
	}
	if err := rm.Insert(ctx, "transacciones", Record{"id": "tx1", "caja_origen_id": "box-a"}); err != nil {
		t.Errorf("insert with satisfied relation failed: %v", err)
	}
	// Nil relation fields are not checked.
	if err := rm.Insert(ctx, "transacciones", Record{"id": "tx2", "caja_origen_id": nil}); err != nil {
		t.Errorf("insert with nil relation failed: %v", err)
	}

	rm.SetOffline(true)
	err = rm.Insert(ctx, "cajas", Record{"id": "box-b"})
	if KindOf(err) != KindTransient {
		t.Errorf("offline insert classified as %v, want transient", KindOf(err))
	}
	rm.SetOffline(false)

	if err := rm.Delete(ctx, "cajas", "never-existed"); err != nil {
		t.Errorf("deleting an absent row should succeed, got %v", err)
	}
}

func TestHTTPOracle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL+"/health", 0)
	if !oracle.Online(context.Background()) {
		t.Error("oracle should report online against a live server")
	}

	srv.Close()
	if oracle.Online(context.Background()) {
		t.Error("oracle should report offline after the server is gone")
	}
}
