package messagequeue

import (
	"context"
	"strings"
	"testing"
)

func TestValidateTenantEvent(t *testing.T) {
	data := []byte(`{"tenant_id":"t1","name":"Acme Corp","schema_name":"acme_corp","hostname":"acme-corp.crm.test","occurred_at":"2026-01-02T03:04:05Z"}`)
	if err := Validate(SubjectTenantProvisioned, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateSweepRequested(t *testing.T) {
	for _, data := range []string{`{}`, `{"date":"2026-01-02"}`} {
		if err := Validate(SubjectSweepRequested, []byte(data)); err != nil {
			t.Fatalf("Validate(%s): %v", data, err)
		}
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	err := Validate(SubjectTenantUpdated, []byte(`{not json`))
	if err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateWrongShape(t *testing.T) {
	err := Validate(SubjectSweepCompleted, []byte(`{"tenants":"three"}`))
	if err == nil || !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	if err := Validate("other.subject", []byte(`[1,2,3]`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNopQueue(t *testing.T) {
	var q Queue = Nop{}
	if err := q.Publish(context.Background(), SubjectTenantUpdated, []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	cancel, err := q.Subscribe(context.Background(), SubjectSweepRequested, nil)
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
}
