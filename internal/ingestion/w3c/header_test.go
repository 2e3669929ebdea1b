package w3c

import (
	"reflect"
	"testing"
)

func TestObserveFieldsDirective(t *testing.T) {
	tr := NewHeaderTracker()
	if !tr.Observe("#Fields: date time c-ip cs(User-Agent) cs(Referer)") {
		t.Fatal("expected schema update")
	}
	want := []string{"date", "time", "c-ip", "cs-User-Agent", "cs-Referer"}
	got := tr.Schema()
	if !reflect.DeepEqual(got.Fields, want) {
		t.Errorf("expected %v, got %v", want, got.Fields)
	}
	if got.Generation != 1 {
		t.Errorf("expected generation 1, got %d", got.Generation)
	}
}

func TestObserveIgnoresOtherComments(t *testing.T) {
	tr := NewHeaderTracker()
	tr.Observe("#Fields: date time")

	for _, line := range []string{
		"#Software: Microsoft Internet Information Services 10.0",
		"#Version: 1.0",
		"#Date: 2020-01-01 00:00:00",
		"#Fields:date time",
		"#",
	} {
		if tr.Observe(line) {
			t.Errorf("%q: expected no schema update", line)
		}
	}
	if got := tr.Schema(); got.Generation != 1 || len(got.Fields) != 2 {
		t.Errorf("schema changed unexpectedly: %+v", got)
	}
}

func TestObserveReplacesWholeSchema(t *testing.T) {
	tr := NewHeaderTracker()
	tr.Observe("#Fields: date time c-ip cs-method")
	tr.Observe("#Fields: date sc-status")

	got := tr.Schema()
	if !reflect.DeepEqual(got.Fields, []string{"date", "sc-status"}) {
		t.Errorf("expected replaced schema, got %v", got.Fields)
	}
	if got.Generation != 2 {
		t.Errorf("expected generation 2, got %d", got.Generation)
	}
}

func TestObserveWhitespaceSplitting(t *testing.T) {
	tr := NewHeaderTracker()
	tr.Observe("#Fields:  date\ttime   c-ip ")
	if got := tr.Schema().Fields; !reflect.DeepEqual(got, []string{"date", "time", "c-ip"}) {
		t.Errorf("unexpected fields %v", got)
	}
}

func TestNormalizeFieldName(t *testing.T) {
	tests := map[string]string{
		"cs(User-Agent)": "cs-User-Agent",
		"cs(Cookie)":     "cs-Cookie",
		"c-ip":           "c-ip",
		"x(a)(b)":        "x-a-b",
	}
	for in, want := range tests {
		if got := NormalizeFieldName(in); got != want {
			t.Errorf("NormalizeFieldName(%q): expected %q, got %q", in, want, got)
		}
	}
}
