package wire

import "testing"

func TestParseVarBlob(t *testing.T) {
	// 1. A typical status response, with noise around the assignments
	payload := []byte("var in='1523'; var out='1498';\nvar sum='25';var capacity='300'; var alarm='0'; garbage here")

	vars := ParseVarBlob(payload)

	// 2. All five assignments are extracted
	want := map[string]string{"in": "1523", "out": "1498", "sum": "25", "capacity": "300", "alarm": "0"}
	for name, value := range want {
		if vars[name] != value {
			t.Errorf("Expected %s=%q, got %q", name, value, vars[name])
		}
	}
}

func TestParseVarBlob_Malformed(t *testing.T) {
	// Unquoted values and half-assignments are ignored, not rejected
	payload := []byte("var in=42; var out='7'; var =''; not even close")

	vars := ParseVarBlob(payload)
	if _, ok := vars["in"]; ok {
		t.Errorf("Expected unquoted assignment to be ignored, got %q", vars["in"])
	}
	if vars["out"] != "7" {
		t.Errorf("Expected out=7, got %q", vars["out"])
	}
}

func TestCoerceStatus(t *testing.T) {
	// 1. Missing and non-numeric variables coerce to zero
	vars := map[string]string{"in": "10", "out": "bad", "capacity": "120"}

	fields := CoerceStatus(vars)

	if fields.In != 10 {
		t.Errorf("Expected in=10, got %d", fields.In)
	}
	if fields.Out != 0 {
		t.Errorf("Expected non-numeric out to coerce to 0, got %d", fields.Out)
	}
	if fields.Sum != 0 || fields.Alarm != 0 {
		t.Errorf("Expected missing sum/alarm to coerce to 0, got %d/%d", fields.Sum, fields.Alarm)
	}
	if fields.Capacity != 120 {
		t.Errorf("Expected capacity=120, got %d", fields.Capacity)
	}
}
