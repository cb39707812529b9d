package proto

import "testing"

func TestValuePayload(t *testing.T) {
	p := ValuePayload(1<<40 + 7)
	if len(p) != 8 {
		t.Fatalf("len(ValuePayload()) = %d, want 8", len(p))
	}
	v, ok := DecodeValue(p)
	if !ok || v != 1<<40+7 {
		t.Fatalf("DecodeValue() = %d, %v", v, ok)
	}
	if _, ok := DecodeValue(p[:7]); ok {
		t.Fatal("DecodeValue(short) ok = true")
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		kind    Kind
		payload []byte
		want    string
	}{
		{MsgText, TextPayload("ping"), "ping"},
		{MsgText, TextPayload(""), ""},
		{MsgValue, ValuePayload(42), "42"},
		{MsgValue, []byte{1, 2}, "value[2]"},
		{Kind(99), []byte{1}, "unknown[1]"},
	}
	for _, tc := range cases {
		if got := Format(tc.kind, tc.payload); got != tc.want {
			t.Errorf("Format(%s, %v) = %q, want %q", tc.kind, tc.payload, got, tc.want)
		}
	}
}
