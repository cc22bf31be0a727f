package protocol

import (
	"errors"
	"reflect"
	"testing"
)

func TestServerMessages(t *testing.T) {
	markup := `<div id="7" class="a b">x, y & "z"</div>`

	tests := []struct {
		name string
		msg  string
		want Message
	}{
		{"replace window", ReplaceWindow("7", markup), Message{Kind: KindReplaceWindow, ID: "7", Markup: markup}},
		{"update", Update("12", markup), Message{Kind: KindUpdate, ID: "12", Markup: markup}},
		{"exec js", ExecJS("alert('hi')"), Message{Kind: KindExecJS, Markup: "alert('hi')"}},
		{"ack", Ack, Message{Kind: KindAck}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMessage(tt.msg)
			if err != nil {
				t.Fatalf("ParseMessage() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseMessage() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestUpdateEscapesMarkup(t *testing.T) {
	got := Update("3", "<b>a,b</b>")
	if got != "13,%3Cb%3Ea%2Cb%3C%2Fb%3E" {
		t.Errorf("Update() = %q", got)
	}
}

func TestParseMessageErrors(t *testing.T) {
	for _, in := range []string{"", "9x", "1nocomma", "112,%zz"} {
		if _, err := ParseMessage(in); err == nil {
			t.Errorf("ParseMessage(%q) should fail", in)
		}
	}
}

func TestParseCall(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *Call
	}{
		{
			name: "no params",
			in:   "callback/12/onclick",
			want: &Call{NodeID: "12", Handler: "onclick", Params: map[string]any{}},
		},
		{
			name: "params",
			in:   "callback/12/onchange/7|value=5|",
			want: &Call{NodeID: "12", Handler: "onchange", Params: map[string]any{"value": int64(5)}},
		},
		{
			name: "escaped",
			in:   "callback%2F12%2Fonchange%2F9%7Cvalue%3Da%2Fb%7C",
			want: &Call{NodeID: "12", Handler: "onchange", Params: map[string]any{"value": "a/b"}},
		},
		{
			name: "empty params segment",
			in:   "callback/3/go/",
			want: &Call{NodeID: "3", Handler: "go", Params: map[string]any{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCall(tt.in)
			if err != nil {
				t.Fatalf("ParseCall() error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCall() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseCallErrors(t *testing.T) {
	for _, in := range []string{"", "callback", "callback/1", "callback//x", "other/1/x", "callback/%zz/x"} {
		if _, err := ParseCall(in); !errors.Is(err, ErrBadCallback) {
			t.Errorf("ParseCall(%q) error = %v, want ErrBadCallback", in, err)
		}
	}
}

func TestEncodeCallRoundTrip(t *testing.T) {
	params := map[string]any{"value": "a/b c", "n": int64(3)}
	got, err := ParseCall(EncodeCall("5", "onchange", params))
	if err != nil {
		t.Fatalf("ParseCall() error: %v", err)
	}
	want := &Call{NodeID: "5", Handler: "onchange", Params: params}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestMessageKindString(t *testing.T) {
	if KindUpdate.String() != "Update" || MessageKind('x').String() != "Unknown" {
		t.Error("MessageKind.String mismatch")
	}
}
