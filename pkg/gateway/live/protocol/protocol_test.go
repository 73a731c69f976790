package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeClientMessage_Hello(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"hello","sessionId":" s_1 ","clientVersion":"web/2.3"}`))
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	hello, ok := msg.(ClientHello)
	if !ok {
		t.Fatalf("decoded type = %T, want ClientHello", msg)
	}
	if hello.SessionID != "s_1" {
		t.Fatalf("sessionId=%q", hello.SessionID)
	}
	if hello.ClientVersion != "web/2.3" {
		t.Fatalf("clientVersion=%q", hello.ClientVersion)
	}
}

func TestDecodeClientMessage_Audio(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"audio","chunk":"AAEC"}`))
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	audio := msg.(ClientAudio)
	if string(audio.PCM) != "\x00\x01\x02" {
		t.Fatalf("pcm=%v", audio.PCM)
	}
}

func TestDecodeClientMessage_Kinds(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{`{"type":"start","sampleRate":16000}`, ClientStart{Type: TypeStart, SampleRate: 16000}},
		{`{"type":"start","sampleRate":8000}`, ClientStart{Type: TypeStart, SampleRate: 8000}},
		{`{"type":"start","sampleRate":48000}`, ClientStart{Type: TypeStart, SampleRate: 48000}},
		{`{"type":"endQuestion"}`, ClientEndQuestion{Type: TypeEndQuestion}},
		{`{"type":"submit"}`, ClientSubmit{Type: TypeSubmit}},
		{`{"type":"ping","t":42}`, ClientPing{Type: TypePing, T: 42}},
	}
	for _, tt := range tests {
		got, err := DecodeClientMessage([]byte(tt.raw))
		if err != nil {
			t.Fatalf("%s: error = %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("%s: got %#v, want %#v", tt.raw, got, tt.want)
		}
	}
}

func TestDecodeClientMessage_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":          `{"type":`,
		"missing type":      `{"sessionId":"s"}`,
		"unknown type":      `{"type":"reboot"}`,
		"hello no session":  `{"type":"hello"}`,
		"start no rate":     `{"type":"start"}`,
		"start bad rate":    `{"type":"start","sampleRate":-1}`,
		"start rate low":    `{"type":"start","sampleRate":7999}`,
		"start rate huge":   `{"type":"start","sampleRate":9223372036854775807}`,
		"audio empty":       `{"type":"audio","chunk":""}`,
		"audio not base64":  `{"type":"audio","chunk":"%%%"}`,
		"ping wrong t type": `{"type":"ping","t":"soon"}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeClientMessage([]byte(raw))
			if err == nil {
				t.Fatalf("expected error")
			}
			decErr, ok := err.(*DecodeError)
			if !ok {
				t.Fatalf("err type = %T", err)
			}
			if decErr.Code != CodeInvalidMessage {
				t.Fatalf("code=%q", decErr.Code)
			}
		})
	}
}

func TestServerMessages_WireShape(t *testing.T) {
	tests := []struct {
		msg  any
		want string
	}{
		{State(StatusListening, 0, 3), `{"type":"state","status":"listening","qIndex":0,"qTotal":3}`},
		{Caption("hel", true), `{"type":"caption","partial":true,"text":"hel"}`},
		{Prompt("Why Go?"), `{"type":"prompt","text":"Why Go?"}`},
		{TTSChunk([]byte{0, 1, 2}), `{"type":"tts","streamChunk":"AAEC"}`},
		{Timer(-3), `{"type":"timer","remainingSec":0}`},
		{Result("q1", "I would", 12), `{"type":"result","questionId":"q1","transcript":"I would","durationSec":12}`},
		{Pong(42), `{"type":"pong","t":42}`},
		{Error(CodeSTTError, "stt unavailable"), `{"type":"error","code":"STT_ERROR","message":"stt unavailable"}`},
	}
	for _, tt := range tests {
		blob, err := json.Marshal(tt.msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(blob) != tt.want {
			t.Fatalf("got %s, want %s", blob, tt.want)
		}
	}
}
